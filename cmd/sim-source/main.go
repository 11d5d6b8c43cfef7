package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/precinct/internal/simsource"
)

// Default configuration constants.
const (
	defaultCounties    = 400
	defaultDuration    = 3600.0
	defaultFrames      = 720
	defaultCompression = 60.0
	defaultTimeout     = 30 * time.Second
)

func main() {
	var (
		addr        = flag.String("addr", ":9701", "WebSocket listen address")
		seed        = flag.Int64("seed", 1, "Generator seed")
		counties    = flag.Int("counties", defaultCounties, "Number of counties to generate")
		duration    = flag.Float64("duration", defaultDuration, "Simulated scenario duration in seconds")
		frames      = flag.Int("frames", defaultFrames, "Number of frames spread over the duration")
		name        = flag.String("name", "Generated Night", "Scenario display name")
		compression = flag.Float64("compression", defaultCompression, "Wall-clock compression for paced delivery")
		shuffle     = flag.Bool("shuffle", false, "Deliver frames out of timestamp order")
		burst       = flag.Bool("burst", false, "Deliver every frame immediately")
		verify      = flag.Bool("verify", false, "Verify a running engine instead of serving")
		baseURL     = flag.String("url", "http://localhost:9080", "Engine base URL for -verify")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout for -verify")
		logFile     = flag.String("log", "", "Log file for harness output (default: simsource_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simsource.ShowHelp()
		return
	}

	// Setup logging
	if err := simsource.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &simsource.Config{
		Addr:            *addr,
		Seed:            *seed,
		Counties:        *counties,
		DurationSeconds: *duration,
		Frames:          *frames,
		ScenarioName:    *name,
		Compression:     *compression,
		Shuffle:         *shuffle,
		Burst:           *burst,
		LogFile:         *logFile,
		Verbose:         *verbose,
		Verify:          *verify,
		BaseURL:         *baseURL,
		Timeout:         *timeout,
	}

	if err := simsource.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
