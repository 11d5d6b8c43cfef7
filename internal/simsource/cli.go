package simsource

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/precinct/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simsource_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the sim-source tool.
func ShowHelp() {
	os.Stdout.WriteString(`Precinct Simulation Source
==========================

Generates deterministic election-night scenarios and streams them to the
engine over WebSocket, or verifies a running engine through its HTTP API.

Usage:
  go run cmd/sim-source/main.go [options]

Options:
  -addr string
        WebSocket listen address (default ":9701")
  -seed int
        Generator seed; the same seed always produces the same night (default 1)
  -counties int
        Number of counties to generate (default 400)
  -duration float
        Simulated scenario duration in seconds (default 3600)
  -frames int
        Number of frames spread over the duration (default 720)
  -name string
        Scenario display name (default "Generated Night")
  -compression float
        Wall-clock compression for paced delivery; 60 means one
        simulated minute per real second (default 60)
  -shuffle
        Deliver frames out of timestamp order to exercise reordering
  -burst
        Deliver every frame immediately instead of pacing
  -verify
        Drive a running engine through its HTTP API and check invariants
  -url string
        Engine base URL for -verify (default "http://localhost:9080")
  -timeout duration
        HTTP request timeout for -verify (default 30s)
  -log string
        Log file for harness output (default: simsource_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Stream a paced scenario on the default port
  go run cmd/sim-source/main.go

  # Big night, frames shuffled, delivered all at once
  go run cmd/sim-source/main.go -counties 3000 -shuffle -burst

  # Check a running engine's invariants from outside
  go run cmd/sim-source/main.go -verify -url http://localhost:9080
`)
}
