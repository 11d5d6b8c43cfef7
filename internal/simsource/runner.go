package simsource

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/precinct/pkg/logger"
)

// Run executes the harness: verify mode inspects a running engine, serve
// mode generates a scenario and streams it until cancelled.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return fmt.Errorf("set log level: %w", err)
		}
	}

	logger.Get().Info(ctx, "starting simulation source",
		logger.String("addr", cfg.Addr),
		logger.Int64("seed", cfg.Seed),
		logger.Int("counties", cfg.Counties),
		logger.Float64("duration_seconds", cfg.DurationSeconds),
		logger.Int("frames", cfg.Frames),
		logger.Bool("shuffle", cfg.Shuffle),
		logger.Bool("burst", cfg.Burst),
		logger.Bool("verify", cfg.Verify))

	if cfg.Verify {
		if err := Verify(ctx, cfg); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		return nil
	}

	srv := NewServer(ctx, cfg)
	err := srv.ListenAndServe(ctx)

	stats := srv.Stats()
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logger.Get().Info(ctx, "simulation source stopped",
		logger.Int("sessions", stats.Sessions),
		logger.Int("frames_generated", stats.FramesGenerated),
		logger.Int("frames_delivered", stats.FramesDelivered),
		logger.Int("counties", stats.CountiesServed),
		logger.String("uptime", stats.Duration.String()))
	return err
}
