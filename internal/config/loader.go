package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if PRECINCT_CONFIG is set
//  3. env (prefix PRECINCT_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("PRECINCT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PRECINCT_ADDR, PRECINCT_TICK_INTERVAL_MS, ...
	// Map env keys like PRECINCT_TICK_INTERVAL_MS -> tick_interval_ms
	// (flat keys). Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PRECINCT_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "precinct_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the engine cannot run with.
func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.TickIntervalMS <= 0 {
		return fmt.Errorf("%w: tick_interval_ms must be positive", ErrInvalidConfig)
	}
	if cfg.DefaultSpeed <= 0 {
		return fmt.Errorf("%w: default_speed must be positive", ErrInvalidConfig)
	}
	if cfg.MaxSpeed < cfg.DefaultSpeed {
		return fmt.Errorf("%w: max_speed must be at least default_speed", ErrInvalidConfig)
	}
	if cfg.CallThresholdPercent <= 0 || cfg.CallThresholdPercent > 100 {
		return fmt.Errorf("%w: call_threshold_percent must be in (0, 100]", ErrInvalidConfig)
	}
	if cfg.NewsroomWindow <= 0 {
		return fmt.Errorf("%w: newsroom_window must be positive", ErrInvalidConfig)
	}
	if cfg.MaxOverrideRequestKB <= 0 {
		return fmt.Errorf("%w: max_override_request_kb must be positive", ErrInvalidConfig)
	}
	return nil
}
