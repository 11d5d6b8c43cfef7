// Package config defines service configuration for the precinct process.
//
// Configuration is layered: compiled defaults, then an optional YAML file,
// then PRECINCT_-prefixed environment variables. Load is the only entry
// point; New exists so defaults stay in one place.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FeedURL is the WebSocket URL of the simulation source. Empty disables
	// the feed; the engine then idles until a scenario arrives another way.
	FeedURL string `koanf:"feed_url"`

	// TickIntervalMS sets the playback clock tick interval in milliseconds.
	TickIntervalMS int `koanf:"tick_interval_ms"`

	// DefaultSpeed is the speed multiplier applied when playback starts.
	DefaultSpeed float64 `koanf:"default_speed"`

	// MaxSpeed caps the speed multiplier accepted from the API.
	MaxSpeed float64 `koanf:"max_speed"`

	// CallThresholdPercent is the share of a state's counties fully reported
	// that must be reached before a race call is considered.
	CallThresholdPercent float64 `koanf:"call_threshold_percent"`

	// CallSafetyMarginPercent is the absolute margin a state must exceed,
	// on top of the reporting threshold, for a race call.
	CallSafetyMarginPercent float64 `koanf:"call_safety_margin_percent"`

	// NewsroomWindow bounds the number of recent newsroom events retained.
	NewsroomWindow int `koanf:"newsroom_window"`

	// PaceNoiseFloorPercent is the minimum reporting share below which
	// per-county pace extrapolation falls back to the baseline expectation.
	PaceNoiseFloorPercent float64 `koanf:"pace_noise_floor_percent"`

	// MaxOverrideRequestKB caps the request body size for override writes.
	MaxOverrideRequestKB int `koanf:"max_override_request_kb"`
}

// New creates a Config populated with defaults. Load layers file and
// environment values on top of this.
func New() *Config {
	c := &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		FeedURL:                 "ws://127.0.0.1:9701/stream",
		TickIntervalMS:          250,
		DefaultSpeed:            1.0,
		MaxSpeed:                64.0,
		CallThresholdPercent:    95.0,
		CallSafetyMarginPercent: 5.0,
		NewsroomWindow:          200,
		PaceNoiseFloorPercent:   1.0,
		MaxOverrideRequestKB:    64,
	}
	return c
}
