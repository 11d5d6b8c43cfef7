package simsource

import "time"

// Config holds configuration for the simulation source.
type Config struct {
	Addr            string        // Listen address for the WebSocket server
	Seed            int64         // Seed for the deterministic generator
	Counties        int           // Number of counties to generate
	DurationSeconds float64       // Simulated scenario duration
	Frames          int           // Number of frames spread over the duration
	ScenarioName    string        // Display name for the scenario
	Compression     float64       // Wall-clock compression for paced delivery
	Shuffle         bool          // Deliver frames out of timestamp order
	Burst           bool          // Deliver all frames immediately
	LogFile         string        // Log file for harness output
	Verbose         bool          // Enable verbose logging

	// Verify mode settings.
	Verify  bool          // Drive a running engine instead of serving
	BaseURL string        // Engine base URL for verify mode
	Timeout time.Duration // HTTP request timeout for verify mode
}

// Stats holds delivery statistics for one streaming session.
type Stats struct {
	FramesGenerated int
	FramesDelivered int
	CountiesServed  int
	Sessions        int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
