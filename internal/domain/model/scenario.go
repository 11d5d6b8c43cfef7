package model

// Scenario is the bootstrap payload that precedes any frames: the county
// baseline catalog plus the total simulated duration. Loading a scenario
// replaces all prior engine state.
type Scenario struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	DurationSeconds float64          `json:"duration_seconds"`
	Baseline        []BaselineCounty `json:"baseline"`
	Reporting       *ReportingConfig `json:"reporting,omitempty"`
}

// ReportingConfig carries upstream pacing hints. The engine treats it as
// opaque metadata surfaced in newsroom event detail; it is never validated
// beyond shape.
type ReportingConfig struct {
	Groups []ReportingGroup `json:"groups,omitempty"`
}

// ReportingGroup labels a set of counties sharing a reporting cadence.
type ReportingGroup struct {
	Label              string   `json:"label"`
	FIPS               []string `json:"fips,omitempty"`
	StartOffsetSeconds float64  `json:"start_offset_seconds,omitempty"`
}
