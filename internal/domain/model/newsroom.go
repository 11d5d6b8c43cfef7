package model

// Severity grades newsroom events for display.
type Severity string

// Severity values.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// NewsroomEvent is one discrete editorial event derived from the aggregate
// stream. Events are generated, appended, and never edited.
type NewsroomEvent struct {
	ID                    string   `json:"id"`
	SimulationTimeSeconds float64  `json:"simulation_time_seconds"`
	Headline              string   `json:"headline"`
	Detail                string   `json:"detail,omitempty"`
	Scope                 string   `json:"scope,omitempty"` // state postal code or "national"
	Severity              Severity `json:"severity"`
}
