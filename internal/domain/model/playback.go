package model

// PlaybackState names one state of the timeline controller.
type PlaybackState string

// Playback states: idle -> ready -> running <-> paused -> completed, with
// error reachable from any non-idle state.
const (
	PlaybackIdle      PlaybackState = "idle"
	PlaybackReady     PlaybackState = "ready"
	PlaybackRunning   PlaybackState = "running"
	PlaybackPaused    PlaybackState = "paused"
	PlaybackCompleted PlaybackState = "completed"
	PlaybackError     PlaybackState = "error"
)

// PlaybackStatus is the externally visible playback position.
type PlaybackStatus struct {
	State           PlaybackState `json:"state"`
	CursorSeconds   float64       `json:"cursor_seconds"`
	DurationSeconds float64       `json:"duration_seconds"`
	Speed           float64       `json:"speed"`

	// PlaybackReady reports whether the buffer holds enough data to support
	// arbitrary seeking. Distinct from "is currently playing".
	PlaybackReady bool `json:"playback_ready"`

	ScenarioID   string `json:"scenario_id,omitempty"`
	ScenarioName string `json:"scenario_name,omitempty"`
}
