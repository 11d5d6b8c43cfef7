package model

// Frame is one timestamped batch of per-county snapshots from the
// simulation source. Timestamps are simulated seconds since scenario start,
// assigned monotonically by the source but not necessarily received in
// order. County snapshots are absolute, never deltas.
type Frame struct {
	Timestamp float64                 `json:"timestamp"`
	Counties  map[string]CountyUpdate `json:"counties"`
}
