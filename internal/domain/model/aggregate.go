package model

// Leader values used in rollups.
const (
	LeaderDem = "dem"
	LeaderGop = "gop"
	LeaderTie = "tie"
)

// Rollup is one aggregated view over a set of counties: a single state or
// the national total. Margin sign convention everywhere: positive means
// Republican-leaning, negative Democratic-leaning, zero a tie.
type Rollup struct {
	Scope     string `json:"scope"`                // "national" or the state's postal code
	StateFIPS string `json:"state_fips,omitempty"` // set for state scopes only

	DemVotes   int64 `json:"dem_votes"`
	GopVotes   int64 `json:"gop_votes"`
	OtherVotes int64 `json:"other_votes"`
	TotalVotes int64 `json:"total_votes"`

	// ReportingPercent is county-coverage progress; VoteReportingPercent is
	// ballot-volume progress. Consumers depend on the distinction.
	ReportingPercent     float64 `json:"reporting_percent"`
	VoteReportingPercent float64 `json:"vote_reporting_percent"`

	ExpectedTotalVotes int64 `json:"expected_total_votes"`
	VotesRemaining     int64 `json:"votes_remaining"`

	MarginAbsolute int64   `json:"margin_absolute"`
	MarginPercent  float64 `json:"margin_percent"`
	Leader         string  `json:"leader"`

	// WinProbability estimates the chance the Republican column prevails,
	// bounded to [0,100]; 100 minus it reads as the Democratic side. A
	// display heuristic, not a statistical model.
	WinProbability float64 `json:"win_probability"`

	CountiesReporting int `json:"counties_reporting"`
	TotalCounties     int `json:"total_counties"`
	FullyReported     int `json:"fully_reported"`
	InProgress        int `json:"in_progress"`
	NotStarted        int `json:"not_started"`
}

// Snapshot is the full rollup set derived from one county state view.
// Snapshots are rebuilt whole on every derivation pass, never mutated.
type Snapshot struct {
	CursorSeconds float64           `json:"cursor_seconds"`
	National      Rollup            `json:"national"`
	States        map[string]Rollup `json:"states"` // keyed by state postal code

	// ETASeconds estimates remaining simulated seconds until full reporting,
	// extrapolated from ballot-volume pace; 0 when the pace is unknown.
	ETASeconds float64 `json:"eta_seconds"`

	// Fingerprint identifies the county state content this snapshot was
	// derived from. Identical fingerprints mean identical snapshots.
	Fingerprint uint64 `json:"-"`
}
