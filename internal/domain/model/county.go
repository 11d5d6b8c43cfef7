// Package model contains domain models passed between layers.
package model

// BaselineCounty describes one county's expectations from the scenario
// bootstrap. Immutable after scenario load.
type BaselineCounty struct {
	FIPS               string  `json:"fips"`                 // normalized 5-character county code
	StateFIPS          string  `json:"state_fips,omitempty"` // 2-character prefix of FIPS
	ExpectedTotalVotes int64   `json:"expected_total_votes"` // non-negative eventual ballot count
	BaselineDemShare   float64 `json:"baseline_dem_share"`   // historical Democratic share, 0..1
	BaselineGopShare   float64 `json:"baseline_gop_share"`   // historical Republican share, 0..1
}

// CountyUpdate is one county's absolute vote snapshot inside a frame.
// Applying it fully replaces the county's prior state at that timestamp.
type CountyUpdate struct {
	DemVotes         int64   `json:"dem_votes"`
	GopVotes         int64   `json:"gop_votes"`
	OtherVotes       int64   `json:"other_votes,omitempty"`
	TotalVotes       int64   `json:"total_votes"`
	ReportingPercent float64 `json:"reporting_percent"`
	FullyReported    bool    `json:"fully_reported,omitempty"`
}

// NormalizeUpdate resolves the other-votes remainder on an incoming update
// and corrects states the engine cannot display. Corrections prefer keeping
// the per-party counts and adjusting the total over dropping data. The
// returned bool reports whether any field had to be corrected.
func NormalizeUpdate(u CountyUpdate) (CountyUpdate, bool) {
	corrected := false

	if u.DemVotes < 0 {
		u.DemVotes, corrected = 0, true
	}
	if u.GopVotes < 0 {
		u.GopVotes, corrected = 0, true
	}
	if u.OtherVotes < 0 {
		u.OtherVotes, corrected = 0, true
	}
	if u.TotalVotes < 0 {
		u.TotalVotes, corrected = 0, true
	}

	major := u.DemVotes + u.GopVotes
	switch {
	case major > u.TotalVotes:
		// Two-party sum exceeds the reported total: trust the parts.
		u.OtherVotes = 0
		u.TotalVotes = major
		corrected = true
	case u.OtherVotes == 0:
		// Other votes omitted or zero: the remainder is the other column.
		u.OtherVotes = u.TotalVotes - major
	case major+u.OtherVotes > u.TotalVotes:
		u.TotalVotes = major + u.OtherVotes
		corrected = true
	}
	// major+other < total with other supplied is representable: ballots
	// counted but not attributed to any listed column.

	if u.ReportingPercent < 0 {
		u.ReportingPercent, corrected = 0, true
	}
	if u.ReportingPercent > 100 {
		u.ReportingPercent, corrected = 100, true
	}

	return u, corrected
}

// CountyState is the as-of-cursor vote state for one county.
type CountyState struct {
	FIPS             string  `json:"fips"`
	DemVotes         int64   `json:"dem_votes"`
	GopVotes         int64   `json:"gop_votes"`
	OtherVotes       int64   `json:"other_votes"`
	TotalVotes       int64   `json:"total_votes"`
	ReportingPercent float64 `json:"reporting_percent"`
	FullyReported    bool    `json:"fully_reported"`
	SourceTimestamp  float64 `json:"source_timestamp"` // timestamp of the frame this reflects
	ManualOverride   bool    `json:"manual_override"`
}

// Update returns the snapshot portion of the state as a CountyUpdate.
func (s CountyState) Update() CountyUpdate {
	return CountyUpdate{
		DemVotes:         s.DemVotes,
		GopVotes:         s.GopVotes,
		OtherVotes:       s.OtherVotes,
		TotalVotes:       s.TotalVotes,
		ReportingPercent: s.ReportingPercent,
		FullyReported:    s.FullyReported,
	}
}

// OverridePatch is a partial manual correction to one county. Nil fields
// are left untouched by the merge.
type OverridePatch struct {
	DemVotes         *int64   `json:"dem_votes,omitempty"`
	GopVotes         *int64   `json:"gop_votes,omitempty"`
	OtherVotes       *int64   `json:"other_votes,omitempty"`
	TotalVotes       *int64   `json:"total_votes,omitempty"`
	ReportingPercent *float64 `json:"reporting_percent,omitempty"`
	FullyReported    *bool    `json:"fully_reported,omitempty"`
}

// Validate rejects patches that must never reach county state.
func (p OverridePatch) Validate() error {
	if p.DemVotes == nil && p.GopVotes == nil && p.OtherVotes == nil &&
		p.TotalVotes == nil && p.ReportingPercent == nil && p.FullyReported == nil {
		return ErrEmptyPatch
	}
	for _, v := range []*int64{p.DemVotes, p.GopVotes, p.OtherVotes, p.TotalVotes} {
		if v != nil && *v < 0 {
			return ErrNegativeVotes
		}
	}
	if p.ReportingPercent != nil && (*p.ReportingPercent < 0 || *p.ReportingPercent > 100) {
		return ErrInvalidReportingPercent
	}
	return nil
}
