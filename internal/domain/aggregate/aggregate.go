// Package aggregate computes state and national rollups from materialized
// county states. Rollups are pure functions of the input view; the engine
// memoizes on the view's fingerprint so unchanged states cost one map copy.
package aggregate

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/precinct/internal/domain/geo"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/metrics"
)

// Default aggregation configuration constants.
const (
	// defaultNoiseFloorPercent is the reporting percent below which a
	// county's pace extrapolation is considered noise and its baseline
	// expectation is used instead.
	defaultNoiseFloorPercent = 1.0

	nationalScope = "national"
	fullPercent   = 100.0
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithNoiseFloorPercent sets the reporting percent below which pace
// extrapolation falls back to the baseline expectation.
func WithNoiseFloorPercent(p float64) Option {
	return func(e *Engine) {
		if p >= 0 {
			e.noiseFloor = p
		}
	}
}

// Input is one county-state view to aggregate. States carries every
// materialized county; Baseline scopes counties to states and supplies
// expected totals. Fingerprint identifies the view for memoization.
type Input struct {
	CursorSeconds float64
	States        map[string]model.CountyState
	Baseline      map[string]model.BaselineCounty
	Fingerprint   uint64
}

// Aggregator computes a full snapshot from a county-state view.
type Aggregator interface {
	// Compute returns the rollup snapshot for the given view. The result is
	// owned by the caller; the engine never hands out shared maps.
	Compute(ctx context.Context, in Input) model.Snapshot
}

// Engine implements Aggregator with fingerprint memoization.
type Engine struct {
	mu         sync.Mutex
	noiseFloor float64

	memo            model.Snapshot
	memoFingerprint uint64
	memoOK          bool
}

// NewEngine creates an aggregation engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		noiseFloor: defaultNoiseFloorPercent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute builds the snapshot for the given view, reusing the memoized
// snapshot when the fingerprint is unchanged. Cursor-dependent fields
// (cursor, ETA) are restamped even on a memo hit.
func (e *Engine) Compute(ctx context.Context, in Input) model.Snapshot {
	start := time.Now()
	defer func() {
		metrics.RecordAggregateLatency(float64(time.Since(start).Milliseconds()))
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.memoOK && e.memoFingerprint == in.Fingerprint {
		metrics.RecordAggregateMemoHit()
		out := cloneSnapshot(e.memo)
		out.CursorSeconds = in.CursorSeconds
		out.ETASeconds = completionETA(in.CursorSeconds, out.National)
		return out
	}
	metrics.RecordAggregateRecompute()

	national := &accum{scope: nationalScope}
	states := make(map[string]*accum)

	bucket := func(st model.CountyState, base model.BaselineCounty, known bool) {
		national.add(st, base, known, e.noiseFloor)
		if !known {
			// Counties outside the baseline count nationally only.
			return
		}
		if base.StateFIPS == "" {
			base.StateFIPS = geo.StateFIPS(base.FIPS)
		}
		info, ok := geo.Resolve(base.StateFIPS)
		if !ok {
			return
		}
		sa := states[info.Postal]
		if sa == nil {
			sa = &accum{scope: info.Postal, stateFIPS: info.FIPS}
			states[info.Postal] = sa
		}
		sa.add(st, base, true, e.noiseFloor)
	}

	for fips, st := range in.States {
		base, known := in.Baseline[fips]
		bucket(st, base, known)
	}
	// Baseline counties the view has not materialized still occupy their
	// not-started slots.
	for fips, base := range in.Baseline {
		if _, ok := in.States[fips]; ok {
			continue
		}
		bucket(model.CountyState{FIPS: fips}, base, true)
	}

	snap := model.Snapshot{
		CursorSeconds: in.CursorSeconds,
		National:      national.finish(),
		States:        make(map[string]model.Rollup, len(states)),
		Fingerprint:   in.Fingerprint,
	}
	for postal, sa := range states {
		snap.States[postal] = sa.finish()
	}
	snap.ETASeconds = completionETA(in.CursorSeconds, snap.National)

	e.memo = snap
	e.memoFingerprint = in.Fingerprint
	e.memoOK = true
	return cloneSnapshot(snap)
}

// accum folds county states into one rollup scope.
type accum struct {
	scope     string
	stateFIPS string
	r         model.Rollup
	expected  float64
}

func (a *accum) add(st model.CountyState, base model.BaselineCounty, known bool, floor float64) {
	a.r.DemVotes += st.DemVotes
	a.r.GopVotes += st.GopVotes
	a.r.OtherVotes += st.OtherVotes
	a.r.TotalVotes += st.TotalVotes
	a.expected += countyExpected(st, base, known, floor)
	if !known {
		return
	}
	a.r.TotalCounties++
	switch {
	case st.FullyReported:
		a.r.FullyReported++
		a.r.CountiesReporting++
	case countyPosted(st):
		a.r.InProgress++
		a.r.CountiesReporting++
	default:
		a.r.NotStarted++
	}
}

func (a *accum) finish() model.Rollup {
	r := a.r
	r.Scope = a.scope
	r.StateFIPS = a.stateFIPS

	exp := int64(math.Round(a.expected))
	if exp < r.TotalVotes {
		exp = r.TotalVotes
	}
	r.ExpectedTotalVotes = exp
	r.VotesRemaining = exp - r.TotalVotes

	if r.TotalCounties > 0 {
		r.ReportingPercent = math.Min(fullPercent,
			float64(r.CountiesReporting)/float64(r.TotalCounties)*fullPercent)
	}
	if exp > 0 {
		r.VoteReportingPercent = math.Min(fullPercent,
			float64(r.TotalVotes)/float64(exp)*fullPercent)
	}

	r.MarginAbsolute = r.GopVotes - r.DemVotes
	den := r.TotalVotes
	if den < 1 {
		den = 1
	}
	r.MarginPercent = float64(r.MarginAbsolute) / float64(den) * fullPercent
	switch {
	case r.MarginAbsolute > 0:
		r.Leader = model.LeaderGop
	case r.MarginAbsolute < 0:
		r.Leader = model.LeaderDem
	default:
		r.Leader = model.LeaderTie
	}

	if r.TotalCounties > 0 && r.FullyReported == r.TotalCounties {
		// The count is final; probability collapses to the outcome.
		switch r.Leader {
		case model.LeaderGop:
			r.WinProbability = fullPercent
		case model.LeaderDem:
			r.WinProbability = 0
		default:
			r.WinProbability = fullPercent / 2
		}
		return r
	}
	r.WinProbability = WinProbability(r.MarginPercent, r.VoteReportingPercent/fullPercent)
	return r
}

// countyExpected estimates a county's eventual total. Fully reported
// counties are final; counties past the noise floor extrapolate from their
// own pace; the rest fall back to the baseline expectation when one exists.
func countyExpected(st model.CountyState, base model.BaselineCounty, known bool, floor float64) float64 {
	observed := float64(st.TotalVotes)
	if st.FullyReported {
		return observed
	}
	if st.ReportingPercent > floor {
		return math.Max(observed, observed/(st.ReportingPercent/fullPercent))
	}
	if known {
		return math.Max(observed, float64(base.ExpectedTotalVotes))
	}
	return observed
}

// countyPosted reports whether a county has posted any result yet.
func countyPosted(st model.CountyState) bool {
	return st.TotalVotes > 0 || st.ReportingPercent > 0 || st.FullyReported
}

// completionETA extrapolates the ballot-volume pace into remaining simulated
// seconds. Zero when there is nothing to extrapolate from or reporting is
// complete.
func completionETA(cursor float64, national model.Rollup) float64 {
	vr := national.VoteReportingPercent
	if cursor <= 0 || vr <= 0 {
		return 0
	}
	if vr >= fullPercent ||
		(national.TotalCounties > 0 && national.FullyReported == national.TotalCounties) {
		return 0
	}
	return cursor * (fullPercent - vr) / vr
}

func cloneSnapshot(s model.Snapshot) model.Snapshot {
	out := s
	out.States = make(map[string]model.Rollup, len(s.States))
	for k, v := range s.States {
		out.States[k] = v
	}
	return out
}
