// Package newsroom turns the aggregate stream into discrete editorial
// events: race calls when a state's count is effectively in and the margin
// is safe, and lead-flip alerts when a state's margin changes sign.
//
// The generator is stateful only in what it must remember to stay
// idempotent: which states it has already called, each state's last margin
// sign, and the fingerprint of the last snapshot it processed. Feeding the
// same snapshot content twice never emits twice.
package newsroom

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/precinct/internal/domain/geo"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/metrics"
)

// Default generator configuration constants.
const (
	defaultCallThresholdPercent = 95.0
	defaultSafetyMarginPercent  = 5.0
	defaultWindow               = 200
)

// Generator consumes aggregate snapshots and accumulates newsroom events.
type Generator interface {
	// Observe scans one snapshot and returns the events it produced, in
	// stable (scope-sorted) order. Already-fired thresholds stay silent.
	Observe(ctx context.Context, snap model.Snapshot) []model.NewsroomEvent

	// Events returns the retained recent events, oldest first.
	Events(ctx context.Context) []model.NewsroomEvent

	// Called reports whether a race call has fired for the given state.
	Called(ctx context.Context, postal string) bool

	// Reset clears events and fired-threshold memory for a new scenario run.
	Reset(ctx context.Context)

	// SetReportingConfig installs the active scenario's pacing metadata so
	// group labels surface in event detail. nil clears it.
	SetReportingConfig(ctx context.Context, rc *model.ReportingConfig)
}

// InMemoryGenerator implements Generator. Safe for concurrent use, though
// the engine drives it from a single derivation loop.
type InMemoryGenerator struct {
	mu sync.Mutex

	callThreshold float64
	safetyMargin  float64
	window        int
	reporting     *model.ReportingConfig

	called   map[string]struct{} // states with a fired race call
	lastSign map[string]int      // last nonzero margin sign per state
	lastFP   uint64
	lastOK   bool

	events []model.NewsroomEvent
}

// Option applies a configuration option to the InMemoryGenerator.
type Option func(*InMemoryGenerator)

// WithCallThreshold sets the share of a state's counties fully reported
// that must be reached before a race call is considered.
func WithCallThreshold(p float64) Option {
	return func(g *InMemoryGenerator) {
		if p > 0 && p <= 100 {
			g.callThreshold = p
		}
	}
}

// WithSafetyMargin sets the absolute margin percent a state must exceed for
// a race call.
func WithSafetyMargin(p float64) Option {
	return func(g *InMemoryGenerator) {
		if p >= 0 {
			g.safetyMargin = p
		}
	}
}

// WithWindow bounds the number of retained events.
func WithWindow(n int) Option {
	return func(g *InMemoryGenerator) {
		if n > 0 {
			g.window = n
		}
	}
}

// NewInMemoryGenerator creates a generator with configuration options.
func NewInMemoryGenerator(opts ...Option) *InMemoryGenerator {
	g := &InMemoryGenerator{
		callThreshold: defaultCallThresholdPercent,
		safetyMargin:  defaultSafetyMarginPercent,
		window:        defaultWindow,
	}

	// Apply all options
	for _, opt := range opts {
		opt(g)
	}

	g.called = make(map[string]struct{})
	g.lastSign = make(map[string]int)
	return g
}

// Observe scans one snapshot for threshold crossings and margin flips.
func (g *InMemoryGenerator) Observe(ctx context.Context, snap model.Snapshot) []model.NewsroomEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Identical content was already processed; re-emitting would duplicate.
	if g.lastOK && snap.Fingerprint == g.lastFP {
		metrics.RecordNewsroomSuppressed()
		return nil
	}
	g.lastFP = snap.Fingerprint
	g.lastOK = true

	var out []model.NewsroomEvent
	for _, postal := range sortedScopes(snap.States) {
		r := snap.States[postal]

		if flip := g.observeFlipLocked(snap.CursorSeconds, r); flip != nil {
			out = append(out, *flip)
		}
		if call := g.observeCallLocked(snap.CursorSeconds, r); call != nil {
			out = append(out, *call)
		}
	}

	for _, ev := range out {
		g.events = append(g.events, ev)
		metrics.RecordNewsroomEvent(kindOf(ev), string(ev.Severity))
	}
	if over := len(g.events) - g.window; over > 0 {
		g.events = append(g.events[:0], g.events[over:]...)
	}
	return out
}

// observeFlipLocked emits a warning when a state's margin sign changes.
// Callers must hold g.mu.
func (g *InMemoryGenerator) observeFlipLocked(cursor float64, r model.Rollup) *model.NewsroomEvent {
	sign := marginSign(r.MarginAbsolute)
	if sign == 0 {
		return nil
	}
	prev, seen := g.lastSign[r.Scope]
	g.lastSign[r.Scope] = sign
	if !seen || prev == sign {
		return nil
	}

	name := stateName(r.Scope)
	ev := model.NewsroomEvent{
		ID:                    uuid.New().String(),
		SimulationTimeSeconds: cursor,
		Headline:              fmt.Sprintf("Lead change in %s", name),
		Detail: fmt.Sprintf("%s takes the lead from %s with %.1f%% of the expected vote in (margin %+.1f).",
			leaderName(sign), leaderName(prev), r.VoteReportingPercent, r.MarginPercent),
		Scope:    r.Scope,
		Severity: model.SeverityWarning,
	}
	return &ev
}

// observeCallLocked emits a success event the first time a state clears
// both the reporting threshold and the safety margin. Callers must hold g.mu.
func (g *InMemoryGenerator) observeCallLocked(cursor float64, r model.Rollup) *model.NewsroomEvent {
	if _, done := g.called[r.Scope]; done {
		return nil
	}
	if r.ReportingPercent < g.callThreshold {
		return nil
	}
	margin := r.MarginPercent
	if margin < 0 {
		margin = -margin
	}
	if margin <= g.safetyMargin {
		return nil
	}
	g.called[r.Scope] = struct{}{}

	name := stateName(r.Scope)
	detail := fmt.Sprintf("With %.0f%% of counties reporting, %s leads by %.1f points (%d votes).",
		r.ReportingPercent, leaderName(marginSign(r.MarginAbsolute)), margin, abs64(r.MarginAbsolute))
	if label := g.groupDetailLocked(r); label != "" {
		detail += " Reporting group: " + label + "."
	}
	ev := model.NewsroomEvent{
		ID:                    uuid.New().String(),
		SimulationTimeSeconds: cursor,
		Headline:              fmt.Sprintf("%s called for %s", name, leaderName(marginSign(r.MarginAbsolute))),
		Detail:                detail,
		Scope:                 r.Scope,
		Severity:              model.SeveritySuccess,
	}
	return &ev
}

// groupDetailLocked surfaces the first reporting-group label covering a
// county in the state, when pacing metadata is present.
func (g *InMemoryGenerator) groupDetailLocked(r model.Rollup) string {
	if g.reporting == nil || r.StateFIPS == "" {
		return ""
	}
	for _, grp := range g.reporting.Groups {
		for _, fips := range grp.FIPS {
			if geo.StateFIPS(fips) == r.StateFIPS {
				return grp.Label
			}
		}
	}
	return ""
}

// Events returns the retained recent events, oldest first.
func (g *InMemoryGenerator) Events(ctx context.Context) []model.NewsroomEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.NewsroomEvent, len(g.events))
	copy(out, g.events)
	return out
}

// Called reports whether a race call has fired for the given state.
func (g *InMemoryGenerator) Called(ctx context.Context, postal string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.called[postal]
	return ok
}

// SetReportingConfig installs the active scenario's pacing metadata.
func (g *InMemoryGenerator) SetReportingConfig(ctx context.Context, rc *model.ReportingConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reporting = rc
}

// Reset clears events and fired-threshold memory for a new scenario run.
func (g *InMemoryGenerator) Reset(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.called = make(map[string]struct{})
	g.lastSign = make(map[string]int)
	g.events = nil
	g.lastOK = false
}

func marginSign(margin int64) int {
	switch {
	case margin > 0:
		return 1
	case margin < 0:
		return -1
	default:
		return 0
	}
}

func leaderName(sign int) string {
	switch sign {
	case 1:
		return "the Republican"
	case -1:
		return "the Democrat"
	default:
		return "neither side"
	}
}

func stateName(postal string) string {
	if st, ok := geo.Resolve(postal); ok {
		return st.Name
	}
	return postal
}

func kindOf(ev model.NewsroomEvent) string {
	if ev.Severity == model.SeveritySuccess {
		return "call"
	}
	return "lead_flip"
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func sortedScopes(states map[string]model.Rollup) []string {
	out := make([]string, 0, len(states))
	for postal := range states {
		out = append(out, postal)
	}
	sort.Strings(out)
	return out
}
