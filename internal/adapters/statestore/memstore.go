package statestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/precinct/internal/domain/geo"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
	"github.com/okian/precinct/pkg/metrics"
)

const component = "statestore"

// MemoryStore is an in-memory Store keyed by county FIPS. All methods are
// safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	series   Series
	baseline map[string]model.BaselineCounty
	states   map[string]model.CountyState
	edited   map[string]struct{}
	unknown  map[string]struct{}

	fprint   uint64
	fprintOK bool

	closed bool
	logger logger.Logger
}

// NewMemoryStore builds a store over the given series, seeded with zeroed
// states for every baseline county so reads are meaningful before the first
// replay.
func NewMemoryStore(series Series, baseline []model.BaselineCounty, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		series:   series,
		baseline: make(map[string]model.BaselineCounty, len(baseline)),
		edited:   make(map[string]struct{}),
		unknown:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named(component)
	}

	for _, b := range baseline {
		b.FIPS = geo.NormalizeFIPS(b.FIPS)
		if b.StateFIPS == "" {
			b.StateFIPS = geo.StateFIPS(b.FIPS)
		}
		s.baseline[b.FIPS] = b
	}
	s.states = make(map[string]model.CountyState, len(s.baseline))
	for fips := range s.baseline {
		s.states[fips] = model.CountyState{FIPS: fips}
	}

	metrics.UpdateCountiesTracked(len(s.baseline))
	metrics.UpdateStatesTracked(s.distinctStates())
	metrics.UpdateOverridesActive(0)
	return s
}

// ApplyUpToCursor rebuilds all county states as of the cursor and refreshes
// the fingerprint in the same pass.
func (s *MemoryStore) ApplyUpToCursor(ctx context.Context, cursor float64) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreApplyLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	ids := s.unionIDsLocked(ctx)
	next := make(map[string]model.CountyState, len(ids))
	digest := newStateDigest()
	for _, fips := range ids {
		if _, known := s.baseline[fips]; !known {
			s.flagUnknownLocked(ctx, fips)
		}
		if _, pinned := s.edited[fips]; pinned {
			st := s.states[fips]
			next[fips] = st
			digest.add(st)
			continue
		}
		st := model.CountyState{FIPS: fips}
		if u, ts, ok := s.series.EntityAtOrBefore(ctx, fips, cursor); ok {
			st.DemVotes = u.DemVotes
			st.GopVotes = u.GopVotes
			st.OtherVotes = u.OtherVotes
			st.TotalVotes = u.TotalVotes
			st.ReportingPercent = u.ReportingPercent
			st.FullyReported = u.FullyReported
			st.SourceTimestamp = ts
		}
		next[fips] = st
		digest.add(st)
	}
	s.states = next
	s.fprint = digest.sum()
	s.fprintOK = true
}

// CountyStates returns a copy of the materialized states.
func (s *MemoryStore) CountyStates(ctx context.Context) map[string]model.CountyState {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.CountyState, len(s.states))
	for fips, st := range s.states {
		out[fips] = st
	}
	return out
}

// County returns the materialized state for a single county.
func (s *MemoryStore) County(ctx context.Context, fips string) (model.CountyState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[geo.NormalizeFIPS(fips)]
	return st, ok
}

// Baseline returns a copy of the scenario baseline keyed by county id.
func (s *MemoryStore) Baseline(ctx context.Context) map[string]model.BaselineCounty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.BaselineCounty, len(s.baseline))
	for fips, b := range s.baseline {
		out[fips] = b
	}
	return out
}

// SetManualOverride merges a validated partial edit into a county state and
// pins the county so replays leave it alone until the override is cleared.
func (s *MemoryStore) SetManualOverride(ctx context.Context, fips string, patch model.OverridePatch) (model.CountyState, error) {
	fips = geo.NormalizeFIPS(fips)
	if err := patch.Validate(); err != nil {
		metrics.RecordOverrideRejection()
		metrics.RecordErrorByComponent(component, "override_validation")
		return model.CountyState{}, fmt.Errorf("invalid override for county %s: %w", fips, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.CountyState{}, ErrStoreClosed
	}
	st, ok := s.states[fips]
	if !ok {
		metrics.RecordOverrideRejection()
		metrics.RecordErrorByComponent(component, "unknown_county")
		return model.CountyState{}, fmt.Errorf("%w: %s", ErrUnknownCounty, fips)
	}

	partsGiven := patch.DemVotes != nil || patch.GopVotes != nil || patch.OtherVotes != nil
	if patch.DemVotes != nil {
		st.DemVotes = *patch.DemVotes
	}
	if patch.GopVotes != nil {
		st.GopVotes = *patch.GopVotes
	}
	if patch.OtherVotes != nil {
		st.OtherVotes = *patch.OtherVotes
	}
	switch {
	case patch.TotalVotes != nil:
		st.TotalVotes = *patch.TotalVotes
	case partsGiven:
		st.TotalVotes = st.DemVotes + st.GopVotes + st.OtherVotes
	}
	if patch.ReportingPercent != nil {
		st.ReportingPercent = *patch.ReportingPercent
	}
	if patch.FullyReported != nil {
		st.FullyReported = *patch.FullyReported
	}

	// The merged result must satisfy the same invariants as feed data.
	u, _ := model.NormalizeUpdate(st.Update())
	st.DemVotes = u.DemVotes
	st.GopVotes = u.GopVotes
	st.OtherVotes = u.OtherVotes
	st.TotalVotes = u.TotalVotes
	st.ReportingPercent = u.ReportingPercent
	st.FullyReported = u.FullyReported
	st.ManualOverride = true

	s.states[fips] = st
	s.edited[fips] = struct{}{}
	s.fprintOK = false
	metrics.UpdateOverridesActive(len(s.edited))
	s.logger.Info(ctx, "manual override applied",
		logger.String("fips", fips),
		logger.Int64("total_votes", st.TotalVotes))
	return st, nil
}

// ClearOverride unpins a county. The stored values stay in place until the
// next replay rederives them.
func (s *MemoryStore) ClearOverride(ctx context.Context, fips string) bool {
	fips = geo.NormalizeFIPS(fips)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edited[fips]; !ok {
		return false
	}
	delete(s.edited, fips)
	if st, ok := s.states[fips]; ok {
		st.ManualOverride = false
		s.states[fips] = st
	}
	s.fprintOK = false
	metrics.UpdateOverridesActive(len(s.edited))
	s.logger.Info(ctx, "manual override cleared", logger.String("fips", fips))
	return true
}

// Overridden returns the sorted ids of counties with an active override.
func (s *MemoryStore) Overridden(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.edited)
}

// UnknownCounties returns the sorted ids flagged as absent from the baseline.
func (s *MemoryStore) UnknownCounties(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.unknown)
}

// Fingerprint returns the digest of the materialized states, recomputing it
// only when a write invalidated the memoized value.
func (s *MemoryStore) Fingerprint(ctx context.Context) uint64 {
	s.mu.RLock()
	if s.fprintOK {
		v := s.fprint
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fprintOK {
		return s.fprint
	}
	ids := make([]string, 0, len(s.states))
	for fips := range s.states {
		ids = append(ids, fips)
	}
	sort.Strings(ids)
	digest := newStateDigest()
	for _, fips := range ids {
		digest.add(s.states[fips])
	}
	s.fprint = digest.sum()
	s.fprintOK = true
	return s.fprint
}

// Count returns the number of materialized county states.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Close marks the store as closed. Reads keep working against the last
// materialized states.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// unionIDsLocked returns the sorted union of baseline ids and feed ids.
// Callers must hold s.mu.
func (s *MemoryStore) unionIDsLocked(ctx context.Context) []string {
	ids := make([]string, 0, len(s.baseline))
	for fips := range s.baseline {
		ids = append(ids, fips)
	}
	for _, fips := range s.series.EntityIDs(ctx) {
		if _, ok := s.baseline[fips]; !ok {
			ids = append(ids, fips)
		}
	}
	sort.Strings(ids)
	return ids
}

// flagUnknownLocked records a county absent from the baseline exactly once.
// Callers must hold s.mu.
func (s *MemoryStore) flagUnknownLocked(ctx context.Context, fips string) {
	if _, seen := s.unknown[fips]; seen {
		return
	}
	s.unknown[fips] = struct{}{}
	metrics.RecordUnknownCounty()
	s.logger.Warn(ctx, "county not in scenario baseline; excluded from state rollups",
		logger.String("fips", fips))
}

func (s *MemoryStore) distinctStates() int {
	seen := make(map[string]struct{})
	for fips := range s.baseline {
		if st, ok := geo.ForCounty(fips); ok {
			seen[st.FIPS] = struct{}{}
		}
	}
	return len(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
