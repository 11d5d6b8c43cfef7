package statestore

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

type seriesPoint struct {
	ts float64
	u  model.CountyUpdate
}

// fakeSeries is a fixed in-memory timeline; points must be sorted by ts.
type fakeSeries struct {
	points map[string][]seriesPoint
}

func (f *fakeSeries) EntityAtOrBefore(ctx context.Context, fips string, t float64) (model.CountyUpdate, float64, bool) {
	pts := f.points[fips]
	for i := len(pts) - 1; i >= 0; i-- {
		if pts[i].ts <= t {
			return pts[i].u, pts[i].ts, true
		}
	}
	return model.CountyUpdate{}, 0, false
}

func (f *fakeSeries) EntityIDs(ctx context.Context) []string {
	ids := make([]string, 0, len(f.points))
	for fips := range f.points {
		ids = append(ids, fips)
	}
	sort.Strings(ids)
	return ids
}

func update(dem, gop, total int64, reporting float64) model.CountyUpdate {
	return model.CountyUpdate{
		DemVotes:         dem,
		GopVotes:         gop,
		OtherVotes:       total - dem - gop,
		TotalVotes:       total,
		ReportingPercent: reporting,
	}
}

func baseline(fips ...string) []model.BaselineCounty {
	out := make([]model.BaselineCounty, 0, len(fips))
	for _, f := range fips {
		out = append(out, model.BaselineCounty{FIPS: f, ExpectedTotalVotes: 10000})
	}
	return out
}

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

func boolp(v bool) *bool { return &v }

func TestMemoryStore_ZeroStatesBeforeReplay(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeSeries{}, baseline("06037", "48201"))

	if count := store.Count(ctx); count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	st, ok := store.County(ctx, "06037")
	if !ok {
		t.Fatal("expected baseline county to be materialized")
	}
	if st.FIPS != "06037" || st.TotalVotes != 0 || st.ReportingPercent != 0 {
		t.Errorf("expected zeroed state, got %+v", st)
	}
}

func TestMemoryStore_FIPSNormalization(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeSeries{}, baseline("6037"))

	if _, ok := store.County(ctx, "06037"); !ok {
		t.Error("expected padded id to resolve")
	}
	if _, ok := store.County(ctx, "6037"); !ok {
		t.Error("expected unpadded lookup to resolve")
	}
	b := store.Baseline(ctx)
	if _, ok := b["06037"]; !ok {
		t.Errorf("expected baseline keyed by padded id, got keys %v", keysOf(b))
	}
	if b["06037"].StateFIPS != "06" {
		t.Errorf("expected derived state fips 06, got %q", b["06037"].StateFIPS)
	}
}

func TestMemoryStore_ApplyUpToCursor(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {
			{ts: 10, u: update(100, 80, 200, 20)},
			{ts: 20, u: update(300, 250, 600, 60)},
		},
		"48201": {
			{ts: 15, u: update(50, 90, 150, 30)},
		},
	}}
	store := NewMemoryStore(series, baseline("06037", "48201"))

	store.ApplyUpToCursor(ctx, 12)
	st, _ := store.County(ctx, "06037")
	if st.DemVotes != 100 || st.SourceTimestamp != 10 {
		t.Errorf("expected first update at cursor 12, got %+v", st)
	}
	st, _ = store.County(ctx, "48201")
	if st.TotalVotes != 0 || st.SourceTimestamp != 0 {
		t.Errorf("expected zero state before first frame, got %+v", st)
	}

	store.ApplyUpToCursor(ctx, 30)
	st, _ = store.County(ctx, "06037")
	if st.DemVotes != 300 || st.SourceTimestamp != 20 {
		t.Errorf("expected latest update at cursor 30, got %+v", st)
	}
	st, _ = store.County(ctx, "48201")
	if st.GopVotes != 90 || st.SourceTimestamp != 15 {
		t.Errorf("expected latest update at cursor 30, got %+v", st)
	}
}

func TestMemoryStore_SeekIdempotence(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {
			{ts: 10, u: update(100, 80, 200, 20)},
			{ts: 20, u: update(300, 250, 600, 60)},
			{ts: 40, u: update(500, 400, 1000, 100)},
		},
	}}
	store := NewMemoryStore(series, baseline("06037"))

	store.ApplyUpToCursor(ctx, 25)
	first, _ := store.County(ctx, "06037")
	fp := store.Fingerprint(ctx)

	// Wander the cursor around, then come back.
	store.ApplyUpToCursor(ctx, 5)
	store.ApplyUpToCursor(ctx, 41)
	store.ApplyUpToCursor(ctx, 25)

	again, _ := store.County(ctx, "06037")
	if first != again {
		t.Errorf("expected identical state after revisiting cursor: %+v vs %+v", first, again)
	}
	if got := store.Fingerprint(ctx); got != fp {
		t.Errorf("expected identical fingerprint after revisiting cursor: %d vs %d", fp, got)
	}
}

func TestMemoryStore_OverrideSurvivesReplay(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {
			{ts: 10, u: update(100, 80, 200, 20)},
			{ts: 20, u: update(300, 250, 600, 60)},
		},
	}}
	store := NewMemoryStore(series, baseline("06037"))
	store.ApplyUpToCursor(ctx, 12)

	st, err := store.SetManualOverride(ctx, "06037", model.OverridePatch{
		DemVotes: i64(999),
		GopVotes: i64(1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Recomputed total folds in the untouched other-votes component (20).
	if !st.ManualOverride || st.DemVotes != 999 || st.TotalVotes != 1020 {
		t.Fatalf("expected merged override state, got %+v", st)
	}

	// Replays in both directions must not touch the pinned county.
	store.ApplyUpToCursor(ctx, 30)
	store.ApplyUpToCursor(ctx, 0)
	st, _ = store.County(ctx, "06037")
	if st.DemVotes != 999 || !st.ManualOverride {
		t.Errorf("expected override to survive replay, got %+v", st)
	}

	if got := store.Overridden(ctx); len(got) != 1 || got[0] != "06037" {
		t.Errorf("expected overridden list [06037], got %v", got)
	}
}

func TestMemoryStore_OverrideValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeSeries{}, baseline("06037"))

	cases := []struct {
		name  string
		fips  string
		patch model.OverridePatch
		want  error
	}{
		{"empty patch", "06037", model.OverridePatch{}, model.ErrEmptyPatch},
		{"negative votes", "06037", model.OverridePatch{DemVotes: i64(-5)}, model.ErrNegativeVotes},
		{"reporting above 100", "06037", model.OverridePatch{ReportingPercent: f64(150)}, model.ErrInvalidReportingPercent},
		{"unknown county", "99999", model.OverridePatch{DemVotes: i64(10)}, ErrUnknownCounty},
	}
	for _, tc := range cases {
		if _, err := store.SetManualOverride(ctx, tc.fips, tc.patch); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if got := store.Overridden(ctx); len(got) != 0 {
		t.Errorf("expected no overrides after rejected writes, got %v", got)
	}
}

func TestMemoryStore_OverrideTotalHandling(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeSeries{}, baseline("06037"))

	// Components without a total: total is recomputed.
	st, err := store.SetManualOverride(ctx, "06037", model.OverridePatch{
		DemVotes:   i64(100),
		GopVotes:   i64(50),
		OtherVotes: i64(25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalVotes != 175 {
		t.Errorf("expected recomputed total 175, got %d", st.TotalVotes)
	}

	// An explicit total below dem+gop is corrected the same way feed data is.
	st, err = store.SetManualOverride(ctx, "06037", model.OverridePatch{
		DemVotes:   i64(80),
		GopVotes:   i64(40),
		TotalVotes: i64(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TotalVotes != 120 || st.OtherVotes != 0 {
		t.Errorf("expected corrected total 120 with other 0, got %+v", st)
	}

	// Flag-only patch keeps the vote counts.
	st, err = store.SetManualOverride(ctx, "06037", model.OverridePatch{
		FullyReported: boolp(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.FullyReported || st.DemVotes != 80 {
		t.Errorf("expected flag-only merge, got %+v", st)
	}
}

func TestMemoryStore_ClearOverride(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {{ts: 10, u: update(100, 80, 200, 20)}},
	}}
	store := NewMemoryStore(series, baseline("06037"))
	store.ApplyUpToCursor(ctx, 15)

	if _, err := store.SetManualOverride(ctx, "06037", model.OverridePatch{DemVotes: i64(777)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.ClearOverride(ctx, "06037") {
		t.Fatal("expected clear to report an active override")
	}
	if store.ClearOverride(ctx, "06037") {
		t.Error("expected second clear to report nothing to remove")
	}

	store.ApplyUpToCursor(ctx, 15)
	st, _ := store.County(ctx, "06037")
	if st.DemVotes != 100 || st.ManualOverride {
		t.Errorf("expected rederived state after clear, got %+v", st)
	}
}

func TestMemoryStore_UnknownCountyFlaggedOnce(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {{ts: 10, u: update(100, 80, 200, 20)}},
		"99999": {{ts: 10, u: update(1, 2, 3, 5)}},
	}}
	store := NewMemoryStore(series, baseline("06037"))

	store.ApplyUpToCursor(ctx, 15)
	store.ApplyUpToCursor(ctx, 20)
	store.ApplyUpToCursor(ctx, 25)

	unknown := store.UnknownCounties(ctx)
	if len(unknown) != 1 || unknown[0] != "99999" {
		t.Fatalf("expected unknown list [99999], got %v", unknown)
	}
	// Unknown counties are still materialized so national rollups can use them.
	if st, ok := store.County(ctx, "99999"); !ok || st.GopVotes != 2 {
		t.Errorf("expected unknown county state to be materialized, got %+v ok=%v", st, ok)
	}
}

func TestMemoryStore_FingerprintTracksWrites(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {{ts: 10, u: update(100, 80, 200, 20)}},
	}}
	store := NewMemoryStore(series, baseline("06037"))
	store.ApplyUpToCursor(ctx, 15)

	base := store.Fingerprint(ctx)
	if again := store.Fingerprint(ctx); again != base {
		t.Fatal("expected fingerprint to be stable between writes")
	}

	if _, err := store.SetManualOverride(ctx, "06037", model.OverridePatch{DemVotes: i64(101)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overridden := store.Fingerprint(ctx)
	if overridden == base {
		t.Error("expected fingerprint to change after override")
	}

	store.ClearOverride(ctx, "06037")
	cleared := store.Fingerprint(ctx)
	if cleared == overridden {
		t.Error("expected fingerprint to change after clearing override")
	}
}

func TestMemoryStore_ClosedStore(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {{ts: 10, u: update(100, 80, 200, 20)}},
	}}
	store := NewMemoryStore(series, baseline("06037"))
	store.ApplyUpToCursor(ctx, 15)

	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.SetManualOverride(ctx, "06037", model.OverridePatch{DemVotes: i64(1)}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}

	// Replays become no-ops but reads keep serving the last states.
	store.ApplyUpToCursor(ctx, 0)
	if st, _ := store.County(ctx, "06037"); st.DemVotes != 100 {
		t.Errorf("expected frozen state after close, got %+v", st)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	series := &fakeSeries{points: map[string][]seriesPoint{
		"06037": {
			{ts: 10, u: update(100, 80, 200, 20)},
			{ts: 20, u: update(300, 250, 600, 60)},
		},
		"48201": {
			{ts: 15, u: update(50, 90, 150, 30)},
		},
	}}
	store := NewMemoryStore(series, baseline("06037", "48201"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.ApplyUpToCursor(ctx, float64((n*j)%40))
				store.CountyStates(ctx)
				store.Fingerprint(ctx)
				store.County(ctx, "06037")
			}
		}(i)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected 2 counties after concurrent access, got %d", count)
	}
}

func keysOf(m map[string]model.BaselineCounty) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
