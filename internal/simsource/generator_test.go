package simsource

import (
	"context"
	"reflect"
	"testing"

	"github.com/okian/precinct/internal/domain/geo"
	"github.com/okian/precinct/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func testConfig() *Config {
	return &Config{
		Seed:            42,
		Counties:        120,
		DurationSeconds: 600,
		Frames:          60,
		ScenarioName:    "Test Night",
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	ctx := context.Background()
	sc1, frames1 := Generate(ctx, testConfig())
	sc2, frames2 := Generate(ctx, testConfig())

	if !reflect.DeepEqual(sc1, sc2) {
		t.Fatal("same seed produced different scenarios")
	}
	if !reflect.DeepEqual(frames1, frames2) {
		t.Fatal("same seed produced different frames")
	}

	cfg := testConfig()
	cfg.Seed = 43
	sc3, _ := Generate(ctx, cfg)
	if reflect.DeepEqual(sc1.Baseline, sc3.Baseline) {
		t.Fatal("different seeds produced identical baselines")
	}
}

func TestGeneratedScenarioShape(t *testing.T) {
	ctx := context.Background()
	sc, frames := Generate(ctx, testConfig())

	if len(sc.Baseline) != 120 {
		t.Fatalf("baseline has %d counties, want 120", len(sc.Baseline))
	}
	if sc.DurationSeconds != 600 {
		t.Fatalf("duration = %v, want 600", sc.DurationSeconds)
	}

	seen := make(map[string]bool)
	for _, b := range sc.Baseline {
		if seen[b.FIPS] {
			t.Fatalf("duplicate county %s", b.FIPS)
		}
		seen[b.FIPS] = true
		if _, ok := geo.ForCounty(b.FIPS); !ok {
			t.Fatalf("county %s has no resolvable state", b.FIPS)
		}
		if b.ExpectedTotalVotes <= 0 {
			t.Fatalf("county %s has non-positive expected votes", b.FIPS)
		}
		if b.BaselineDemShare <= 0 || b.BaselineGopShare <= 0 {
			t.Fatalf("county %s has degenerate shares %v/%v",
				b.FIPS, b.BaselineDemShare, b.BaselineGopShare)
		}
	}

	if sc.Reporting == nil || len(sc.Reporting.Groups) != 3 {
		t.Fatal("reporting groups missing")
	}

	if len(frames) == 0 {
		t.Fatal("no frames generated")
	}
	var prev float64
	for _, f := range frames {
		if f.Timestamp <= prev {
			t.Fatalf("frame timestamps not strictly increasing at %v", f.Timestamp)
		}
		prev = f.Timestamp
		if f.Timestamp > sc.DurationSeconds {
			t.Fatalf("frame timestamp %v beyond duration", f.Timestamp)
		}
	}
}

func TestGeneratedUpdatesAreConsistent(t *testing.T) {
	ctx := context.Background()
	sc, frames := Generate(ctx, testConfig())

	expected := make(map[string]int64, len(sc.Baseline))
	for _, b := range sc.Baseline {
		expected[b.FIPS] = b.ExpectedTotalVotes
	}

	lastPercent := make(map[string]float64)
	for _, f := range frames {
		for fips, u := range f.Counties {
			if u.DemVotes+u.GopVotes+u.OtherVotes > u.TotalVotes {
				t.Fatalf("county %s at t=%v: parts exceed total", fips, f.Timestamp)
			}
			if u.TotalVotes > expected[fips] {
				t.Fatalf("county %s at t=%v: counted %d beyond expected %d",
					fips, f.Timestamp, u.TotalVotes, expected[fips])
			}
			if u.ReportingPercent < lastPercent[fips] {
				t.Fatalf("county %s at t=%v: reporting went backward", fips, f.Timestamp)
			}
			lastPercent[fips] = u.ReportingPercent
			if u.FullyReported && u.ReportingPercent < 100 {
				t.Fatalf("county %s at t=%v: fully reported below 100%%", fips, f.Timestamp)
			}
		}
	}

	// Every county must eventually report in full.
	for fips, pct := range lastPercent {
		if pct < 100 {
			t.Fatalf("county %s never fully reported (%.1f%%)", fips, pct)
		}
	}
	if len(lastPercent) != len(sc.Baseline) {
		t.Fatalf("only %d of %d counties ever appeared in frames",
			len(lastPercent), len(sc.Baseline))
	}
}
