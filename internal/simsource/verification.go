package simsource

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/okian/precinct/internal/domain/model"
)

// Verify-mode constants.
const (
	seekSettleDelay = 500 * time.Millisecond
	marginEpsilon   = 1e-6
)

// checkpoints are the cursor fractions verify mode inspects, chosen to land
// before, inside, and after the bulk of the counting.
var checkpoints = []float64{10, 25, 50, 75, 95}

// Verify drives a running engine through its HTTP API and checks the
// engine's published invariants from the outside.
func Verify(ctx context.Context, cfg *Config) error {
	client := newHTTPClient(cfg.Timeout)
	base := cfg.BaseURL

	log.Printf("checking engine health at %s", base)
	if err := client.GetJSON(ctx, base+"/healthz", nil); err != nil {
		return fmt.Errorf("engine health check failed: %w", err)
	}

	var status model.PlaybackStatus
	if err := client.GetJSON(ctx, base+"/playback", &status); err != nil {
		return fmt.Errorf("playback status failed: %w", err)
	}
	if status.State == model.PlaybackIdle {
		return fmt.Errorf("engine has no scenario loaded; start the stream first")
	}
	log.Printf("engine scenario %q, duration %.0fs", status.ScenarioName, status.DurationSeconds)

	if err := client.PostJSON(ctx, base+"/playback/pause", nil); err != nil {
		log.Printf("pause before verification: %v", err)
	}

	var lastTotal int64 = -1
	for _, pct := range checkpoints {
		if err := seekAndSettle(ctx, client, base, pct); err != nil {
			return err
		}

		nat, states, err := fetchRollups(ctx, client, base)
		if err != nil {
			return err
		}

		if err := checkConservation(nat, states, pct); err != nil {
			return err
		}
		if err := checkMarginSign(nat, states); err != nil {
			return err
		}
		if nat.TotalVotes < lastTotal {
			return fmt.Errorf("at %.0f%%: national total %d fell below the earlier %d",
				pct, nat.TotalVotes, lastTotal)
		}
		lastTotal = nat.TotalVotes

		log.Printf("checkpoint %.0f%%: total=%d reporting=%.1f%% states=%d ok",
			pct, nat.TotalVotes, nat.VoteReportingPercent, len(states))
	}

	if err := checkIdempotentSeek(ctx, client, base); err != nil {
		return err
	}

	log.Printf("all verification checks passed")
	return nil
}

// seekAndSettle issues a percent seek and waits for the derivation to land.
func seekAndSettle(ctx context.Context, client *HTTPClient, base string, pct float64) error {
	if err := client.PostJSON(ctx, base+"/playback/seek", map[string]float64{"percent": pct}); err != nil {
		return fmt.Errorf("seek to %.0f%% failed: %w", pct, err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(seekSettleDelay):
	}
	return nil
}

// fetchRollups reads the national rollup and every state rollup present in
// the current snapshot.
func fetchRollups(ctx context.Context, client *HTTPClient, base string) (model.Rollup, map[string]model.Rollup, error) {
	var nat model.Rollup
	if err := client.GetJSON(ctx, base+"/aggregates/national", &nat); err != nil {
		return model.Rollup{}, nil, fmt.Errorf("national rollup failed: %w", err)
	}

	var counties []model.CountyState
	if err := client.GetJSON(ctx, base+"/counties", &counties); err != nil {
		return model.Rollup{}, nil, fmt.Errorf("county list failed: %w", err)
	}
	seen := make(map[string]bool)
	for _, c := range counties {
		if len(c.FIPS) >= 2 {
			seen[c.FIPS[:2]] = true
		}
	}

	states := make(map[string]model.Rollup, len(seen))
	for prefix := range seen {
		var r model.Rollup
		if err := client.GetJSON(ctx, base+"/aggregates/"+prefix, &r); err != nil {
			// Unknown prefixes fold into the national rollup only.
			continue
		}
		states[r.Scope] = r
	}
	return nat, states, nil
}

// checkConservation verifies state rollups sum to the national rollup.
func checkConservation(nat model.Rollup, states map[string]model.Rollup, pct float64) error {
	var dem, gop, total int64
	for _, r := range states {
		dem += r.DemVotes
		gop += r.GopVotes
		total += r.TotalVotes
	}
	// Counties in unknown states count nationally but in no state rollup.
	if dem > nat.DemVotes || gop > nat.GopVotes || total > nat.TotalVotes {
		return fmt.Errorf("at %.0f%%: state sums (%d/%d/%d) exceed national (%d/%d/%d)",
			pct, dem, gop, total, nat.DemVotes, nat.GopVotes, nat.TotalVotes)
	}
	return nil
}

// checkMarginSign verifies the sign convention on every rollup: positive
// margins mean the Republican column leads.
func checkMarginSign(nat model.Rollup, states map[string]model.Rollup) error {
	check := func(r model.Rollup) error {
		diff := r.GopVotes - r.DemVotes
		switch {
		case diff > 0 && r.MarginPercent < -marginEpsilon:
			return fmt.Errorf("%s: GOP leads but margin is %.2f", r.Scope, r.MarginPercent)
		case diff < 0 && r.MarginPercent > marginEpsilon:
			return fmt.Errorf("%s: Dem leads but margin is %.2f", r.Scope, r.MarginPercent)
		}
		return nil
	}
	if err := check(nat); err != nil {
		return err
	}
	for _, r := range states {
		if err := check(r); err != nil {
			return err
		}
	}
	return nil
}

// checkIdempotentSeek seeks the same target twice and requires identical
// county states both times.
func checkIdempotentSeek(ctx context.Context, client *HTTPClient, base string) error {
	const target = 50.0

	fetch := func() ([]model.CountyState, error) {
		if err := seekAndSettle(ctx, client, base, target); err != nil {
			return nil, err
		}
		var counties []model.CountyState
		if err := client.GetJSON(ctx, base+"/counties", &counties); err != nil {
			return nil, fmt.Errorf("county list failed: %w", err)
		}
		return counties, nil
	}

	first, err := fetch()
	if err != nil {
		return err
	}
	// Bounce away so the second fetch is a genuine re-derivation.
	if err := seekAndSettle(ctx, client, base, 10); err != nil {
		return err
	}
	second, err := fetch()
	if err != nil {
		return err
	}

	if len(first) != len(second) {
		return fmt.Errorf("idempotent seek: county counts differ (%d vs %d)", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			return fmt.Errorf("idempotent seek: county %s differs between derivations", first[i].FIPS)
		}
	}
	log.Printf("idempotent seek verified over %d counties", len(first))
	return nil
}
