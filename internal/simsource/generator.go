package simsource

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/precinct/internal/domain/geo"
	"github.com/okian/precinct/internal/domain/model"
	"github.com/okian/precinct/pkg/logger"
)

// Generation constants.
const (
	minExpectedVotes   = 200
	maxExpectedVotes   = 900000
	baseExpectedVotes  = 1500.0
	sizeSpread         = 1.3 // log-scale spread of county sizes
	urbanLeanPerDecade = 0.07
	urbanPivotVotes    = 5000.0
	minDemShare        = 0.12
	maxDemShare        = 0.88
	earlySkewSpread    = 0.05 // early returns wander this far from the final share
	minOtherShare      = 0.01
	otherShareSpread   = 0.04
	minProgressDelta   = 0.005 // emit a county update only past this much new progress
)

// Reporting group labels.
const (
	groupEarly   = "early"
	groupMidwave = "midwave"
	groupLate    = "late-rural"
)

// county is the generator's working view of one county.
type county struct {
	baseline model.BaselineCounty
	demShare float64 // final Democratic share of the counted vote
	othShare float64 // final share of votes outside the two major columns
	skew     float64 // early-return drift away from the final share
	start    float64 // first simulated second with any counted ballots
	finish   float64 // simulated second the county fully reports
}

// Generate builds a deterministic scenario and its frame schedule. The same
// seed always produces the same night, which makes streamed sessions and
// verify runs reproducible.
func Generate(ctx context.Context, cfg *Config) (model.Scenario, []model.Frame) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	states := geo.All()

	// Each state gets a persistent partisan lean for the night.
	leans := make(map[string]float64, len(states))
	for _, st := range states {
		leans[st.FIPS] = rng.NormFloat64() * 0.11
	}

	groups := []model.ReportingGroup{
		{Label: groupEarly, StartOffsetSeconds: 0},
		{Label: groupMidwave, StartOffsetSeconds: 0.15 * cfg.DurationSeconds},
		{Label: groupLate, StartOffsetSeconds: 0.40 * cfg.DurationSeconds},
	}

	counties := make([]county, 0, cfg.Counties)
	perState := make(map[string]int, len(states))
	for i := 0; i < cfg.Counties; i++ {
		st := states[rng.Intn(len(states))]
		perState[st.FIPS]++
		// Real county codes are odd; keep that texture.
		code := perState[st.FIPS]*2 - 1
		fips := fmt.Sprintf("%s%03d", st.FIPS, code)

		expected := int64(baseExpectedVotes * math.Exp(rng.NormFloat64()*sizeSpread))
		if expected < minExpectedVotes {
			expected = minExpectedVotes
		}
		if expected > maxExpectedVotes {
			expected = maxExpectedVotes
		}

		// Bigger counties lean Democratic, smaller ones Republican, on top
		// of the state lean.
		urban := urbanLeanPerDecade * math.Log10(float64(expected)/urbanPivotVotes)
		demShare := clampShare(0.5 + leans[st.FIPS] + urban + rng.NormFloat64()*0.06)
		otherShare := minOtherShare + rng.Float64()*otherShareSpread

		gi := rng.Intn(len(groups))
		start := groups[gi].StartOffsetSeconds + rng.Float64()*0.15*cfg.DurationSeconds
		finish := start + (0.25+rng.Float64()*0.55)*(cfg.DurationSeconds-start)
		if finish <= start {
			finish = start + 1
		}

		counties = append(counties, county{
			baseline: model.BaselineCounty{
				FIPS:               fips,
				StateFIPS:          st.FIPS,
				ExpectedTotalVotes: expected,
				BaselineDemShare:   demShare,
				BaselineGopShare:   1 - demShare - otherShare,
			},
			demShare: demShare,
			othShare: otherShare,
			skew:     rng.NormFloat64() * earlySkewSpread,
			start:    start,
			finish:   finish,
		})
		groups[gi].FIPS = append(groups[gi].FIPS, fips)
	}

	sc := model.Scenario{
		ID:              fmt.Sprintf("gen-%d", cfg.Seed),
		Name:            cfg.ScenarioName,
		DurationSeconds: cfg.DurationSeconds,
		Reporting:       &model.ReportingConfig{Groups: groups},
	}
	for _, c := range counties {
		sc.Baseline = append(sc.Baseline, c.baseline)
	}

	frames := buildFrames(cfg, counties)
	logger.Get().Info(ctx, "scenario generated",
		logger.String("scenario_id", sc.ID),
		logger.Int("counties", len(sc.Baseline)),
		logger.Int("frames", len(frames)),
		logger.Int64("seed", cfg.Seed))
	return sc, frames
}

// buildFrames walks the frame schedule and emits an absolute snapshot for
// every county whose progress moved since its last appearance.
func buildFrames(cfg *Config, counties []county) []model.Frame {
	frames := make([]model.Frame, 0, cfg.Frames)
	lastProgress := make([]float64, len(counties))

	for i := 1; i <= cfg.Frames; i++ {
		ts := cfg.DurationSeconds * float64(i) / float64(cfg.Frames)
		updates := make(map[string]model.CountyUpdate)

		for ci := range counties {
			c := &counties[ci]
			p := c.progressAt(ts)
			if p-lastProgress[ci] < minProgressDelta && !(p >= 1 && lastProgress[ci] < 1) {
				continue
			}
			lastProgress[ci] = p
			updates[c.baseline.FIPS] = c.snapshotAt(p)
		}

		if len(updates) == 0 {
			continue
		}
		frames = append(frames, model.Frame{Timestamp: ts, Counties: updates})
	}
	return frames
}

// progressAt returns the reported fraction at a simulated second, eased so
// counting starts slow, peaks, and tails off.
func (c *county) progressAt(t float64) float64 {
	if t <= c.start {
		return 0
	}
	if t >= c.finish {
		return 1
	}
	x := (t - c.start) / (c.finish - c.start)
	return x * x * (3 - 2*x)
}

// snapshotAt converts a progress fraction into the absolute counts the wire
// carries. Early returns drift from the final share and converge as the
// count completes.
func (c *county) snapshotAt(p float64) model.CountyUpdate {
	counted := float64(c.baseline.ExpectedTotalVotes) * p
	share := clampShare(c.demShare + c.skew*(1-p))
	other := int64(counted * c.othShare)
	dem := int64(counted * share)
	total := int64(counted)
	gop := total - dem - other
	if gop < 0 {
		gop = 0
	}
	return model.CountyUpdate{
		DemVotes:         dem,
		GopVotes:         gop,
		OtherVotes:       other,
		TotalVotes:       total,
		ReportingPercent: p * 100,
		FullyReported:    p >= 1,
	}
}

func clampShare(s float64) float64 {
	if s < minDemShare {
		return minDemShare
	}
	if s > maxDemShare {
		return maxDemShare
	}
	return s
}
