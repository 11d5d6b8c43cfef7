package aggregate

import "math"

// Steepness terms for the probability curve. The base term keeps thin
// margins near 50 while little vote is in; the quadratic term sharpens the
// curve as the decided share approaches 1.
const (
	winProbBaseSteepness = 0.04
	winProbDecidedBoost  = 0.26
)

// WinProbability maps a margin (percentage points, Republican-positive) and
// the decided vote share (0..1) to the heuristic chance the Republican
// column prevails, bounded to [0, 100]. The curve is 50 at a zero margin,
// monotonic in the margin, and symmetric: WinProbability(-m, s) equals
// 100 - WinProbability(m, s). It is a display heuristic, not a statistical
// model; swap this function to change the estimator without touching rollup
// plumbing.
func WinProbability(marginPercent, decidedShare float64) float64 {
	ds := math.Max(0, math.Min(1, decidedShare))
	k := winProbBaseSteepness + winProbDecidedBoost*ds*ds
	p := 50 + 50*math.Tanh(marginPercent*k)
	return math.Max(0, math.Min(100, p))
}
