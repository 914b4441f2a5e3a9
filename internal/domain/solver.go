package domain

import "math"

// Solver bounds and tolerance for ComputeOverall.
const (
	solverLow       = 1.0
	solverHigh      = 8000.0
	solverTolerance = 1e-4

	// eloScale is the logistic scale shared by all ratings.
	eloScale = 400.0
)

// WinProbability returns the Elo-style probability that a player rated a
// beats a player rated b.
func WinProbability(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/eloScale))
}

// ComputeOverall derives the composite difficulty from the thinking and
// implementation sub-ratings. The result is the rating x at which the
// probability of x beating both sub-ratings is exactly one half.
//
// The root is found by bisection over [1, 8000] until the bracket is
// narrower than 1e-4; the lower bracket is returned. The function is pure
// and monotonically non-decreasing in both arguments. Equal inputs do not
// reproduce themselves: ComputeOverall(r, r) is r + 400*log10(1+sqrt(2)),
// about r + 153.
func ComputeOverall(thinking, implementation float64) float64 {
	lo, hi := solverLow, solverHigh
	for hi-lo > solverTolerance {
		mid := (lo + hi) / 2
		p := WinProbability(mid, thinking) * WinProbability(mid, implementation)
		if p > 0.5 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}
