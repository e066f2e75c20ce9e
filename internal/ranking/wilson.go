// Package ranking computes submission quality scores and display order.
// It is pure: no I/O, no clocks, no stores.
package ranking

import "math"

// z is the standard normal quantile for a 95% confidence interval.
const z = 1.96

// Score returns the Wilson lower confidence bound for the true up-vote
// proportion given weighted up and down tallies. The result is in [0, 1]
// and returns 0 when no votes have been cast.
func Score(votesUp, votesDown int) float64 {
	n := float64(votesUp + votesDown)
	if n == 0 {
		return 0
	}

	phat := float64(votesUp) / n
	z2 := z * z
	return (phat + z2/(2*n) - z*math.Sqrt(phat*(1-phat)/n+z2/(4*n*n))) / (1 + z2/n)
}

// WeightedUp folds super votes into the up-vote tally. A super vote counts as
// three equivalent up-votes: it is already included once in upVotes (every
// super vote is stored as a +1 vote), so each contributes two extra here.
// This weighting is the single definition used everywhere a score is
// computed, live recomputes and windowed snapshots alike.
func WeightedUp(upVotes, superVotes int) int {
	return upVotes + 2*superVotes
}

// ScoreWeighted is the composition used by the engine: super-weighted up
// tally against the raw down tally.
func ScoreWeighted(upVotes, downVotes, superVotes int) float64 {
	return Score(WeightedUp(upVotes, superVotes), downVotes)
}
