package battle

import "math/rand/v2"

// Source provides the random draws a trial consumes.
//
// *rand.Rand from math/rand/v2 satisfies Source.
type Source interface {
	// IntN returns a uniform integer in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// NewSeededSource returns the deterministic source used for trial index trial
// of a batch seeded with seed.
func NewSeededSource(seed int64, trial int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(trial)))
}

// randRange returns a uniform integer in [lo, hi]. No draw is consumed when
// the range holds a single value.
func randRange(rng Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// percentChance rolls a percent check. No draw is consumed for chances of 0 or
// less; chances of 100 or more always pass but still draw.
func percentChance(rng Source, chance int) bool {
	if chance <= 0 {
		return false
	}
	return rng.IntN(100) < chance
}
