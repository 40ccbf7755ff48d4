package types

import "math/rand/v2"

// NewRand returns the planner's deterministic random source for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5deece66d))
}

// WeightedIndex draws an index with probability proportional to its
// weight. Weights must be non-negative with a positive sum; the last
// positive index absorbs float rounding.
func WeightedIndex(weights []float64, rng *rand.Rand) int {
	var total float64
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if last < 0 {
		return 0
	}

	r := rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if r < w {
			return i
		}
		r -= w
	}
	return last
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Alphanumeric returns n random characters from [A-Za-z0-9].
func Alphanumeric(n int, rng *rand.Rand) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rng.IntN(len(alphanumeric))]
	}
	return string(b)
}
