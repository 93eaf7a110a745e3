package sampler

import (
	"math"
	"math/rand"
)

// ConstantPolicy returns a SamplingFunc that always returns period
// unchanged (spec §4.4). Useful for deterministic, byte-identical
// replay in tests.
func ConstantPolicy() SamplingFunc {
	return func(period uint64) uint64 {
		return period
	}
}

// ExponentialPolicy returns a SamplingFunc drawing from rng to produce
// a Poisson process with mean period between samples (spec §4.4):
// floor(period * -ln(1 - U)), U uniform on [0, 1).
//
// rng is an explicit handle rather than the process-global generator
// so callers can inject a deterministic seed in tests (spec §9, "Global
// randomness").
func ExponentialPolicy(rng *rand.Rand) SamplingFunc {
	return func(period uint64) uint64 {
		u := rng.Float64()
		return uint64(math.Floor(float64(period) * -math.Log(1-u)))
	}
}

// clampMin1 enforces the "max(sample_rnd(...), 1)" contract from spec
// §4.4: next_sample must always advance.
func clampMin1(v uint64) uint64 {
	if v < 1 {
		return 1
	}
	return v
}
