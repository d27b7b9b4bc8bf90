package pathsel

import (
	"fmt"
	"math/rand"

	"torpathsim/internal/model"
)

// Rand is the randomness a Selector draws from. *math/rand.Rand satisfies
// it. A Rand is stateful and must not be shared between concurrent runs.
type Rand interface {
	// Float64 returns a uniform value in [0.0, 1.0).
	Float64() float64

	// Intn returns a uniform value in [0, n).
	Intn(n int) int
}

// NewSeededRand returns a deterministic Rand for the given seed.
func NewSeededRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// bandwidthWeights returns the raw bandwidth of every relay in the pool, with
// non-positive bandwidths zeroed.
func bandwidthWeights(pool []*model.Relay) []float64 {
	weights := make([]float64, len(pool))
	for i, r := range pool {
		if r.Bandwidth > 0 {
			weights[i] = float64(r.Bandwidth)
		}
	}
	return weights
}

// pickWeighted draws one relay from pool with probability proportional to
// its weight. weights[i] belongs to pool[i]; negative weights count as zero.
// When the positive weights sum to zero the draw falls back to a uniform
// pick, so a pool of unmeasured relays still yields a hop.
//
// Pool order matters: the cumulative walk is done in slice order and the
// first relay whose running total strictly exceeds the draw wins.
func pickWeighted(rng Rand, pool []*model.Relay,
	weights []float64) (*model.Relay, error) {

	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no candidates to choose from",
			ErrInvalidArgument)
	}
	if len(weights) != len(pool) {
		return nil, fmt.Errorf("%w: %d weights for %d candidates",
			ErrInvalidArgument, len(weights), len(pool))
	}

	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}

	if total <= 0 {
		return pool[rng.Intn(len(pool))], nil
	}

	r := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if cumulative > r {
			return pool[i], nil
		}
	}

	// Only reachable through floating point rounding at the very top of
	// the range. Hand out the last relay that carries weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return pool[i], nil
		}
	}
	return pool[len(pool)-1], nil
}
