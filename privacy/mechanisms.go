package privacy

import (
	"math"
	"math/rand"
)

// Mechanism names recorded in the ledger.
const (
	MechanismLaplace     = "laplace"
	MechanismGaussian    = "gaussian"
	MechanismExponential = "exponential"
	MechanismReset       = "reset"
)

// gaussianDelta is the failure probability of the Gaussian mechanism.
const gaussianDelta = 1e-5

// laplaceNoise draws a sample from Laplace(0, scale) where
// scale = sensitivity / epsilon.
func laplaceNoise(rng *rand.Rand, sensitivity, epsilon float64) float64 {
	scale := sensitivity / epsilon
	// Inverse CDF sampling: u uniform in (-0.5, 0.5).
	u := rng.Float64() - 0.5
	return -scale * sign(u) * math.Log(1-2*math.Abs(u))
}

// gaussianSigma computes the Gaussian mechanism's noise standard deviation:
// sigma = sqrt(2 ln(1.25/delta)) * sensitivity / epsilon.
func gaussianSigma(sensitivity, epsilon float64) float64 {
	return math.Sqrt(2*math.Log(1.25/gaussianDelta)) * sensitivity / epsilon
}

// exponentialSelect samples k indices without replacement with
// P(i) proportional to exp(epsilon * score_i / (2 * sensitivity)).
// With epsilon = 0 the selection degenerates to uniform random, which is the
// correct zero-budget behavior: maximal noise, no leakage.
func exponentialSelect(rng *rand.Rand, scores []float64, k int, sensitivity, epsilon float64) []int {
	n := len(scores)
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	weights := make([]float64, n)
	// Shift by the max score before exponentiating to keep weights finite.
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	for i, s := range scores {
		weights[i] = math.Exp(epsilon * (s - maxScore) / (2 * sensitivity))
	}

	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}

	selected := make([]int, 0, k)
	for len(selected) < k {
		total := 0.0
		for _, idx := range remaining {
			total += weights[idx]
		}
		target := rng.Float64() * total
		pick := len(remaining) - 1
		cumulative := 0.0
		for pos, idx := range remaining {
			cumulative += weights[idx]
			if cumulative >= target {
				pick = pos
				break
			}
		}
		selected = append(selected, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}

	return selected
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
