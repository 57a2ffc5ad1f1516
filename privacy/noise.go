package privacy

import (
	"github.com/synapselabs/synapse/errors"
)

// NoiseScore adds Laplace noise calibrated to the score sensitivity and
// clamps the result to [0, 1]. Records epsilon against the grant; the whole
// operation happens under the manager's mutex so the rng draw and the ledger
// update cannot interleave with a concurrent settlement.
func (m *Manager) NoiseScore(grant *Grant, score, epsilon float64) (float64, error) {
	if epsilon <= 0 {
		return 0, errors.Newf("noise epsilon must be positive, got %g", epsilon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.recordLocked(grant, MechanismLaplace, epsilon); err != nil {
		return 0, err
	}
	noised := score + laplaceNoise(m.rng, m.cfg.ScoreSensitivity, epsilon)
	return clamp(noised, 0, 1), nil
}

// NoiseScores noises a batch of scores under a single epsilon charge split
// evenly across the batch. Each score leaks information independently, so the
// per-score scale uses epsilon/len(scores).
func (m *Manager) NoiseScores(grant *Grant, scores []float64, epsilon float64) ([]float64, error) {
	if len(scores) == 0 {
		return nil, nil
	}
	if epsilon <= 0 {
		return nil, errors.Newf("noise epsilon must be positive, got %g", epsilon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.recordLocked(grant, MechanismLaplace, epsilon); err != nil {
		return nil, err
	}

	perScore := epsilon / float64(len(scores))
	out := make([]float64, len(scores))
	for i, score := range scores {
		out[i] = clamp(score+laplaceNoise(m.rng, m.cfg.ScoreSensitivity, perScore), 0, 1)
	}
	return out, nil
}

// NoiseEmbedding adds Gaussian noise to each embedding dimension, calibrated
// to the embedding sensitivity. Returns a new vector; the input is not
// mutated.
func (m *Manager) NoiseEmbedding(grant *Grant, embedding []float32, epsilon float64) ([]float32, error) {
	if epsilon <= 0 {
		return nil, errors.Newf("noise epsilon must be positive, got %g", epsilon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.recordLocked(grant, MechanismGaussian, epsilon); err != nil {
		return nil, err
	}

	sigma := gaussianSigma(m.cfg.EmbeddingSensitivity, epsilon)
	out := make([]float32, len(embedding))
	for i, v := range embedding {
		out[i] = v + float32(m.rng.NormFloat64()*sigma)
	}
	return out, nil
}

// SelectTopK picks k result indices with the exponential mechanism, charging
// epsilon against the grant. With epsilon = 0 the selection is uniform and
// nothing is recorded: a zero-budget selection leaks nothing, so it costs
// nothing.
func (m *Manager) SelectTopK(grant *Grant, scores []float64, k int, epsilon float64) ([]int, error) {
	if k <= 0 || len(scores) == 0 {
		return nil, nil
	}
	if epsilon < 0 {
		return nil, errors.Newf("selection epsilon cannot be negative, got %g", epsilon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if epsilon > 0 {
		if err := m.recordLocked(grant, MechanismExponential, epsilon); err != nil {
			return nil, err
		}
	}
	return exponentialSelect(m.rng, scores, k, m.cfg.ScoreSensitivity, epsilon), nil
}

// Remaining reports the budget still available for new grants.
func (m *Manager) Remaining() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.TotalBudget - m.spent - m.reserved
}

// Spent reports total settled consumption.
func (m *Manager) Spent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent
}
