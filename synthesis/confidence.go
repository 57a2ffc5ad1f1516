package synthesis

import "github.com/synapselabs/synapse/types"

// Confidence weights. Average noised relevance carries the most signal;
// distinct-source diversity saturates at three silos, raw source count at
// five results, and the completeness term falls with the fraction of
// candidate silos that were denied or unavailable.
const (
	relevanceWeight    = 0.4
	diversityWeight    = 0.3
	completenessWeight = 0.2
	volumeWeight       = 0.1

	diversitySaturation = 3.0
	volumeSaturation    = 5.0
)

// confidence scores how much the composite answer should be trusted, in
// [0,1]. Monotone increasing in source diversity and average relevance,
// monotone decreasing in the exclusion fraction.
func confidence(req types.SynthesisRequest, groups map[string][]types.KnowledgeResult) float64 {
	var relevanceSum float64
	for _, res := range req.Results {
		relevanceSum += res.RelevanceScore
	}
	avgRelevance := relevanceSum / float64(len(req.Results))

	diversity := saturate(float64(len(groups)), diversitySaturation)
	volume := saturate(float64(len(req.Results)), volumeSaturation)

	completeness := 1.0
	if req.CandidateSilos > 0 {
		excluded := float64(len(req.Limitations)) / float64(req.CandidateSilos)
		if excluded > 1 {
			excluded = 1
		}
		completeness = 1 - excluded
	}

	score := relevanceWeight*avgRelevance +
		diversityWeight*diversity +
		completenessWeight*completeness +
		volumeWeight*volume

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func saturate(n, ceiling float64) float64 {
	if n >= ceiling {
		return 1
	}
	return n / ceiling
}
