package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapselabs/synapse/config"
	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

type fakeSummarizer struct {
	narrative string
	err       error
	block     bool
	gotQuery  string
	got       []Excerpt
}

func (f *fakeSummarizer) Summarize(ctx context.Context, query string, excerpts []Excerpt) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.gotQuery = query
	f.got = excerpts
	return f.narrative, f.err
}

func testSynthConfig() config.SynthesisConfig {
	return config.SynthesisConfig{TimeoutSeconds: 1, MaxExcerptLen: 500}
}

func result(id, siloID, siloName string, score float64, level types.Classification) types.KnowledgeResult {
	return types.KnowledgeResult{
		ID:             id,
		SiloID:         siloID,
		Content:        "excerpt from " + siloName,
		RelevanceScore: score,
		AccessLevel:    level,
		Attribution:    types.Attribution{SiloName: siloName, Team: "team-" + siloID, Organization: "acme"},
	}
}

func internalUser() types.UserContext {
	return types.UserContext{
		UserID:         "alice",
		OrganizationID: "acme",
		AccessLevels:   []types.Classification{types.ClassificationInternal},
	}
}

func TestSynthesizeGroupsBySiloWithAttribution(t *testing.T) {
	summarizer := &fakeSummarizer{narrative: "combined answer"}
	s := NewSynthesizer(summarizer, testSynthConfig(), zap.NewNop().Sugar())

	out, err := s.Synthesize(context.Background(), types.SynthesisRequest{
		Query: "release process",
		User:  internalUser(),
		Results: []types.KnowledgeResult{
			result("r1", "docs", "Docs", 0.9, types.ClassificationInternal),
			result("r2", "docs", "Docs", 0.6, types.ClassificationInternal),
			result("r3", "wiki", "Wiki", 0.7, types.ClassificationPublic),
		},
		CandidateSilos: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "combined answer", out.Narrative)
	assert.Equal(t, 2, out.SourceCount)

	// One representative excerpt per silo, highest relevance first
	require.Len(t, summarizer.got, 2)
	assert.Equal(t, "Docs", summarizer.got[0].SiloName)
	assert.InDelta(t, 0.9, summarizer.got[0].Relevance, 1e-9)
	assert.Equal(t, "Wiki", summarizer.got[1].SiloName)
	assert.Equal(t, "team-wiki", summarizer.got[1].Team)
}

func TestSynthesizeRefusesUncertifiedResults(t *testing.T) {
	s := NewSynthesizer(&fakeSummarizer{narrative: "x"}, testSynthConfig(), zap.NewNop().Sugar())

	_, err := s.Synthesize(context.Background(), types.SynthesisRequest{
		Query: "secrets",
		User:  internalUser(),
		Results: []types.KnowledgeResult{
			result("r1", "vault", "Vault", 0.9, types.ClassificationRestricted),
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsPermissionDeniedError(err))
}

func TestSynthesizeSummarizerFailureIsUnavailable(t *testing.T) {
	s := NewSynthesizer(&fakeSummarizer{err: assert.AnError}, testSynthConfig(), zap.NewNop().Sugar())

	_, err := s.Synthesize(context.Background(), types.SynthesisRequest{
		Query: "anything",
		User:  internalUser(),
		Results: []types.KnowledgeResult{
			result("r1", "docs", "Docs", 0.5, types.ClassificationPublic),
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSynthesisUnavailable))
}

func TestSynthesizeTimesOutBlockedSummarizer(t *testing.T) {
	s := NewSynthesizer(&fakeSummarizer{block: true}, testSynthConfig(), zap.NewNop().Sugar())

	started := time.Now()
	_, err := s.Synthesize(context.Background(), types.SynthesisRequest{
		Query: "anything",
		User:  internalUser(),
		Results: []types.KnowledgeResult{
			result("r1", "docs", "Docs", 0.5, types.ClassificationPublic),
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSynthesisUnavailable))
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestSynthesizeEmptyResultsIsZeroConfidence(t *testing.T) {
	s := NewSynthesizer(&fakeSummarizer{}, testSynthConfig(), zap.NewNop().Sugar())

	out, err := s.Synthesize(context.Background(), types.SynthesisRequest{
		Query: "anything",
		User:  internalUser(),
		Limitations: []types.Limitation{
			{SiloID: "sealed", SiloName: "Sealed", Reason: types.ReasonPermissionDenied},
		},
	})
	require.NoError(t, err)
	assert.Zero(t, out.Confidence)
	assert.Zero(t, out.SourceCount)
	require.Len(t, out.Limitations, 1)
	assert.Contains(t, out.Limitations[0], "Sealed")
}

func TestSynthesizeTruncatesExcerpts(t *testing.T) {
	cfg := config.SynthesisConfig{TimeoutSeconds: 1, MaxExcerptLen: 10}
	summarizer := &fakeSummarizer{narrative: "x"}
	s := NewSynthesizer(summarizer, cfg, zap.NewNop().Sugar())

	long := result("r1", "docs", "Docs", 0.5, types.ClassificationPublic)
	long.Content = "this content is far longer than ten characters"

	_, err := s.Synthesize(context.Background(), types.SynthesisRequest{
		Query:   "anything",
		User:    internalUser(),
		Results: []types.KnowledgeResult{long},
	})
	require.NoError(t, err)
	require.Len(t, summarizer.got, 1)
	assert.Len(t, summarizer.got[0].Content, 10)
}

func TestConfidenceMonotonicity(t *testing.T) {
	base := types.SynthesisRequest{
		Results: []types.KnowledgeResult{
			result("r1", "a", "A", 0.6, types.ClassificationPublic),
			result("r2", "b", "B", 0.6, types.ClassificationPublic),
		},
		CandidateSilos: 4,
	}

	score := func(req types.SynthesisRequest) float64 {
		return confidence(req, groupBySilo(req.Results))
	}

	// More distinct sources raises confidence
	moreSources := base
	moreSources.Results = append(append([]types.KnowledgeResult{}, base.Results...),
		result("r3", "c", "C", 0.6, types.ClassificationPublic))
	assert.Greater(t, score(moreSources), score(base))

	// Higher average relevance raises confidence
	higherRelevance := base
	higherRelevance.Results = []types.KnowledgeResult{
		result("r1", "a", "A", 0.9, types.ClassificationPublic),
		result("r2", "b", "B", 0.9, types.ClassificationPublic),
	}
	assert.Greater(t, score(higherRelevance), score(base))

	// A larger exclusion fraction lowers confidence
	moreExcluded := base
	moreExcluded.Limitations = []types.Limitation{
		{SiloID: "x", Reason: types.ReasonPermissionDenied},
		{SiloID: "y", Reason: types.ReasonTimeout},
	}
	assert.Less(t, score(moreExcluded), score(base))

	// Bounded to [0,1] even at the extremes
	assert.LessOrEqual(t, score(moreSources), 1.0)
	assert.GreaterOrEqual(t, score(moreExcluded), 0.0)
}
