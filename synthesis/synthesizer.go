// Package synthesis composes a ranked, permission-filtered result set into an
// attributed narrative with an explicit confidence score. Language generation
// is an external collaborator behind the Summarizer boundary.
package synthesis

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/synapselabs/synapse/config"
	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

// Excerpt is one attributed representative passage handed to the language
// collaborator.
type Excerpt struct {
	SiloName     string
	Team         string
	Organization string
	Content      string
	Relevance    float64
}

// Summarizer is the external language-generation collaborator. Stateless; no
// memory of prior calls.
type Summarizer interface {
	Summarize(ctx context.Context, query string, excerpts []Excerpt) (string, error)
}

// Synthesizer groups results by provenance and produces the composite answer.
// It performs no access checks of its own, but refuses to operate on a result
// whose access level the caller's context does not certify.
type Synthesizer struct {
	summarizer Summarizer
	cfg        config.SynthesisConfig
	logger     *zap.SugaredLogger
}

// NewSynthesizer creates a synthesizer bound to a language collaborator.
func NewSynthesizer(summarizer Summarizer, cfg config.SynthesisConfig, logger *zap.SugaredLogger) *Synthesizer {
	return &Synthesizer{
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Synthesize produces an attributed narrative for an already-routed result
// set. Returns ErrSynthesisUnavailable when the collaborator fails or times
// out; the caller degrades by returning the ranked results unsynthesized with
// a limitation, never by failing the whole query.
func (s *Synthesizer) Synthesize(ctx context.Context, req types.SynthesisRequest) (*types.SynthesisOutput, error) {
	if len(req.Results) == 0 {
		return &types.SynthesisOutput{
			Narrative:   "No accessible knowledge was found for this query.",
			Confidence:  0,
			Limitations: limitationStrings(req.Limitations),
		}, nil
	}

	if err := s.certify(req.User, req.Results); err != nil {
		return nil, err
	}

	groups := groupBySilo(req.Results)
	excerpts := s.representatives(groups)

	if timeout := s.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	narrative, err := s.summarizer.Summarize(ctx, req.Query, excerpts)
	if err != nil {
		s.logger.Warnw("Summarizer failed", "query", req.Query, "error", err)
		return nil, errors.Wrapf(errors.ErrSynthesisUnavailable, "summarizer: %v", err)
	}

	output := &types.SynthesisOutput{
		Narrative:   narrative,
		Confidence:  confidence(req, groups),
		SourceCount: len(groups),
		Limitations: limitationStrings(req.Limitations),
	}

	s.logger.Infow("Synthesis complete",
		"sources", output.SourceCount,
		"confidence", output.Confidence,
		"limitations", len(output.Limitations))

	return output, nil
}

// certify rejects any result whose access level exceeds what the caller's
// context holds. Defense in depth, not a permission re-evaluation: the router
// already filtered by the full rule set.
func (s *Synthesizer) certify(user types.UserContext, results []types.KnowledgeResult) error {
	max := user.MaxAccessLevel()
	for _, res := range results {
		if !max.Dominates(res.AccessLevel) {
			return errors.Wrapf(errors.ErrPermissionDenied,
				"result %s requires access level %s, caller holds %s",
				res.ID, res.AccessLevel.String(), max.String())
		}
	}
	return nil
}

// groupBySilo partitions results by source silo, each group sorted by noised
// relevance descending.
func groupBySilo(results []types.KnowledgeResult) map[string][]types.KnowledgeResult {
	groups := make(map[string][]types.KnowledgeResult)
	for _, res := range results {
		groups[res.SiloID] = append(groups[res.SiloID], res)
	}
	for id := range groups {
		group := groups[id]
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].RelevanceScore > group[b].RelevanceScore
		})
	}
	return groups
}

// representatives picks each group's top result as its excerpt, truncated to
// the configured length. Excerpts are ordered by relevance then silo name so
// the collaborator sees a deterministic prompt.
func (s *Synthesizer) representatives(groups map[string][]types.KnowledgeResult) []Excerpt {
	excerpts := make([]Excerpt, 0, len(groups))
	for _, group := range groups {
		top := group[0]
		content := top.Content
		if s.cfg.MaxExcerptLen > 0 && len(content) > s.cfg.MaxExcerptLen {
			content = content[:s.cfg.MaxExcerptLen]
		}
		excerpts = append(excerpts, Excerpt{
			SiloName:     top.Attribution.SiloName,
			Team:         top.Attribution.Team,
			Organization: top.Attribution.Organization,
			Content:      content,
			Relevance:    top.RelevanceScore,
		})
	}
	sort.SliceStable(excerpts, func(a, b int) bool {
		if excerpts[a].Relevance != excerpts[b].Relevance {
			return excerpts[a].Relevance > excerpts[b].Relevance
		}
		return excerpts[a].SiloName < excerpts[b].SiloName
	})
	return excerpts
}

func limitationStrings(limitations []types.Limitation) []string {
	if len(limitations) == 0 {
		return nil
	}
	out := make([]string, len(limitations))
	for i, lim := range limitations {
		name := lim.SiloName
		if name == "" {
			name = lim.SiloID
		}
		out[i] = fmt.Sprintf("%s: %s", name, lim.Reason)
	}
	return out
}
