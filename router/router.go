// Package router orchestrates a federated query: candidate resolution,
// permission partitioning, budget reservation, bounded fan-out, noise
// injection, merge/rank and truncation.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/synapselabs/synapse/config"
	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/permission"
	"github.com/synapselabs/synapse/privacy"
	"github.com/synapselabs/synapse/silo"
	"github.com/synapselabs/synapse/types"
)

// Searcher is a silo-local search collaborator. It runs entirely inside one
// silo's trust boundary and never returns data the router has not already
// been authorized to request.
type Searcher interface {
	Search(ctx context.Context, query string, embedding []float32, limit int) ([]types.SearchHit, error)
}

// scoreShare is the fraction of a silo's epsilon allocation spent on Laplace
// score noising; the remainder is reserved for the exponential truncation
// selection. The reserve is consumed by every contributing silo whether or not
// truncation occurs, so a silo's cost never depends on its siblings' outcomes.
const scoreShare = 0.9

// Router routes one federated query end to end.
type Router struct {
	registry *silo.Registry
	perms    *permission.Engine
	budget   *privacy.Manager
	cfg      config.QueryConfig

	// defaultEpsilon applies when a request carries no explicit budget.
	defaultEpsilon float64

	logger *zap.SugaredLogger
	clock  func() time.Time

	mu        sync.RWMutex
	searchers map[string]Searcher
	limiters  map[string]*rate.Limiter
}

// NewRouter creates a query router.
func NewRouter(registry *silo.Registry, perms *permission.Engine, budget *privacy.Manager,
	cfg config.QueryConfig, defaultEpsilon float64, logger *zap.SugaredLogger) *Router {
	return &Router{
		registry:       registry,
		perms:          perms,
		budget:         budget,
		cfg:            cfg,
		defaultEpsilon: defaultEpsilon,
		logger:         logger,
		clock:          time.Now,
		searchers:      make(map[string]Searcher),
		limiters:       make(map[string]*rate.Limiter),
	}
}

// RegisterSearcher binds a silo ID to its local search collaborator. A silo
// without a searcher is reported as unavailable, never silently skipped.
func (r *Router) RegisterSearcher(siloID string, searcher Searcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchers[siloID] = searcher
}

func (r *Router) searcherFor(siloID string) (Searcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.searchers[siloID]
	return s, ok
}

// limiterFor lazily creates the per-silo rate limiter.
func (r *Router) limiterFor(siloID string) *rate.Limiter {
	if r.cfg.SiloRateLimitPerMinute <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[siloID]
	if !ok {
		perSecond := rate.Limit(float64(r.cfg.SiloRateLimitPerMinute) / 60.0)
		limiter = rate.NewLimiter(perSecond, r.cfg.SiloRateLimitPerMinute)
		r.limiters[siloID] = limiter
	}
	return limiter
}

// Route executes one federated query. Only InvalidQuery and BudgetExhausted
// abort the request; every other failure is downgraded to a limitation entry
// and the request completes with best-effort partial results.
func (r *Router) Route(ctx context.Context, req types.QueryRequest) (*types.QueryResponse, error) {
	started := r.clock()

	if err := validate(req); err != nil {
		return nil, err
	}

	queryID := uuid.NewString()
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = r.cfg.DefaultMaxResults
	}
	epsilon := req.EpsilonBudget
	if epsilon == 0 {
		epsilon = r.defaultEpsilon
	}

	candidates := r.registry.Candidates(req)
	if len(candidates) == 0 {
		// True absence of candidates: empty results, empty limitations.
		return &types.QueryResponse{
			QueryID: queryID,
			Elapsed: r.clock().Sub(started),
		}, nil
	}

	authorized, limitations := r.partition(req.User, candidates)
	if len(authorized) == 0 {
		// Everything was denied. The budget ledger is never touched.
		return &types.QueryResponse{
			QueryID:     queryID,
			Limitations: limitations,
			Elapsed:     r.clock().Sub(started),
		}, nil
	}

	grant, err := r.budget.Authorize(queryID, epsilon)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", queryID)
	}

	outcomes := r.fanOut(ctx, req, authorized)

	// Each authorized silo owns an equal slice of the query's epsilon.
	// Shares of silos that failed or returned nothing are never consumed.
	share := epsilon / float64(len(authorized))

	var results []types.KnowledgeResult
	var selectionReserve float64
	for _, outcome := range outcomes {
		if outcome.err != nil {
			limitations = append(limitations, outcome.limitation())
			continue
		}
		if len(outcome.hits) == 0 {
			continue
		}

		noised, err := r.noiseBatch(grant, outcome, share*scoreShare)
		if err != nil {
			r.logger.Errorw("Failed to noise result batch",
				"query_id", queryID, "silo_id", outcome.silo.ID, "error", err)
			limitations = append(limitations, types.Limitation{
				SiloID:   outcome.silo.ID,
				SiloName: outcome.silo.Name,
				Reason:   types.ReasonUnavailable,
				Detail:   "noise injection failed",
			})
			continue
		}

		results = append(results, noised...)
		selectionReserve += share * (1 - scoreShare)
	}

	ranked := r.rank(results)
	ranked = capPerSilo(ranked, r.cfg.PerSiloResultCap)

	final, err := r.truncate(grant, ranked, maxResults, selectionReserve)
	if err != nil {
		r.logger.Errorw("Truncation failed", "query_id", queryID, "error", err)
		final = ranked
		if len(final) > maxResults {
			final = final[:maxResults]
		}
	}

	spent, err := r.budget.Debit(grant)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s failed to settle budget", queryID)
	}

	r.logger.Infow("Query routed",
		"query_id", queryID,
		"candidates", len(candidates),
		"authorized", len(authorized),
		"results", len(final),
		"limitations", len(limitations),
		"epsilon_spent", spent)

	return &types.QueryResponse{
		QueryID:      queryID,
		Results:      final,
		Limitations:  limitations,
		EpsilonSpent: spent,
		Elapsed:      r.clock().Sub(started),
	}, nil
}

func validate(req types.QueryRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return errors.NewInvalidQueryError("query text is empty")
	}
	if req.User.UserID == "" {
		return errors.NewInvalidQueryError("user context has no user ID")
	}
	if req.User.OrganizationID == "" {
		return errors.NewInvalidQueryError("user context has no organization")
	}
	if req.MaxResults < 0 {
		return errors.NewInvalidQueryError("result cap %d is negative", req.MaxResults)
	}
	if req.EpsilonBudget < 0 {
		return errors.NewInvalidQueryError("epsilon budget %g is negative", req.EpsilonBudget)
	}
	return nil
}

// partition splits candidates into authorized silos and deny limitations.
// Denied silos are recorded, never silently dropped.
func (r *Router) partition(user types.UserContext, candidates []types.SiloMetadata) ([]types.SiloMetadata, []types.Limitation) {
	var authorized []types.SiloMetadata
	var limitations []types.Limitation

	for _, meta := range candidates {
		decision := r.perms.Evaluate(user, meta)
		if decision.Allow {
			authorized = append(authorized, meta)
			continue
		}
		limitations = append(limitations, types.Limitation{
			SiloID:   meta.ID,
			SiloName: meta.Name,
			Reason:   types.ReasonPermissionDenied,
			Detail:   string(decision.Reason) + ": " + decision.Detail,
		})
	}
	return authorized, limitations
}

// noiseBatch converts one silo's raw hits into noised, attributed results.
// The whole batch shares one Laplace epsilon charge.
func (r *Router) noiseBatch(grant *privacy.Grant, outcome siloOutcome, epsilon float64) ([]types.KnowledgeResult, error) {
	raw := make([]float64, len(outcome.hits))
	for i, hit := range outcome.hits {
		raw[i] = hit.RawScore
	}

	noised, err := r.budget.NoiseScores(grant, raw, epsilon)
	if err != nil {
		return nil, err
	}

	perResult := epsilon / float64(len(outcome.hits))
	results := make([]types.KnowledgeResult, len(outcome.hits))
	for i, hit := range outcome.hits {
		results[i] = types.KnowledgeResult{
			ID:             uuid.NewString(),
			SiloID:         outcome.silo.ID,
			Content:        hit.Content,
			RelevanceScore: noised[i],
			PrivacyCost:    perResult,
			AccessLevel:    outcome.silo.Classification,
			CreatedAt:      hit.Timestamp,
			Attribution: types.Attribution{
				SiloName:     outcome.silo.Name,
				Team:         outcome.silo.TeamID,
				Organization: outcome.silo.OrganizationID,
			},
		}
	}
	return results, nil
}

// truncate cuts the ranked list to maxResults with the exponential mechanism
// so the cutoff itself does not leak score order. The selection reserve is
// consumed even when no truncation is needed.
func (r *Router) truncate(grant *privacy.Grant, ranked []types.KnowledgeResult, maxResults int, reserve float64) ([]types.KnowledgeResult, error) {
	if len(ranked) <= maxResults {
		if reserve > 0 && len(ranked) > 0 {
			if err := r.budget.Record(grant, privacy.MechanismExponential, reserve); err != nil {
				return nil, err
			}
		}
		return ranked, nil
	}

	scores := make([]float64, len(ranked))
	for i, res := range ranked {
		scores[i] = res.RelevanceScore
	}

	picked, err := r.budget.SelectTopK(grant, scores, maxResults, reserve)
	if err != nil {
		return nil, err
	}

	// Preserve rank order among the survivors.
	keep := make(map[int]bool, len(picked))
	for _, idx := range picked {
		keep[idx] = true
	}
	out := make([]types.KnowledgeResult, 0, len(picked))
	for i, res := range ranked {
		if keep[i] {
			out = append(out, res)
		}
	}
	return out, nil
}
