package router

import (
	"context"
	"sync"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

// siloOutcome is one fan-out task's result-or-limitation.
type siloOutcome struct {
	silo types.SiloMetadata
	hits []types.SearchHit
	err  error
}

func (o siloOutcome) limitation() types.Limitation {
	reason := types.ReasonUnavailable
	if errors.IsSiloTimeoutError(o.err) {
		reason = types.ReasonTimeout
	}
	return types.Limitation{
		SiloID:   o.silo.ID,
		SiloName: o.silo.Name,
		Reason:   reason,
		Detail:   o.err.Error(),
	}
}

// fanOut searches every authorized silo concurrently under a shared deadline.
// Each task is independent: one silo's failure or timeout never cancels its
// siblings. Results of tasks still in flight when the deadline expires are
// abandoned.
func (r *Router) fanOut(ctx context.Context, req types.QueryRequest, authorized []types.SiloMetadata) []siloOutcome {
	fanCtx := ctx
	if timeout := r.cfg.FanoutTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		fanCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var sem chan struct{}
	if r.cfg.MaxConcurrentSilos > 0 {
		sem = make(chan struct{}, r.cfg.MaxConcurrentSilos)
	}

	perSiloCap := r.cfg.PerSiloResultCap
	if perSiloCap <= 0 {
		perSiloCap = r.cfg.DefaultMaxResults
	}

	outcomes := make([]siloOutcome, len(authorized))
	var wg sync.WaitGroup
	for i, meta := range authorized {
		wg.Add(1)
		go func(i int, meta types.SiloMetadata) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-fanCtx.Done():
					outcomes[i] = siloOutcome{silo: meta, err: errors.Wrapf(errors.ErrSiloTimeout,
						"silo %s never started before the deadline", meta.ID)}
					return
				}
			}

			outcomes[i] = r.searchSilo(fanCtx, req, meta, perSiloCap)
		}(i, meta)
	}
	wg.Wait()

	return outcomes
}

func (r *Router) searchSilo(ctx context.Context, req types.QueryRequest, meta types.SiloMetadata, limit int) siloOutcome {
	searcher, ok := r.searcherFor(meta.ID)
	if !ok {
		return siloOutcome{silo: meta, err: errors.Wrapf(errors.ErrSiloUnavailable,
			"no searcher registered for silo %s", meta.ID)}
	}

	if limiter := r.limiterFor(meta.ID); limiter != nil && !limiter.Allow() {
		return siloOutcome{silo: meta, err: errors.Wrapf(errors.ErrSiloUnavailable,
			"silo %s rate limit exceeded", meta.ID)}
	}

	hits, err := searcher.Search(ctx, req.Query, req.Embedding, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return siloOutcome{silo: meta, err: errors.Wrapf(errors.ErrSiloTimeout,
				"silo %s exceeded the shared deadline", meta.ID)}
		}
		return siloOutcome{silo: meta, err: errors.Wrapf(errors.ErrSiloUnavailable,
			"silo %s search failed: %v", meta.ID, err)}
	}

	return siloOutcome{silo: meta, hits: hits}
}
