// Package silo holds the registry of known silos and resolves query
// candidates. Candidate resolution is a performance optimization only;
// authorization happens in the permission engine.
package silo

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

// InvalidationFunc is called with a silo ID whenever that silo's metadata
// changes, before the change becomes visible to readers. The permission
// engine registers its cache invalidation here.
type InvalidationFunc func(siloID string)

// Registry holds metadata for every known silo. Reads vastly outnumber
// writes; updates are rare and externally triggered.
type Registry struct {
	mu         sync.RWMutex
	silos      map[string]types.SiloMetadata
	invalidate []InvalidationFunc
	logger     *zap.SugaredLogger
}

// NewRegistry creates an empty silo registry.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		silos:  make(map[string]types.SiloMetadata),
		logger: logger,
	}
}

// OnInvalidate registers a callback fired before a metadata change becomes
// visible. Dependent caches must be invalidated through this hook so no
// reader can combine new metadata with a stale decision.
func (r *Registry) OnInvalidate(fn InvalidationFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidate = append(r.invalidate, fn)
}

// Register adds a new silo. The ID must be unused.
func (r *Registry) Register(meta types.SiloMetadata) error {
	if meta.ID == "" {
		return errors.New("silo ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.silos[meta.ID]; exists {
		return errors.Newf("silo %s already registered", meta.ID)
	}

	meta.Revision = 1
	r.silos[meta.ID] = meta

	r.logger.Infow("Silo registered",
		"silo_id", meta.ID,
		"name", meta.Name,
		"classification", meta.Classification.String(),
		"organization", meta.OrganizationID)
	return nil
}

// Restore inserts a silo preserving its persisted revision. Used when
// rehydrating the registry from the store at startup.
func (r *Registry) Restore(meta types.SiloMetadata) error {
	if meta.ID == "" {
		return errors.New("silo ID cannot be empty")
	}
	if meta.Revision == 0 {
		meta.Revision = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.silos[meta.ID]; exists {
		return errors.Newf("silo %s already registered", meta.ID)
	}
	r.silos[meta.ID] = meta
	return nil
}

// Update replaces a silo's metadata. Dependent permission-cache entries are
// invalidated before the new revision becomes visible.
func (r *Registry) Update(meta types.SiloMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.silos[meta.ID]
	if !exists {
		return errors.Wrapf(errors.ErrNotFound, "silo %s", meta.ID)
	}

	for _, fn := range r.invalidate {
		fn(meta.ID)
	}

	meta.Revision = current.Revision + 1
	r.silos[meta.ID] = meta

	r.logger.Infow("Silo updated",
		"silo_id", meta.ID,
		"revision", meta.Revision)
	return nil
}

// Delete removes a silo and invalidates dependent cache entries.
func (r *Registry) Delete(siloID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.silos[siloID]; !exists {
		return errors.Wrapf(errors.ErrNotFound, "silo %s", siloID)
	}

	for _, fn := range r.invalidate {
		fn(siloID)
	}

	delete(r.silos, siloID)

	r.logger.Infow("Silo deleted", "silo_id", siloID)
	return nil
}

// Get returns one silo's metadata.
func (r *Registry) Get(siloID string) (types.SiloMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.silos[siloID]
	if !exists {
		return types.SiloMetadata{}, errors.Wrapf(errors.ErrNotFound, "silo %s", siloID)
	}
	return meta, nil
}

// List returns all registered silos.
func (r *Registry) List() []types.SiloMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.SiloMetadata, 0, len(r.silos))
	for _, meta := range r.silos {
		out = append(out, meta)
	}
	return out
}

// Candidates resolves which silos might hold relevant information for a
// query, independent of permission. A silo is a candidate when it declares no
// domains (matches everything) or when any declared domain keyword appears in
// the query text. Include/exclude lists from the request narrow further.
func (r *Registry) Candidates(req types.QueryRequest) []types.SiloMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	include := toSet(req.IncludeSilos)
	exclude := toSet(req.ExcludeSilos)
	queryLower := strings.ToLower(req.Query)

	var out []types.SiloMetadata
	for id, meta := range r.silos {
		if len(include) > 0 {
			if _, ok := include[id]; !ok {
				continue
			}
		}
		if _, ok := exclude[id]; ok {
			continue
		}
		if matchesDomains(queryLower, meta.Domains) {
			out = append(out, meta)
		}
	}
	return out
}

func matchesDomains(queryLower string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	for _, domain := range domains {
		if strings.Contains(queryLower, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
