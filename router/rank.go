package router

import (
	"sort"

	"github.com/synapselabs/synapse/types"
)

// rank orders merged results: noised score descending, recency descending,
// configured silo priority, then silo ID and result ID. The full chain makes
// the order deterministic for a fixed configuration and noise seed.
func (r *Router) rank(results []types.KnowledgeResult) []types.KnowledgeResult {
	priority := make(map[string]int, len(r.cfg.SiloPriority))
	for i, id := range r.cfg.SiloPriority {
		priority[id] = i
	}

	sort.SliceStable(results, func(a, b int) bool {
		ra, rb := results[a], results[b]
		if ra.RelevanceScore != rb.RelevanceScore {
			return ra.RelevanceScore > rb.RelevanceScore
		}
		if !ra.CreatedAt.Equal(rb.CreatedAt) {
			return ra.CreatedAt.After(rb.CreatedAt)
		}
		pa, pb := priorityIndex(priority, ra.SiloID), priorityIndex(priority, rb.SiloID)
		if pa != pb {
			return pa < pb
		}
		if ra.SiloID != rb.SiloID {
			return ra.SiloID < rb.SiloID
		}
		return ra.ID < rb.ID
	})

	return results
}

// priorityIndex maps a silo to its configured rank; unlisted silos sort after
// every listed one.
func priorityIndex(priority map[string]int, siloID string) int {
	if idx, ok := priority[siloID]; ok {
		return idx
	}
	return len(priority)
}

// capPerSilo enforces source diversity: no silo contributes more than limit
// entries to the ranked list. Zero disables the cap.
func capPerSilo(ranked []types.KnowledgeResult, limit int) []types.KnowledgeResult {
	if limit <= 0 {
		return ranked
	}

	counts := make(map[string]int)
	out := ranked[:0]
	for _, res := range ranked {
		if counts[res.SiloID] >= limit {
			continue
		}
		counts[res.SiloID]++
		out = append(out, res)
	}
	return out
}
