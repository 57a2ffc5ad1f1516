package permission

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/synapselabs/synapse/types"
)

// maxCacheEntries triggers a sweep of expired entries when exceeded.
const maxCacheEntries = 1000

type cachedDecision struct {
	decision types.AccessDecision
	storedAt time.Time
	siloID   string
}

// decisionCache is a read-mostly TTL cache of access decisions. Staleness
// within the TTL window is an accepted, bounded risk; an entry served beyond
// its TTL is a correctness bug.
type decisionCache struct {
	mu      sync.RWMutex
	entries map[string]cachedDecision
	ttl     time.Duration
	clock   func() time.Time
}

func newDecisionCache(ttl time.Duration, clock func() time.Time) *decisionCache {
	return &decisionCache{
		entries: make(map[string]cachedDecision),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *decisionCache) get(key string) (types.AccessDecision, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return types.AccessDecision{}, false
	}
	if c.clock().Sub(entry.storedAt) >= c.ttl {
		return types.AccessDecision{}, false
	}
	return entry.decision, true
}

func (c *decisionCache) put(key string, decision types.AccessDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedDecision{
		decision: decision,
		storedAt: c.clock(),
		siloID:   decision.SiloID,
	}

	if len(c.entries) > maxCacheEntries {
		c.sweepLocked()
	}
}

// sweepLocked removes expired entries. Must be called with mu held.
func (c *decisionCache) sweepLocked() {
	now := c.clock()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *decisionCache) invalidateSilo(siloID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.siloID == siloID {
			delete(c.entries, key)
		}
	}
}

func (c *decisionCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedDecision)
}

// cacheKey derives a stable key from every user field the rules may consult
// and from the silo's ID and revision. Including the revision means an update
// through the registry implicitly misses the cache even before the explicit
// invalidation lands.
func cacheKey(user types.UserContext, silo types.SiloMetadata) string {
	var b strings.Builder
	b.WriteString(user.UserID)
	b.WriteByte('|')
	b.WriteString(user.OrganizationID)
	b.WriteByte('|')
	b.WriteString(joinSorted(user.TeamIDs))
	b.WriteByte('|')
	b.WriteString(joinSorted(user.Roles))
	b.WriteByte('|')
	for _, level := range user.AccessLevels {
		fmt.Fprintf(&b, "%d,", int(level))
	}
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", int(user.Clearance))
	b.WriteByte('|')
	b.WriteString(joinSorted(user.Projects))
	b.WriteByte('|')
	b.WriteString(joinSorted(user.CrossOrgGrants))
	b.WriteByte('|')
	if user.Temporal != nil {
		fmt.Fprintf(&b, "%d-%d", user.Temporal.StartHour, user.Temporal.EndHour)
	}
	b.WriteByte('|')
	b.WriteString(silo.ID)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", silo.Revision)
	return b.String()
}

func joinSorted(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
