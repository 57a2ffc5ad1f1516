// Package privacy owns the differential-privacy budget ledger and the noise
// mechanisms that spend it. The Manager is the only component allowed to
// authorize noise injection and debit budget; every caller holds an explicit
// reference, there is no package-level singleton.
package privacy

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synapselabs/synapse/errors"
)

// LedgerEntry is one append-only record of budget consumption.
type LedgerEntry struct {
	Timestamp time.Time `json:"timestamp"`
	QueryID   string    `json:"query_id"`
	Epsilon   float64   `json:"epsilon"`
	Mechanism string    `json:"mechanism"`
	Actor     string    `json:"actor,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Grant is an authorized upper bound of epsilon for one query. Mechanism
// usage accumulates on the grant; Debit settles the true cost, which can be
// less than the reservation but never more.
type Grant struct {
	ID      string
	QueryID string
	Epsilon float64
}

// grantState is the manager-side bookkeeping for an outstanding grant.
type grantState struct {
	grant    Grant
	issuedAt time.Time
	// usage accumulates per-mechanism epsilon recorded against the grant.
	usage map[string]float64
	used  float64
}

// MechanismUsage aggregates ledger entries per mechanism for reporting.
type MechanismUsage struct {
	Count        int     `json:"count"`
	TotalEpsilon float64 `json:"total_epsilon"`
}

// Report is a read-only snapshot of the ledger. Two reports taken without an
// intervening debit or reset are identical.
type Report struct {
	Total      float64                   `json:"total"`
	Spent      float64                   `json:"spent"`
	Remaining  float64                   `json:"remaining"`
	Reserved   float64                   `json:"reserved"`
	History    []LedgerEntry             `json:"history"`
	Mechanisms map[string]MechanismUsage `json:"mechanisms"`
}

// Config parameterizes a Manager.
type Config struct {
	// TotalBudget is B_total for the process lifetime.
	TotalBudget float64
	// ScoreSensitivity is the declared sensitivity of scalar relevance scores.
	ScoreSensitivity float64
	// EmbeddingSensitivity is the declared sensitivity of the embedding
	// distance metric.
	EmbeddingSensitivity float64
	// GrantGracePeriod bounds how long an unsettled grant holds its
	// reservation. Zero means grants never expire.
	GrantGracePeriod time.Duration
}

// Manager owns B_total and B_spent. All state transitions happen under one
// mutex: two queries can never both observe sufficient remaining budget and
// jointly overspend it.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	spent    float64
	reserved float64
	grants   map[string]*grantState
	history  []LedgerEntry
	store    *Store // optional durable ledger, may be nil
	rng      *rand.Rand
	clock    func() time.Time
	logger   *zap.SugaredLogger
}

// NewManager creates a budget manager seeded from the current time.
func NewManager(cfg Config, store *Store, logger *zap.SugaredLogger) *Manager {
	return NewManagerWithSeed(cfg, store, logger, time.Now().UnixNano())
}

// NewManagerWithSeed creates a manager with a fixed noise seed, making noise
// and selection reproducible for a given sequence of operations.
func NewManagerWithSeed(cfg Config, store *Store, logger *zap.SugaredLogger, seed int64) *Manager {
	if cfg.ScoreSensitivity <= 0 {
		cfg.ScoreSensitivity = 0.1
	}
	if cfg.EmbeddingSensitivity <= 0 {
		cfg.EmbeddingSensitivity = 1.0
	}
	return &Manager{
		cfg:    cfg,
		grants: make(map[string]*grantState),
		store:  store,
		rng:    rand.New(rand.NewSource(seed)),
		clock:  time.Now,
		logger: logger,
	}
}

// NewManagerFromStore creates a manager whose spent total is rehydrated from
// the durable ledger, so budget consumption survives process restarts.
func NewManagerFromStore(cfg Config, store *Store, logger *zap.SugaredLogger) (*Manager, error) {
	m := NewManager(cfg, store, logger)
	spent, err := store.NetSpent()
	if err != nil {
		return nil, errors.Wrap(err, "failed to rehydrate spent budget")
	}
	m.spent = spent
	return m, nil
}

// SetClock injects a clock for tests.
func (m *Manager) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// setStore attaches the durable ledger store after construction.
func (m *Manager) SetStore(store *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// Authorize reserves epsilon for a query before any work is done. Returns
// ErrBudgetExhausted when spent + outstanding reservations + epsilon would
// exceed the total; the reservation is all-or-nothing.
func (m *Manager) Authorize(queryID string, epsilon float64) (*Grant, error) {
	if epsilon <= 0 {
		return nil, errors.Newf("requested epsilon must be positive, got %g", epsilon)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireGrantsLocked()

	if m.spent+m.reserved+epsilon > m.cfg.TotalBudget+budgetTolerance {
		return nil, errors.Wrapf(errors.ErrBudgetExhausted,
			"requested %.4f, spent %.4f, reserved %.4f, total %.4f",
			epsilon, m.spent, m.reserved, m.cfg.TotalBudget)
	}

	grant := Grant{
		ID:      uuid.NewString(),
		QueryID: queryID,
		Epsilon: epsilon,
	}
	m.grants[grant.ID] = &grantState{
		grant:    grant,
		issuedAt: m.clock(),
		usage:    make(map[string]float64),
	}
	m.reserved += epsilon

	m.logger.Debugw("Budget grant issued",
		"grant_id", grant.ID,
		"query_id", queryID,
		"epsilon", epsilon,
		"spent", m.spent,
		"reserved", m.reserved)

	return &grant, nil
}

// budgetTolerance absorbs float accumulation error in the invariant check.
// It is far below any meaningful epsilon.
const budgetTolerance = 1e-9

// Record accumulates mechanism usage against an outstanding grant. The
// recorded sum can never exceed the grant's reservation.
func (m *Manager) Record(grant *Grant, mechanism string, epsilon float64) error {
	if epsilon < 0 {
		return errors.Newf("recorded epsilon cannot be negative, got %g", epsilon)
	}
	if epsilon == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordLocked(grant, mechanism, epsilon)
}

func (m *Manager) recordLocked(grant *Grant, mechanism string, epsilon float64) error {
	state, ok := m.grants[grant.ID]
	if !ok {
		return errors.Newf("grant %s is not outstanding (settled or expired)", grant.ID)
	}
	if state.used+epsilon > state.grant.Epsilon+budgetTolerance {
		return errors.Newf("grant %s usage %.4f + %.4f would exceed reservation %.4f",
			grant.ID, state.used, epsilon, state.grant.Epsilon)
	}
	state.usage[mechanism] += epsilon
	state.used += epsilon
	return nil
}

// Debit settles a grant: the epsilon recorded against it becomes spent, the
// unspent remainder returns to the pool immediately, and one ledger entry per
// mechanism is appended. The settlement is atomic: it happens entirely inside
// the manager's critical section or not at all. Returns the epsilon actually
// debited.
func (m *Manager) Debit(grant *Grant) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.grants[grant.ID]
	if !ok {
		return 0, errors.Newf("grant %s is not outstanding (settled or expired)", grant.ID)
	}

	now := m.clock()
	entries := make([]LedgerEntry, 0, len(state.usage))
	for mechanism, epsilon := range state.usage {
		entries = append(entries, LedgerEntry{
			Timestamp: now,
			QueryID:   state.grant.QueryID,
			Epsilon:   epsilon,
			Mechanism: mechanism,
		})
	}

	m.spent += state.used
	m.reserved -= state.grant.Epsilon
	m.history = append(m.history, entries...)
	delete(m.grants, grant.ID)

	if m.store != nil {
		for _, entry := range entries {
			if err := m.store.Append(entry); err != nil {
				// The in-memory ledger is authoritative; a durable-store
				// failure is logged, not propagated.
				m.logger.Errorw("Failed to persist ledger entry",
					"query_id", entry.QueryID, "error", err)
			}
		}
	}

	m.logger.Infow("Budget debited",
		"query_id", state.grant.QueryID,
		"epsilon", state.used,
		"spent", m.spent,
		"remaining", m.cfg.TotalBudget-m.spent)

	return state.used, nil
}

// Release abandons a grant without spending: the whole reservation returns to
// the pool. Used when a query fails after authorization but before any noise
// was injected.
func (m *Manager) Release(grant *Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.grants[grant.ID]
	if !ok {
		return errors.Newf("grant %s is not outstanding (settled or expired)", grant.ID)
	}
	if state.used > 0 {
		return errors.AssertionFailedf("grant %s has recorded usage %.4f and cannot be released, debit it",
			grant.ID, state.used)
	}

	m.reserved -= state.grant.Epsilon
	delete(m.grants, grant.ID)
	return nil
}

// expireGrantsLocked releases reservations of grants past the grace period.
// Recorded usage on an expired grant is settled, not forgotten: noise that
// was already injected has already disclosed information.
func (m *Manager) expireGrantsLocked() {
	if m.cfg.GrantGracePeriod <= 0 {
		return
	}
	now := m.clock()
	for id, state := range m.grants {
		if now.Sub(state.issuedAt) < m.cfg.GrantGracePeriod {
			continue
		}
		for mechanism, epsilon := range state.usage {
			m.history = append(m.history, LedgerEntry{
				Timestamp: now,
				QueryID:   state.grant.QueryID,
				Epsilon:   epsilon,
				Mechanism: mechanism,
				Note:      "settled on grant expiry",
			})
		}
		m.spent += state.used
		m.reserved -= state.grant.Epsilon
		delete(m.grants, id)

		m.logger.Warnw("Budget grant expired without settlement",
			"grant_id", id,
			"query_id", state.grant.QueryID,
			"reserved", state.grant.Epsilon,
			"settled", state.used)
	}
}

// Report returns a snapshot of the ledger with history at or after since.
// Read-only: calling it twice without an intervening debit or reset returns
// identical values. A zero since returns the full history.
func (m *Manager) Report(since time.Time) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]LedgerEntry, 0, len(m.history))
	mechanisms := make(map[string]MechanismUsage)
	for _, entry := range m.history {
		if !since.IsZero() && entry.Timestamp.Before(since) {
			continue
		}
		history = append(history, entry)
		usage := mechanisms[entry.Mechanism]
		usage.Count++
		usage.TotalEpsilon += entry.Epsilon
		mechanisms[entry.Mechanism] = usage
	}

	return Report{
		Total:      m.cfg.TotalBudget,
		Spent:      m.spent,
		Remaining:  m.cfg.TotalBudget - m.spent,
		Reserved:   m.reserved,
		History:    history,
		Mechanisms: mechanisms,
	}
}

// Reset zeroes B_spent. This voids every privacy guarantee issued under the
// prior budget window: it is a privacy-invalidating event, always appended to
// the ledger with the acting principal and justification, never silent.
func (m *Manager) Reset(actor, justification string) (LedgerEntry, error) {
	if actor == "" {
		return LedgerEntry{}, errors.New("reset requires an acting principal")
	}
	if justification == "" {
		return LedgerEntry{}, errors.New("reset requires a justification")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := LedgerEntry{
		Timestamp: m.clock(),
		Epsilon:   -m.spent,
		Mechanism: MechanismReset,
		Actor:     actor,
		Note:      justification,
	}
	m.history = append(m.history, entry)
	m.spent = 0

	if m.store != nil {
		if err := m.store.Append(entry); err != nil {
			m.logger.Errorw("Failed to persist reset ledger entry", "error", err)
		}
	}

	m.logger.Warnw("PRIVACY BUDGET RESET: all guarantees issued under the prior window are void",
		"actor", actor,
		"justification", justification)

	return entry, nil
}
