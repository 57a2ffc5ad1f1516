package privacy

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapselabs/synapse/errors"
)

func newTestManager(t *testing.T, total float64) *Manager {
	t.Helper()
	return NewManagerWithSeed(Config{
		TotalBudget:          total,
		ScoreSensitivity:     0.1,
		EmbeddingSensitivity: 1.0,
	}, nil, zap.NewNop().Sugar(), 42)
}

func TestAuthorizeDebitExhaustsBudgetExactly(t *testing.T) {
	// Given a total budget of 10.0 and queries that each spend their full
	// 0.1 grant
	m := newTestManager(t, 10.0)

	// When 100 queries authorize, record, and debit
	for i := 0; i < 100; i++ {
		grant, err := m.Authorize(fmt.Sprintf("q-%d", i), 0.1)
		require.NoError(t, err, "query %d should be authorized", i)

		require.NoError(t, m.Record(grant, MechanismLaplace, 0.09))
		require.NoError(t, m.Record(grant, MechanismExponential, 0.01))

		debited, err := m.Debit(grant)
		require.NoError(t, err)
		assert.InDelta(t, 0.1, debited, 1e-9)
	}

	// Then the budget is exhausted and the 101st query fails
	assert.InDelta(t, 10.0, m.Spent(), 1e-6)

	_, err := m.Authorize("q-101", 0.1)
	require.Error(t, err)
	assert.True(t, errors.IsBudgetExhaustedError(err))
}

func TestAuthorizeReservesAgainstConcurrentGrants(t *testing.T) {
	// Given budget for exactly one grant
	m := newTestManager(t, 0.1)

	grant, err := m.Authorize("q-1", 0.1)
	require.NoError(t, err)

	// When a second query tries to authorize before the first settles
	_, err = m.Authorize("q-2", 0.1)

	// Then the outstanding reservation blocks it
	assert.True(t, errors.IsBudgetExhaustedError(err))

	// And releasing the first grant frees the reservation
	require.NoError(t, m.Release(grant))
	_, err = m.Authorize("q-2", 0.1)
	require.NoError(t, err)
}

func TestDebitReturnsUnspentRemainder(t *testing.T) {
	m := newTestManager(t, 1.0)

	grant, err := m.Authorize("q-1", 0.5)
	require.NoError(t, err)

	// Only 0.2 of the 0.5 reservation is actually used
	require.NoError(t, m.Record(grant, MechanismLaplace, 0.2))

	debited, err := m.Debit(grant)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, debited, 1e-9)

	assert.InDelta(t, 0.2, m.Spent(), 1e-9)
	assert.InDelta(t, 0.8, m.Remaining(), 1e-9)
}

func TestRecordCannotExceedReservation(t *testing.T) {
	m := newTestManager(t, 1.0)

	grant, err := m.Authorize("q-1", 0.1)
	require.NoError(t, err)

	require.NoError(t, m.Record(grant, MechanismLaplace, 0.08))
	err = m.Record(grant, MechanismLaplace, 0.05)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed reservation")
}

func TestConcurrentAuthorizeNeverOverspends(t *testing.T) {
	// Given a budget that covers only 10 of 50 competing queries
	m := newTestManager(t, 1.0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grant, err := m.Authorize(fmt.Sprintf("q-%d", i), 0.1)
			if err != nil {
				return
			}
			if err := m.Record(grant, MechanismLaplace, 0.1); err != nil {
				return
			}
			if _, err := m.Debit(grant); err != nil {
				return
			}
			mu.Lock()
			granted++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	// Then exactly 10 succeeded and spent never exceeds total
	assert.Equal(t, 10, granted)
	assert.LessOrEqual(t, m.Spent(), 1.0+1e-6)
}

func TestReportIsReadOnlyAndAggregatesMechanisms(t *testing.T) {
	m := newTestManager(t, 10.0)

	grant, err := m.Authorize("q-1", 0.2)
	require.NoError(t, err)
	require.NoError(t, m.Record(grant, MechanismLaplace, 0.15))
	require.NoError(t, m.Record(grant, MechanismExponential, 0.05))
	_, err = m.Debit(grant)
	require.NoError(t, err)

	first := m.Report(time.Time{})
	second := m.Report(time.Time{})

	assert.Equal(t, first.Spent, second.Spent)
	assert.Equal(t, len(first.History), len(second.History))

	assert.InDelta(t, 0.15, first.Mechanisms[MechanismLaplace].TotalEpsilon, 1e-9)
	assert.InDelta(t, 0.05, first.Mechanisms[MechanismExponential].TotalEpsilon, 1e-9)
	assert.InDelta(t, 9.8, first.Remaining, 1e-9)
}

func TestResetZeroesSpentAndAppendsAuditEntry(t *testing.T) {
	// Given an exhausted budget
	m := newTestManager(t, 0.1)
	grant, err := m.Authorize("q-1", 0.1)
	require.NoError(t, err)
	require.NoError(t, m.Record(grant, MechanismLaplace, 0.1))
	_, err = m.Debit(grant)
	require.NoError(t, err)

	_, err = m.Authorize("q-2", 0.1)
	require.True(t, errors.IsBudgetExhaustedError(err))

	// When an administrator resets with a justification
	entry, err := m.Reset("admin@example.com", "new reporting period")
	require.NoError(t, err)

	// Then spending restarts and the reset is in the ledger
	assert.Equal(t, MechanismReset, entry.Mechanism)
	assert.Equal(t, "admin@example.com", entry.Actor)

	_, err = m.Authorize("q-2", 0.1)
	require.NoError(t, err)

	report := m.Report(time.Time{})
	var found bool
	for _, e := range report.History {
		if e.Mechanism == MechanismReset {
			found = true
			assert.Equal(t, "new reporting period", e.Note)
		}
	}
	assert.True(t, found, "reset entry must appear in history")
}

func TestResetRequiresActorAndJustification(t *testing.T) {
	m := newTestManager(t, 1.0)

	_, err := m.Reset("", "reason")
	require.Error(t, err)

	_, err = m.Reset("admin", "")
	require.Error(t, err)
}

func TestExpiredGrantReleasesReservationButSettlesUsage(t *testing.T) {
	m := NewManagerWithSeed(Config{
		TotalBudget:      1.0,
		GrantGracePeriod: time.Minute,
	}, nil, zap.NewNop().Sugar(), 42)

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	grant, err := m.Authorize("q-1", 0.5)
	require.NoError(t, err)
	require.NoError(t, m.Record(grant, MechanismLaplace, 0.2))

	// Grant is never settled; the clock advances past the grace period
	now = now.Add(2 * time.Minute)

	// A new authorization sweeps the expired grant: the 0.3 unspent slice of
	// the reservation frees up, the 0.2 of injected noise stays spent
	next, err := m.Authorize("q-2", 0.8)
	require.NoError(t, err)
	require.NotNil(t, next)

	assert.InDelta(t, 0.2, m.Spent(), 1e-9)

	// The expired grant can no longer be settled
	_, err = m.Debit(grant)
	require.Error(t, err)
}

func TestNoiseScoreClampsAndCharges(t *testing.T) {
	m := newTestManager(t, 10.0)

	grant, err := m.Authorize("q-1", 1.0)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		noised, err := m.NoiseScore(grant, 0.5, 0.01)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, noised, 0.0)
		assert.LessOrEqual(t, noised, 1.0)
	}

	debited, err := m.Debit(grant)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, debited, 1e-9)
}

func TestNoiseEmbeddingDoesNotMutateInput(t *testing.T) {
	m := newTestManager(t, 10.0)

	grant, err := m.Authorize("q-1", 1.0)
	require.NoError(t, err)

	original := []float32{0.1, 0.2, 0.3}
	input := append([]float32(nil), original...)

	noised, err := m.NoiseEmbedding(grant, input, 0.5)
	require.NoError(t, err)
	require.Len(t, noised, 3)

	assert.Equal(t, original, input)
	assert.NotEqual(t, original, noised)
}

func TestSelectTopKZeroEpsilonIsFreeAndUniform(t *testing.T) {
	m := newTestManager(t, 10.0)

	grant, err := m.Authorize("q-1", 1.0)
	require.NoError(t, err)

	scores := []float64{0.9, 0.1, 0.5, 0.3}
	picked, err := m.SelectTopK(grant, scores, 2, 0)
	require.NoError(t, err)
	assert.Len(t, picked, 2)

	// Zero-epsilon selection leaks nothing and must not be charged
	debited, err := m.Debit(grant)
	require.NoError(t, err)
	assert.InDelta(t, 0, debited, 1e-9)
}

func TestSelectTopKReturnsAllWhenKCoversInput(t *testing.T) {
	m := newTestManager(t, 10.0)

	grant, err := m.Authorize("q-1", 1.0)
	require.NoError(t, err)

	picked, err := m.SelectTopK(grant, []float64{0.4, 0.6}, 5, 0.1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, picked)
}

func TestSeededManagerIsDeterministic(t *testing.T) {
	run := func() []float64 {
		m := newTestManager(t, 10.0)
		grant, err := m.Authorize("q-1", 1.0)
		require.NoError(t, err)
		out := make([]float64, 0, 5)
		for i := 0; i < 5; i++ {
			v, err := m.NoiseScore(grant, 0.5, 0.05)
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}

	assert.Equal(t, run(), run())
}
