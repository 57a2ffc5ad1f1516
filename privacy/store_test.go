package privacy

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	synapsetesting "github.com/synapselabs/synapse/internal/testing"
)

func TestStoreAppendAndHistory(t *testing.T) {
	db := synapsetesting.CreateTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	entries := []LedgerEntry{
		{Timestamp: base, QueryID: "q-1", Epsilon: 0.09, Mechanism: MechanismLaplace},
		{Timestamp: base.Add(time.Minute), QueryID: "q-1", Epsilon: 0.01, Mechanism: MechanismExponential},
		{Timestamp: base.Add(2 * time.Minute), Epsilon: -0.1, Mechanism: MechanismReset, Actor: "admin", Note: "test window"},
	}
	for _, entry := range entries {
		require.NoError(t, store.Append(entry))
	}

	all, err := store.History(time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "q-1", all[0].QueryID)
	assert.Equal(t, MechanismReset, all[2].Mechanism)
	assert.Equal(t, "admin", all[2].Actor)

	recent, err := store.History(base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestStoreSpentSinceExcludesResets(t *testing.T) {
	db := synapsetesting.CreateTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(LedgerEntry{Timestamp: base, QueryID: "q-1", Epsilon: 0.3, Mechanism: MechanismLaplace}))
	require.NoError(t, store.Append(LedgerEntry{Timestamp: base, QueryID: "q-2", Epsilon: 0.2, Mechanism: MechanismGaussian}))
	require.NoError(t, store.Append(LedgerEntry{Timestamp: base, Epsilon: -0.5, Mechanism: MechanismReset, Actor: "admin", Note: "x"}))

	total, err := store.SpentSince(time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, total, 1e-9)
}

func TestDebitSurvivesStoreFailure(t *testing.T) {
	// Given a durable store whose inserts fail
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO privacy_ledger").
		WillReturnError(assert.AnError)

	m := NewManagerWithSeed(Config{TotalBudget: 1.0}, &Store{db: db}, zap.NewNop().Sugar(), 42)

	grant, err := m.Authorize("q-1", 0.1)
	require.NoError(t, err)
	require.NoError(t, m.Record(grant, MechanismLaplace, 0.1))

	// When the debit settles, the store write fails
	debited, err := m.Debit(grant)

	// Then the in-memory ledger still settles; durability loss is logged only
	require.NoError(t, err)
	assert.InDelta(t, 0.1, debited, 1e-9)
	assert.InDelta(t, 0.1, m.Spent(), 1e-9)
}
