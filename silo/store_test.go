package silo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synapsetesting "github.com/synapselabs/synapse/internal/testing"
	"github.com/synapselabs/synapse/types"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	db := synapsetesting.CreateTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	saved := types.SiloMetadata{
		ID:             "eng-docs",
		Name:           "Engineering Docs",
		OrganizationID: "acme",
		TeamID:         "platform",
		Classification: types.ClassificationConfidential,
		Domains:        []string{"runbooks", "architecture"},
		Revision:       3,
		Rules: []types.AccessRule{{
			Kind:         types.RuleRole,
			AllowedRoles: []string{"auditor"},
		}},
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, saved, loaded[0])
}

func TestStoreSaveIsUpsert(t *testing.T) {
	db := synapsetesting.CreateTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	meta := types.SiloMetadata{ID: "a", Name: "first", Revision: 1}
	require.NoError(t, store.Save(meta))
	meta.Name = "second"
	meta.Revision = 2
	require.NoError(t, store.Save(meta))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "second", loaded[0].Name)
	assert.Equal(t, uint64(2), loaded[0].Revision)
}

func TestStoreDelete(t *testing.T) {
	db := synapsetesting.CreateTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	require.NoError(t, store.Save(types.SiloMetadata{ID: "a"}))
	require.NoError(t, store.Delete("a"))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRestorePreservesRevision(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.Restore(types.SiloMetadata{ID: "a", Revision: 7}))
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Revision)

	// A persisted silo predating revision tracking gets revision 1
	require.NoError(t, r.Restore(types.SiloMetadata{ID: "b"}))
	got, err = r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Revision)
}
