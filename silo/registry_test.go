package silo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

func newTestRegistry() *Registry {
	return NewRegistry(zap.NewNop().Sugar())
}

func meta(id string, domains ...string) types.SiloMetadata {
	return types.SiloMetadata{
		ID:             id,
		Name:           "silo " + id,
		OrganizationID: "acme",
		Domains:        domains,
	}
}

func TestRegisterAssignsInitialRevision(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(meta("a")))

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Revision)
}

func TestRegisterRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(meta("a")))

	assert.Error(t, r.Register(meta("a")))
	assert.Error(t, r.Register(types.SiloMetadata{}))
}

func TestUpdateBumpsRevisionAndInvalidatesFirst(t *testing.T) {
	r := newTestRegistry()

	var invalidated []string
	r.OnInvalidate(func(siloID string) { invalidated = append(invalidated, siloID) })

	require.NoError(t, r.Register(meta("a")))
	require.NoError(t, r.Update(meta("a")))

	assert.Equal(t, []string{"a"}, invalidated)
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Revision)
}

func TestUpdateUnknownSiloIsNotFound(t *testing.T) {
	r := newTestRegistry()
	assert.True(t, errors.IsNotFoundError(r.Update(meta("ghost"))))
}

func TestDeleteInvalidatesAndRemoves(t *testing.T) {
	r := newTestRegistry()

	var invalidated []string
	r.OnInvalidate(func(siloID string) { invalidated = append(invalidated, siloID) })

	require.NoError(t, r.Register(meta("a")))
	require.NoError(t, r.Delete("a"))

	assert.Equal(t, []string{"a"}, invalidated)
	_, err := r.Get("a")
	assert.True(t, errors.IsNotFoundError(err))
	assert.True(t, errors.IsNotFoundError(r.Delete("a")))
}

func TestCandidatesMatchDeclaredDomains(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(meta("payments", "billing", "invoices")))
	require.NoError(t, r.Register(meta("hr", "benefits", "payroll")))
	require.NoError(t, r.Register(meta("wiki"))) // no domains: matches all

	candidates := r.Candidates(types.QueryRequest{Query: "How do I reissue an invoice?"})
	ids := idsOf(candidates)
	assert.ElementsMatch(t, []string{"payments", "wiki"}, ids)
}

func TestCandidatesHonorIncludeExclude(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(meta("a")))
	require.NoError(t, r.Register(meta("b")))
	require.NoError(t, r.Register(meta("c")))

	included := r.Candidates(types.QueryRequest{Query: "q", IncludeSilos: []string{"a", "b"}})
	assert.ElementsMatch(t, []string{"a", "b"}, idsOf(included))

	excluded := r.Candidates(types.QueryRequest{Query: "q", ExcludeSilos: []string{"b"}})
	assert.ElementsMatch(t, []string{"a", "c"}, idsOf(excluded))
}

func TestListReturnsAllSilos(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(meta("a")))
	require.NoError(t, r.Register(meta("b")))

	assert.Len(t, r.List(), 2)
}

func idsOf(silos []types.SiloMetadata) []string {
	ids := make([]string, len(silos))
	for i, s := range silos {
		ids[i] = s.ID
	}
	return ids
}
