package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

func TestSentinelHelpers(t *testing.T) {
	assert.True(t, IsBudgetExhaustedError(Wrap(ErrBudgetExhausted, "query q-1")))
	assert.True(t, IsPermissionDeniedError(Wrap(ErrPermissionDenied, "silo s-1")))
	assert.True(t, IsInvalidQueryError(NewInvalidQueryError("empty query text")))
	assert.True(t, IsSiloTimeoutError(Wrap(ErrSiloTimeout, "silo s-2")))
	assert.True(t, IsNotFoundError(Wrap(ErrNotFound, "silo s-3")))

	assert.False(t, IsBudgetExhaustedError(nil))
	assert.False(t, IsBudgetExhaustedError(ErrPermissionDenied))
}

func TestNewBudgetExhaustedError(t *testing.T) {
	err := NewBudgetExhaustedError("requested %.2f, remaining %.2f", 0.5, 0.1)
	require.NotNil(t, err)
	assert.True(t, Is(err, ErrBudgetExhausted))
	assert.Contains(t, err.Error(), "requested 0.50")
}
