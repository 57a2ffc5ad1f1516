// Package errors provides error handling for Synapse.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrBudgetExhausted) {
//	    // fail the query before fan-out
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the federated query engine.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidQuery indicates the query request was malformed: empty query
	// text, missing user context, or a non-positive result cap. Aborts the
	// request before the budget ledger is touched.
	ErrInvalidQuery = New("invalid query")

	// ErrPermissionDenied indicates a silo denied access for this user.
	// Per-silo and non-fatal: the router records it as a limitation.
	ErrPermissionDenied = New("permission denied")

	// ErrBudgetExhausted indicates the remaining privacy budget cannot cover
	// the requested epsilon. Fatal to the query before any fan-out begins.
	ErrBudgetExhausted = New("privacy budget exhausted")

	// ErrSiloUnavailable indicates a silo search failed outright.
	// Per-silo and non-fatal.
	ErrSiloUnavailable = New("silo unavailable")

	// ErrSiloTimeout indicates a silo search exceeded the shared deadline.
	// Per-silo and non-fatal.
	ErrSiloTimeout = New("silo timed out")

	// ErrSynthesisUnavailable indicates the synthesis collaborator failed or
	// timed out. The ranked results are still returned; synthesis is the only
	// casualty.
	ErrSynthesisUnavailable = New("synthesis unavailable")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidQueryError checks if an error is or wraps ErrInvalidQuery
func IsInvalidQueryError(err error) bool {
	return err != nil && Is(err, ErrInvalidQuery)
}

// IsBudgetExhaustedError checks if an error is or wraps ErrBudgetExhausted
func IsBudgetExhaustedError(err error) bool {
	return err != nil && Is(err, ErrBudgetExhausted)
}

// IsPermissionDeniedError checks if an error is or wraps ErrPermissionDenied
func IsPermissionDeniedError(err error) bool {
	return err != nil && Is(err, ErrPermissionDenied)
}

// IsSiloTimeoutError checks if an error is or wraps ErrSiloTimeout
func IsSiloTimeoutError(err error) bool {
	return err != nil && Is(err, ErrSiloTimeout)
}

// NewInvalidQueryError creates an invalid-query error with a formatted message
func NewInvalidQueryError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidQuery, Newf(format, args...).Error())
}

// NewBudgetExhaustedError creates a budget-exhausted error with a formatted message
func NewBudgetExhaustedError(format string, args ...interface{}) error {
	return Wrap(ErrBudgetExhausted, Newf(format, args...).Error())
}
