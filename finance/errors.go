/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these; the api package maps them to HTTP status
  codes at the gateway boundary.

ERROR CATEGORIES:
  1. Validation errors - Missing or malformed required input (4xx, never retried)
  2. Not-found errors  - Referenced record does not exist (404)
  3. Conflict errors   - Duplicate numbers, invalid state transitions (409)
  4. Persistence errors - The backing store rejected a read/write (500)
  5. Partial failure   - A non-fatal secondary effect failed; the primary
                         result is still returned together with a warning

USAGE:
  Wrap with context, classify with errors.Is:

    if finance.IsNotFound(err) { ... 404 ... }
    if finance.IsClientError(err) { ... 400 ... }

SEE ALSO:
  - api/gateway.go: Maps these to HTTP responses
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrPersistence is returned when the backing store rejects an
	// operation. Not retried automatically: multi-write operations are
	// transactional, but blind retries of non-idempotent actions are unsafe.
	ErrPersistence = errors.New("store operation failed")

	// ErrDuplicateNumber is returned when a generated receipt or invoice
	// number collides with an existing one. The store's uniqueness
	// constraint rejects the write rather than silently overwriting.
	ErrDuplicateNumber = errors.New("duplicate document number")

	// ErrAlreadyRefunded is returned when a refund already exists for the
	// original transaction. Refund creation checks for an existing refund
	// before inserting, so retries do not duplicate.
	ErrAlreadyRefunded = errors.New("transaction already refunded")

	// ErrNotRefundable is returned when refunding a transaction that is
	// not in the completed state.
	ErrNotRefundable = errors.New("only completed transactions can be refunded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-level validation failure.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing record by kind and id.
type NotFoundError struct {
	Kind string // "transaction", "salary", "invoice", "teacher"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// Cause exposes the underlying store error for logging.
func (e *PersistenceError) Cause() error { return e.Err }

// PartialFailureWarning signals that the primary operation succeeded but a
// secondary effect failed. Result carries the primary record so the caller
// still receives it, together with the warning, instead of an error
// response.
type PartialFailureWarning struct {
	Result  any
	Warning string
	Err     error
}

func (e *PartialFailureWarning) Error() string {
	return fmt.Sprintf("partial failure: %s: %v", e.Warning, e.Err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotRefundable)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for duplicate-number and already-refunded
// failures, which map to 409 at the gateway.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateNumber) ||
		errors.Is(err, ErrAlreadyRefunded)
}
