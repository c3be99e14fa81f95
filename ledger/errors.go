/*
errors.go - Centralized error taxonomy for ledger operations

PURPOSE:
  All error kinds raised by the orchestration entry points, in one place.
  Callers inspect kinds with errors.Is / errors.As and render specific
  messages; nothing is surfaced as an anonymous string.

ERROR CATEGORIES:
  1. Configuration - missing fee or exchange rate for an operation
  2. Not found     - referenced payment, owner, or debt is missing
  3. Already processed - double approval guard
  4. Validation    - bad input at the report boundary
  5. Conflict      - the store detected a conflicting concurrent write;
                     the whole operation must be retried from fresh reads

USAGE:
  if errors.Is(err, ledger.ErrAlreadyProcessed) { ... }

  var nf *ledger.NotFoundError
  if errors.As(err, &nf) { log.Printf("missing %s %s", nf.Kind, nf.ID) }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned when the condo fee or the applicable
	// exchange rate for a payment's date is missing or not positive.
	// Fatal to the operation; the transaction never commits.
	ErrConfiguration = errors.New("billing configuration error")

	// ErrNotFound is returned when a referenced record does not exist at
	// transaction time.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessed is returned when approving a payment that is
	// already approved. This guard prevents double-crediting.
	ErrAlreadyProcessed = errors.New("payment already processed")

	// ErrValidation is returned for malformed input before any record is
	// created.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the store detects a conflicting
	// concurrent write. The caller retries the whole operation with
	// fresh reads; the core never merges partial state.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrDuplicateDebt is returned when creating a debt for an
	// (owner, property, period) that already has one.
	ErrDuplicateDebt = errors.New("debt already exists for period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError names the missing or invalid setting.
type ConfigurationError struct {
	Setting string // "condoFee", "exchangeRate"
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NotFoundError identifies which record was missing.
type NotFoundError struct {
	Kind string // "payment", "owner", "debt"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyProcessedError reports a double-approval attempt.
type AlreadyProcessedError struct {
	PaymentID string
	Status    PaymentStatus
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("payment %s is already %s", e.PaymentID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

// ValidationError reports invalid input at the report boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateDebtError identifies the occupied slot.
type DuplicateDebtError struct {
	OwnerID  string
	Property Property
	Period   Period
}

func (e *DuplicateDebtError) Error() string {
	return fmt.Sprintf("debt already exists: owner %s property %s period %s",
		e.OwnerID, e.Property, e.Period)
}

func (e *DuplicateDebtError) Unwrap() error { return ErrDuplicateDebt }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry with
// fresh reads.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input
// or state, rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrDuplicateDebt)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
