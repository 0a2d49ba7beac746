/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Access errors - mutations attempted outside the active period
  2. Period errors - backend period data that cannot be normalized
  3. Backend errors - non-2xx answers and missing records

WHAT IS NOT AN ERROR:
  - Stale async results: they are superseded, not failed, and are
    dropped silently by the Sequencer.
  - Zero-row payment or roster answers: they trigger the fallback
    query chain and are accepted as a genuine empty result at the end.
  - Malformed ledger dates: they sort by plain string comparison.

USAGE:
  if errors.Is(err, generic.ErrReadOnlyPeriod) {
      // hide the create button, keep print/export
  }

SEE ALSO:
  - academic/state.go: returns ReadOnlyError from Guard
  - backend/client.go: returns StatusError
*/
package generic

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReadOnlyPeriod is returned when a mutation is attempted while the
	// viewed academic period differs from the backend's active period.
	ErrReadOnlyPeriod = errors.New("read-only period")

	// ErrInvalidPeriod is returned when a period cannot be normalized into
	// a start/end year span.
	ErrInvalidPeriod = errors.New("invalid academic period")

	// ErrPeriodUnavailable is returned when neither the active-period query
	// nor the period list produced a usable period.
	ErrPeriodUnavailable = errors.New("active academic period unavailable")

	// ErrNotFound is returned when the backend has no such record.
	ErrNotFound = errors.New("not found")

	// ErrBackendStatus is returned for non-2xx backend answers.
	ErrBackendStatus = errors.New("unexpected backend status")

	// ErrBackendRejected is returned when the backend answers 2xx with an
	// envelope whose success flag is false.
	ErrBackendRejected = errors.New("backend rejected request")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StatusError describes a non-2xx backend answer.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: http %d", e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrBackendStatus
}

// RejectedError carries the message of a {"success": false} envelope.
type RejectedError struct {
	Path    string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: rejected", e.Path)
	}
	return fmt.Sprintf("backend %s: %s", e.Path, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrBackendRejected }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return false
}

// IsClientError returns true if the error is due to a disallowed user action
// or invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReadOnlyPeriod) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
