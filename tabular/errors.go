/*
errors.go - Centralized error types for the tabular layer

PURPOSE:
  All store and writer error types in one place. The important split is
  retryable (quota, transient transport) versus terminal (missing table,
  missing column): the batched writer backs off and retries the former
  and reports the latter immediately.

USAGE:
  if tabular.IsRetryable(err) {
      // back off and retry the batch
  }
*/
package tabular

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTableNotFound is returned when a named table does not exist in
	// the backing store. Missing required tables are a configuration
	// failure and abort the run before any write.
	ErrTableNotFound = errors.New("table not found")

	// ErrColumnNotFound is returned when a header column the engine
	// relies on is absent.
	ErrColumnNotFound = errors.New("column not found")

	// ErrRowOutOfRange is returned when a cell update addresses a row
	// outside the table's current bounds.
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrQuotaExhausted signals a provider rate-limit response (HTTP 429
	// or equivalent). Always retryable with backoff.
	ErrQuotaExhausted = errors.New("write quota exhausted")

	// ErrTransient signals a temporary transport failure (5xx, reset
	// connection). Retryable.
	ErrTransient = errors.New("transient store failure")
)

// IsRetryable reports whether a batch that failed with err is worth
// retrying after a backoff delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrTransient)
}

// =============================================================================
// BATCH FAILURES
// =============================================================================

// BatchError records one batch that failed after exhausting retries.
// Failures are collected and surfaced; they never abort the flush of
// unrelated batches.
type BatchError struct {
	Table    string
	Kind     string // "append" or "update"
	Size     int
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch on %s (%d items) failed after %d attempts: %v",
		e.Kind, e.Table, e.Size, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
