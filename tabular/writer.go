/*
writer.go - Batched, quota-respecting writer

PURPOSE:
  The backing store imposes a write-rate quota (Google Sheets allows on
  the order of 60 write calls per minute per user). Each reconciliation
  stage can produce hundreds of cell updates, so writes are queued as
  intents and flushed in bounded batches: one store call per batch
  instead of one per cell.

GUARANTEES:
  - Batches are issued in submission order
  - A batch either fully succeeds or fully fails; failed batches are
    retried as a unit with exponential backoff while the error is
    retryable (quota, transient transport)
  - A batch that exhausts its attempts is recorded as a failure and
    does NOT block later batches
  - Flush returns a report with every failure; nothing is dropped
    silently

RECOVERY MODEL:
  There is no partial-batch resubmission. A failed batch is simply
  reported; the next pipeline run recomputes the pending set from
  current store state and re-emits the same intents. Stage idempotence
  makes that safe.

SEE ALSO:
  - errors.go: retryable classification, BatchError
  - store.go:  the interfaces batches are issued against
*/
package tabular

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// WriterConfig bounds batch size and retry behavior.
type WriterConfig struct {
	// MaxBatchSize caps rows per append call and cells per update call.
	MaxBatchSize int

	// MaxAttempts is the total tries per batch, first attempt included.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt; it doubles
	// per attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultWriterConfig matches the Sheets write quota comfortably.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxBatchSize:   50,
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff returns the delay after attempt n (1-based): doubling from
// InitialBackoff, capped at MaxBackoff.
func (c WriterConfig) Backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// =============================================================================
// WRITER
// =============================================================================

// Writer accumulates append and cell-update intents and flushes them
// in bounded batches. Not safe for concurrent use; the pipeline is
// single-threaded by design.
type Writer struct {
	store   Store
	cfg     WriterConfig
	limiter *rate.Limiter

	appends []Append
	updates []CellUpdate

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWriter creates a writer over store.
func NewWriter(store Store, cfg WriterConfig) *Writer {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultWriterConfig().MaxBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Writer{store: store, cfg: cfg, sleep: sleepCtx}
}

// SetLimiter installs a shared rate limiter consulted before every
// store call. Nil disables limiting (memory and sqlite stores).
func (w *Writer) SetLimiter(l *rate.Limiter) { w.limiter = l }

// QueueAppend queues rows for the end of a table. Consecutive appends
// to the same table coalesce so they can share batches.
func (w *Writer) QueueAppend(table string, rows ...Row) {
	if len(rows) == 0 {
		return
	}
	if n := len(w.appends); n > 0 && w.appends[n-1].Table == table {
		w.appends[n-1].Rows = append(w.appends[n-1].Rows, rows...)
		return
	}
	w.appends = append(w.appends, Append{Table: table, Rows: rows})
}

// QueueUpdate queues single-cell updates.
func (w *Writer) QueueUpdate(updates ...CellUpdate) {
	w.updates = append(w.updates, updates...)
}

// Pending returns the number of queued intents (rows plus cells).
func (w *Writer) Pending() int {
	n := len(w.updates)
	for _, a := range w.appends {
		n += len(a.Rows)
	}
	return n
}

// =============================================================================
// FLUSH
// =============================================================================

// FlushReport summarizes one flush: what landed and what failed.
type FlushReport struct {
	Batches      int
	RowsAppended int
	CellsUpdated int
	Failures     []*BatchError
}

// Failed reports whether any batch was unrecoverable.
func (r *FlushReport) Failed() bool { return len(r.Failures) > 0 }

// Err collapses the failures into a single error, nil when clean.
func (r *FlushReport) Err() error {
	if !r.Failed() {
		return nil
	}
	return fmt.Errorf("%d of %d batches failed: %w", len(r.Failures), r.Batches, r.Failures[0])
}

// Flush issues all queued intents: appends first (in queue order),
// then updates, each split into batches of at most MaxBatchSize.
// The queue is cleared regardless of outcome; failed intents are
// re-derived by the next run, not replayed from memory.
func (w *Writer) Flush(ctx context.Context) *FlushReport {
	report := &FlushReport{}

	for _, a := range w.appends {
		for start := 0; start < len(a.Rows); start += w.cfg.MaxBatchSize {
			end := start + w.cfg.MaxBatchSize
			if end > len(a.Rows) {
				end = len(a.Rows)
			}
			chunk := a.Rows[start:end]
			report.Batches++
			attempts, err := w.attempt(ctx, func() error {
				return w.store.AppendRows(ctx, a.Table, chunk)
			})
			if err != nil {
				report.Failures = append(report.Failures, &BatchError{
					Table: a.Table, Kind: "append", Size: len(chunk), Attempts: attempts, Err: err,
				})
				continue
			}
			report.RowsAppended += len(chunk)
		}
	}

	for start := 0; start < len(w.updates); start += w.cfg.MaxBatchSize {
		end := start + w.cfg.MaxBatchSize
		if end > len(w.updates) {
			end = len(w.updates)
		}
		chunk := w.updates[start:end]
		report.Batches++
		attempts, err := w.attempt(ctx, func() error {
			return w.store.UpdateCells(ctx, chunk)
		})
		if err != nil {
			report.Failures = append(report.Failures, &BatchError{
				Table: chunk[0].Table, Kind: "update", Size: len(chunk), Attempts: attempts, Err: err,
			})
			continue
		}
		report.CellsUpdated += len(chunk)
	}

	w.appends = nil
	w.updates = nil
	return report
}

// attempt runs op with retry-with-backoff on retryable errors.
// Returns the attempts used and the final error (nil on success).
func (w *Writer) attempt(ctx context.Context, op func() error) (int, error) {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if w.limiter != nil {
			if lerr := w.limiter.Wait(ctx); lerr != nil {
				return attempt, lerr
			}
		}
		err = op()
		if err == nil {
			return attempt, nil
		}
		if !IsRetryable(err) || attempt == w.cfg.MaxAttempts {
			return attempt, err
		}
		if serr := w.sleep(ctx, w.cfg.Backoff(attempt)); serr != nil {
			return attempt, err
		}
	}
	return w.cfg.MaxAttempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
