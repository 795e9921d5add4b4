/*
pipeline.go - Stage orchestration and the run summary

PURPOSE:
  Runs the three stages in order - Importer, Matcher, Calculator - each
  against freshly read store state, flushing the batched writer between
  stages so every stage sees its predecessor's writes.

FAILURE MODEL:
  - Configuration failures (missing required table/column): detected by
    a preflight read of all three tables, fatal BEFORE any write
  - Transport/quota failures: retried inside the writer; exhausted
    batches are collected into the summary, the run continues
  - Data-quality conditions: counted in stage summaries, never fatal

  The run as a whole succeeds only when no batch was unrecoverable;
  main maps that to the process exit status for CI.

CONCURRENCY:
  Single-threaded by design. Overlapping runs against the same ledger
  are not safe; external scheduling (cron/CI, or the api.RunScheduler
  mutex) serializes runs. A killed run is safely resumable because
  every stage recomputes its pending set from current store state.
*/
package attendance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/warp/attendance-engine/schedule"
	"github.com/warp/attendance-engine/tabular"
)

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary aggregates the three stage summaries and every batch
// failure of one pipeline run.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Import  ImportSummary
	Match   MatchSummary
	Compute ComputeSummary

	ScheduleRowsSkipped int

	RowsWritten  int
	CellsWritten int

	BatchesFailed int
	Failures      []string
}

// Success reports whether the run completed with zero unrecoverable
// batch failures.
func (r *RunSummary) Success() bool { return r.BatchesFailed == 0 }

// String renders the human-readable run summary surfaced via logs.
func (r *RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "import: %d entries scanned, %d appended, %d existing, %d malformed | ",
		r.Import.Scanned, r.Import.Appended, r.Import.Existing, r.Import.Malformed)
	fmt.Fprintf(&b, "match: %d open, %d matched, %d still open, %d orphan exits, %d duplicate-open | ",
		r.Match.Open, r.Match.Matched, r.Match.StillOpen, r.Match.Orphans, r.Match.DuplicateOpen)
	fmt.Fprintf(&b, "minutes: %d closed, %d computed (%d recomputed), %d without schedule | ",
		r.Compute.Closed, r.Compute.Computed, r.Compute.Recomputed, r.Compute.NoSchedule)
	fmt.Fprintf(&b, "writes: %d rows, %d cells, %d failed batches", r.RowsWritten, r.CellsWritten, r.BatchesFailed)
	return b.String()
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline wires the three stages over one backing store.
type Pipeline struct {
	Store  tabular.Store
	Tables Tables

	WriterConfig tabular.WriterConfig
	// Limiter throttles store write calls to the provider quota.
	// Nil for local backends.
	Limiter *rate.Limiter
	Logger  *log.Logger

	importer   *Importer
	matcher    *Matcher
	calculator *Calculator
}

func NewPipeline(store tabular.Store, tables Tables) *Pipeline {
	return &Pipeline{
		Store:        store,
		Tables:       tables,
		WriterConfig: tabular.DefaultWriterConfig(),
		Logger:       log.Default(),
		importer:     NewImporter(),
		matcher:      NewMatcher(),
		calculator:   NewCalculator(),
	}
}

// Run executes one full pass. The returned error is non-nil only for
// configuration failures, which abort before any write; batch failures
// land in the summary instead.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	sum := &RunSummary{StartedAt: time.Now()}
	defer func() { sum.FinishedAt = time.Now() }()

	// Preflight: every required table must be readable before the first
	// write, so a misconfigured run cannot leave a half-updated ledger.
	book, err := schedule.Load(ctx, p.Store, p.Tables.Schedule)
	if err != nil {
		return nil, err
	}
	sum.ScheduleRowsSkipped = book.Skipped
	if _, err := p.Store.ReadTable(ctx, p.Tables.RawLog); err != nil {
		return nil, fmt.Errorf("raw log %s: %w", p.Tables.RawLog, err)
	}
	if _, err := p.Store.ReadTable(ctx, p.Tables.Ledger); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", p.Tables.Ledger, err)
	}

	w := tabular.NewWriter(p.Store, p.WriterConfig)
	w.SetLimiter(p.Limiter)

	// Stage 1: import new entries.
	events, ledger, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	sum.Import = p.importer.Run(events, ledger, w)
	p.flush(ctx, w, sum, "importer")

	// Stage 2: match exits, against post-import state.
	events, ledger, err = p.read(ctx)
	if err != nil {
		return nil, err
	}
	sum.Match = p.matcher.Run(events, ledger, w)
	p.flush(ctx, w, sum, "matcher")

	// Stage 3: minute splits, against post-match state.
	_, ledger, err = p.read(ctx)
	if err != nil {
		return nil, err
	}
	sum.Compute = p.calculator.Run(ledger, book, w)
	p.flush(ctx, w, sum, "calculator")

	p.Logger.Printf("[Pipeline] %s", sum)
	return sum, nil
}

func (p *Pipeline) read(ctx context.Context) (*EventLog, *Ledger, error) {
	events, err := LoadRawLog(ctx, p.Store, p.Tables.RawLog)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := LoadLedger(ctx, p.Store, p.Tables.Ledger)
	if err != nil {
		return nil, nil, err
	}
	return events, ledger, nil
}

func (p *Pipeline) flush(ctx context.Context, w *tabular.Writer, sum *RunSummary, stage string) {
	report := w.Flush(ctx)
	sum.RowsWritten += report.RowsAppended
	sum.CellsWritten += report.CellsUpdated
	sum.BatchesFailed += len(report.Failures)
	for _, f := range report.Failures {
		sum.Failures = append(sum.Failures, fmt.Sprintf("%s: %v", stage, f))
		p.Logger.Printf("[Pipeline] %s: %v", stage, f)
	}
}
