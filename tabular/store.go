/*
store.go - Persistence interfaces for the tabular backing store

PURPOSE:
  Defines the interface between the reconciliation engine and whatever
  holds the tables. The engine reads whole tables, appends rows, and
  applies batches of single-cell updates - nothing else. No deletes,
  no reordering, no row rewrites.

IMPLEMENTATIONS:
  - sheets.Client:      Google Sheets values API (production)
  - store/sqlite.Store: SQLite cell store (local runs)
  - tabular/store.Memory: In-memory (tests, dev)

WRITE CONTRACT:
  AppendRows and UpdateCells are each atomic per call at the store
  level: a call either lands fully or returns an error having landed
  nothing the engine needs to compensate for. Retry handling lives in
  writer.go, not in the stores.

SEE ALSO:
  - writer.go: batching and retry on top of these interfaces
*/
package tabular

import "context"

// Reader reads a named table in full. The engine never reads partial
// ranges: each stage recomputes its pending set from complete current
// state, which is what makes re-runs idempotent.
type Reader interface {
	// ReadTable returns the table with header and padded rows.
	// Returns ErrTableNotFound if the table does not exist.
	ReadTable(ctx context.Context, name string) (*Table, error)
}

// Appender appends rows at the end of a named table.
type Appender interface {
	AppendRows(ctx context.Context, name string, rows []Row) error
}

// Updater applies a batch of single-cell updates.
type Updater interface {
	UpdateCells(ctx context.Context, updates []CellUpdate) error
}

// Store combines the full backing-store surface consumed by the engine.
type Store interface {
	Reader
	Appender
	Updater
}
