/*
Package sqlite provides a SQLite-backed implementation of tabular.Store.

PURPOSE:
  Local and self-hosted runs keep the tables in a SQLite file instead
  of a Google spreadsheet. The engine's access pattern is cells, not
  relations - read a whole table, append rows, overwrite named cells -
  so the schema is a single cell store:

    cells(table_name, row, col, value)

  Row 1 of every table is its header; data rows follow contiguously.
  This mirrors the spreadsheet addressing exactly, so the same
  CellUpdate intents work against both backends.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging): readers don't
  block the writer and crash recovery is clean mid-batch.

USAGE:
  store, err := sqlite.New("./attendance.db")
  if err != nil { ... }
  defer store.Close()
  store.Bootstrap(ctx, "ATTENDANCE_LEDGER", attendance.LedgerHeader)

SEE ALSO:
  - tabular/store.go: the interfaces implemented here
  - sheets/client.go: the production backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/tabular"
)

// Store implements tabular.Store over a SQLite cell table.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and if needed migrates) the database at path.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cells (
		table_name TEXT NOT NULL,
		row        INTEGER NOT NULL, -- 1-based, row 1 is the header
		col        INTEGER NOT NULL, -- 0-based
		value      TEXT NOT NULL,
		PRIMARY KEY (table_name, row, col)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Bootstrap creates a table with the given header when it does not
// exist yet. Existing tables are left untouched.
func (s *Store) Bootstrap(ctx context.Context, name string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cells WHERE table_name = ? AND row = 1`, name).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.writeRow(ctx, nil, name, 1, header)
}

// =============================================================================
// tabular.Store IMPLEMENTATION
// =============================================================================

func (s *Store) ReadTable(ctx context.Context, name string) (*tabular.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT row, col, value FROM cells WHERE table_name = ? ORDER BY row, col`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byRow := make(map[int]map[int]string)
	maxRow := 0
	for rows.Next() {
		var row, col int
		var value string
		if err := rows.Scan(&row, &col, &value); err != nil {
			return nil, err
		}
		if byRow[row] == nil {
			byRow[row] = make(map[int]string)
		}
		byRow[row][col] = value
		if row > maxRow {
			maxRow = row
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if maxRow == 0 {
		return nil, fmt.Errorf("%w: %s", tabular.ErrTableNotFound, name)
	}

	t := &tabular.Table{Name: name, Header: materialize(byRow[1], 0)}
	for r := 2; r <= maxRow; r++ {
		t.Rows = append(t.Rows, materialize(byRow[r], len(t.Header)))
	}
	return t, nil
}

func (s *Store) AppendRows(ctx context.Context, name string, rows []tabular.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(row) FROM cells WHERE table_name = ?`, name).Scan(&last); err != nil {
		return err
	}
	if !last.Valid {
		return fmt.Errorf("%w: %s", tabular.ErrTableNotFound, name)
	}

	next := int(last.Int64) + 1
	for i, row := range rows {
		if err := s.writeRow(ctx, tx, name, next+i, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateCells applies the batch atomically: all cells land or none do.
func (s *Store) UpdateCells(ctx context.Context, updates []tabular.CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range updates {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cells (table_name, row, col, value) VALUES (?, ?, ?, ?)`,
			u.Table, u.Row, u.Column, u.Value)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) writeRow(ctx context.Context, tx *sql.Tx, name string, row int, cells []string) error {
	var ex execer = s.db
	if tx != nil {
		ex = tx
	}
	for col, value := range cells {
		_, err := ex.ExecContext(ctx,
			`INSERT OR REPLACE INTO cells (table_name, row, col, value) VALUES (?, ?, ?, ?)`,
			name, row, col, value)
		if err != nil {
			return err
		}
	}
	return nil
}

// materialize turns a sparse cell map into a dense row of at least
// width cells.
func materialize(cells map[int]string, width int) []string {
	max := width
	for col := range cells {
		if col+1 > max {
			max = col + 1
		}
	}
	out := make([]string, max)
	for col, v := range cells {
		out[col] = v
	}
	return out
}
