/*
Package tabular provides the table abstraction over the backing store.

PURPOSE:
  This package contains the store-agnostic model of the spreadsheet-like
  backing store: tables of string cells, append and cell-update intents,
  and the batched writer that pushes them out without tripping provider
  write quotas. Whether the rows live in Google Sheets, SQLite, or
  memory, the reconciliation stages only ever see these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Row:        A single table row as raw string cells
  - Table:      A named table with a header and data rows
  - CellUpdate: An intent to overwrite one named cell of one row
  - Append:     An intent to add rows at the end of a table

DESIGN PRINCIPLES:
  1. Strings at the boundary: the backing stores are loosely typed;
     conversion to domain types happens exactly once (convert.go)
  2. Field-level updates: stages never rewrite whole rows, they emit
     one CellUpdate per changed field
  3. Sheet-row addressing: data row i of a Table lives at sheet row
     i+2 (row 1 is the header), matching A1 notation

SEE ALSO:
  - store.go:  Reader/Appender/Updater interfaces
  - writer.go: Batched, quota-respecting flushing
  - convert.go: Cell parsing helpers
*/
package tabular

import "fmt"

// =============================================================================
// ROWS AND TABLES
// =============================================================================

// Row is one table row as raw cells. Short rows are padded to the
// header width when a table is read.
type Row []string

// Get returns the cell at column i, or "" when the row is short.
func (r Row) Get(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Table is a named table: a header row plus data rows.
// Data row i corresponds to sheet row i+2.
type Table struct {
	Name   string
	Header []string
	Rows   []Row
}

// ColumnIndex returns the 0-based index of a header column.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("table %s: %w: %s", t.Name, ErrColumnNotFound, name)
}

// Cell returns the value at (data row, column name), "" if absent.
func (t *Table) Cell(row int, column string) string {
	i, err := t.ColumnIndex(column)
	if err != nil || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row].Get(i)
}

// SheetRow converts a data-row index into its 1-based sheet row.
func (t *Table) SheetRow(row int) int { return row + 2 }

// =============================================================================
// WRITE INTENTS
// =============================================================================

// CellUpdate overwrites a single cell, addressed by table, 1-based
// sheet row, and 0-based column index.
type CellUpdate struct {
	Table  string
	Row    int
	Column int
	Value  string
}

// Append adds rows at the end of a table.
type Append struct {
	Table string
	Rows  []Row
}

// ColumnLetters converts a 0-based column index to its A1 letters
// (0 → A, 25 → Z, 26 → AA).
func ColumnLetters(col int) string {
	letters := ""
	for col >= 0 {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
	}
	return letters
}

// A1 renders the update target in A1 notation, e.g. "LEDGER!F12".
func (u CellUpdate) A1() string {
	return fmt.Sprintf("%s!%s%d", u.Table, ColumnLetters(u.Column), u.Row)
}
