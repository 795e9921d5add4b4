// Package store provides tabular.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/attendance-engine/tabular"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	tables map[string]*tabular.Table
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*tabular.Table)}
}

// Seed installs a table with the given header and rows, replacing any
// existing table of the same name.
func (m *Memory) Seed(name string, header []string, rows ...tabular.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &tabular.Table{Name: name, Header: append([]string{}, header...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, padRow(r, len(t.Header)))
	}
	m.tables[name] = t
}

func (m *Memory) ReadTable(_ context.Context, name string) (*tabular.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[name]
	if !ok {
		return nil, tabular.ErrTableNotFound
	}
	out := &tabular.Table{Name: t.Name, Header: append([]string{}, t.Header...)}
	for _, r := range t.Rows {
		out.Rows = append(out.Rows, append(tabular.Row{}, r...))
	}
	return out, nil
}

func (m *Memory) AppendRows(_ context.Context, name string, rows []tabular.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return tabular.ErrTableNotFound
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, padRow(r, len(t.Header)))
	}
	return nil
}

// UpdateCells applies all updates atomically: targets are validated
// before any cell is touched, so a bad update leaves the store as-is.
func (m *Memory) UpdateCells(_ context.Context, updates []tabular.CellUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range updates {
		t, ok := m.tables[u.Table]
		if !ok {
			return fmt.Errorf("%w: %s", tabular.ErrTableNotFound, u.Table)
		}
		if u.Row < 2 || u.Row-2 >= len(t.Rows) {
			return fmt.Errorf("%w: %s row %d", tabular.ErrRowOutOfRange, u.Table, u.Row)
		}
		if u.Column < 0 || u.Column >= len(t.Header) {
			return fmt.Errorf("%w: %s column %d", tabular.ErrColumnNotFound, u.Table, u.Column)
		}
	}
	for _, u := range updates {
		m.tables[u.Table].Rows[u.Row-2][u.Column] = u.Value
	}
	return nil
}

func padRow(r tabular.Row, width int) tabular.Row {
	out := append(tabular.Row{}, r...)
	for len(out) < width {
		out = append(out, "")
	}
	return out
}
