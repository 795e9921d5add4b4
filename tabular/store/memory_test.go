package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/tabular"
	"github.com/warp/attendance-engine/tabular/store"
)

func TestMemory_ReadIsACopy(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("T", []string{"A", "B"}, tabular.Row{"1", "2"})

	got, err := mem.ReadTable(context.Background(), "T")
	require.NoError(t, err)
	got.Rows[0][0] = "mutated"

	again, err := mem.ReadTable(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "1", again.Rows[0].Get(0))
}

func TestMemory_AppendPadsShortRows(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("T", []string{"A", "B", "C"})

	err := mem.AppendRows(context.Background(), "T", []tabular.Row{{"only-a"}})
	require.NoError(t, err)

	got, err := mem.ReadTable(context.Background(), "T")
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, tabular.Row{"only-a", "", ""}, got.Rows[0])
}

func TestMemory_UpdateCellsIsAllOrNothing(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("T", []string{"A", "B"}, tabular.Row{"1", "2"})

	// One good target, one out of range: nothing may land.
	err := mem.UpdateCells(context.Background(), []tabular.CellUpdate{
		{Table: "T", Row: 2, Column: 0, Value: "new"},
		{Table: "T", Row: 99, Column: 0, Value: "lost"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, tabular.ErrRowOutOfRange)

	got, err := mem.ReadTable(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Rows[0].Get(0))
}

func TestMemory_UpdateCellsDistinguishesBadRowFromBadColumn(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("T", []string{"A", "B"}, tabular.Row{"1", "2"})

	err := mem.UpdateCells(context.Background(), []tabular.CellUpdate{
		{Table: "T", Row: 5, Column: 0, Value: "x"},
	})
	assert.ErrorIs(t, err, tabular.ErrRowOutOfRange)

	err = mem.UpdateCells(context.Background(), []tabular.CellUpdate{
		{Table: "T", Row: 2, Column: 7, Value: "x"},
	})
	assert.ErrorIs(t, err, tabular.ErrColumnNotFound)
}

func TestMemory_UpdateCellsAddressesSheetRows(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("T", []string{"A"}, tabular.Row{"first"}, tabular.Row{"second"})

	// Row 3 in sheet terms is the second data row (row 1 is the header).
	err := mem.UpdateCells(context.Background(), []tabular.CellUpdate{
		{Table: "T", Row: 3, Column: 0, Value: "updated"},
	})
	require.NoError(t, err)

	got, err := mem.ReadTable(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Rows[0].Get(0))
	assert.Equal(t, "updated", got.Rows[1].Get(0))
}

func TestMemory_UnknownTable(t *testing.T) {
	mem := store.NewMemory()

	_, err := mem.ReadTable(context.Background(), "NOPE")
	assert.ErrorIs(t, err, tabular.ErrTableNotFound)

	err = mem.AppendRows(context.Background(), "NOPE", []tabular.Row{{"x"}})
	assert.ErrorIs(t, err, tabular.ErrTableNotFound)
}
