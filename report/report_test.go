package report_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/tabular"
	"github.com/warp/attendance-engine/tabular/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// ledgerRow builds one COMPUTED ledger row. 02/06/2025 is a Monday.
func ledgerRow(collaborator, entryDate, exitTime, total, normal, overtime string) tabular.Row {
	return tabular.Row{
		"id", "src", collaborator,
		entryDate, "09:00:00", "",
		entryDate, exitTime, "shift done",
		"No", total, normal, overtime, "",
	}
}

func loadLedger(t *testing.T, rows ...tabular.Row) *attendance.Ledger {
	t.Helper()
	mem := store.NewMemory()
	mem.Seed("LEDGER", attendance.LedgerHeader, rows...)
	l, err := attendance.LoadLedger(context.Background(), mem, "LEDGER")
	require.NoError(t, err)
	return l
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// REPORT BUILDING
// =============================================================================

func TestBuild_SelectsComputedSessionsInsidePeriod(t *testing.T) {
	ledger := loadLedger(t,
		ledgerRow("Ana Torres", "02/06/2025", "17:00:00", "480", "480", "0"),
		ledgerRow("Ana Torres", "03/06/2025", "19:00:00", "600", "480", "120"),
		ledgerRow("Ana Torres", "20/06/2025", "17:00:00", "480", "480", "0"), // outside period
		ledgerRow("Maria Paz", "02/06/2025", "17:00:00", "480", "480", "0"),  // other collaborator
		// still OPEN, must not be billed
		tabular.Row{"id", "src", "Ana Torres", "04/06/2025", "09:00:00", "", "", "", "", "", "", "", "", ""},
	)

	r := report.Build("Ana Torres", day(2025, time.June, 1), day(2025, time.June, 14), ledger)

	require.Len(t, r.Sessions, 2)
	assert.False(t, r.Empty())
	assert.Equal(t, 1080, r.TotalMinutes)
	assert.Equal(t, 960, r.NormalMinutes)
	assert.Equal(t, 120, r.OvertimeMinutes)
	assert.Equal(t, r.TotalMinutes, r.NormalMinutes+r.OvertimeMinutes)
}

func TestBuild_PeriodEndIsInclusive(t *testing.T) {
	ledger := loadLedger(t,
		ledgerRow("Ana Torres", "14/06/2025", "17:00:00", "480", "480", "0"),
	)

	r := report.Build("Ana Torres", day(2025, time.June, 1), day(2025, time.June, 14), ledger)
	assert.Len(t, r.Sessions, 1)
}

func TestReport_HourTotalsAreExactDecimals(t *testing.T) {
	ledger := loadLedger(t,
		ledgerRow("Ana Torres", "02/06/2025", "17:30:00", "510", "480", "30"),
	)
	r := report.Build("Ana Torres", day(2025, time.June, 1), day(2025, time.June, 14), ledger)

	assert.Equal(t, "8.5", r.TotalHours().String())
	assert.Equal(t, "0.5", r.OvertimeHours().String())
}

func TestReport_Filename(t *testing.T) {
	r := report.Build("Ana Torres", day(2025, time.June, 1), day(2025, time.June, 14), loadLedger(t))
	assert.Equal(t, "attendance_Ana_Torres_2025-06-14.csv", r.Filename())
}

func TestReport_CSVEndsWithTotalsRow(t *testing.T) {
	ledger := loadLedger(t,
		ledgerRow("Ana Torres", "02/06/2025", "19:00:00", "600", "480", "120"),
	)
	r := report.Build("Ana Torres", day(2025, time.June, 1), day(2025, time.June, 14), ledger)

	data, err := r.CSV()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // header, one session, totals
	assert.Contains(t, lines[0], "EntryDate")
	assert.Contains(t, lines[1], "02/06/2025")
	assert.Contains(t, lines[2], "TOTAL")
	assert.Contains(t, lines[2], "10 h worked, 2 h overtime")
}
