package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/schedule"
	"github.com/warp/attendance-engine/tabular"
	"github.com/warp/attendance-engine/tabular/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// weekdayBook gives Ana a 09:00-17:00 window Monday through Friday
// (480 scheduled minutes).
func weekdayBook(t *testing.T) *schedule.Book {
	t.Helper()
	start, err := tabular.ParseClock("09:00:00")
	require.NoError(t, err)
	end, err := tabular.ParseClock("17:00:00")
	require.NoError(t, err)

	book := schedule.NewBook()
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		book.Set("Ana Torres", d, schedule.Window{Start: start, End: end})
	}
	return book
}

// closedLedger seeds a ledger holding one CLOSED session and returns it
// loaded, with the store for re-reading after a flush.
func closedLedger(t *testing.T, entryDate, entryTime, exitDate, exitTime string, minutes ...string) (*store.Memory, attendance.Tables) {
	t.Helper()
	tables := attendance.DefaultTables()
	row := tabular.Row{"id-1", "r1", "Ana Torres", entryDate, entryTime, "", exitDate, exitTime, "", "No", "", "", "", ""}
	if len(minutes) == 3 {
		row[10], row[11], row[12] = minutes[0], minutes[1], minutes[2]
	}
	mem := store.NewMemory()
	mem.Seed(tables.RawLog, rawHeader)
	mem.Seed(tables.Ledger, attendance.LedgerHeader, row)
	return mem, tables
}

// runCalculator loads the ledger, runs the calculator against book,
// and flushes.
func runCalculator(t *testing.T, mem *store.Memory, tables attendance.Tables, book *schedule.Book) attendance.ComputeSummary {
	t.Helper()
	var sum attendance.ComputeSummary
	runStage(t, mem, tables, func(_ *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewCalculator().Run(l, book, w)
	})
	return sum
}

// =============================================================================
// MINUTE CALCULATOR
// =============================================================================

func TestCalculator_SessionInsideWindowIsAllNormal(t *testing.T) {
	// GIVEN a closed 09:00-17:00 Monday session and a 480-minute window
	mem, tables := closedLedger(t, "02/06/2025", "09:00:00", "02/06/2025", "17:00:00")

	sum := runCalculator(t, mem, tables, weekdayBook(t))

	// THEN 480 total, 480 normal, 0 overtime
	assert.Equal(t, attendance.ComputeSummary{Closed: 1, Computed: 1}, sum)
	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, attendance.StateComputed, s.State())
	assert.Equal(t, 480, s.TotalMinutes)
	assert.Equal(t, 480, s.NormalMinutes)
	assert.Equal(t, 0, s.OvertimeMinutes)
}

func TestCalculator_MinutesBeyondWindowAreOvertime(t *testing.T) {
	// GIVEN a 09:00-19:00 session against a 480-minute window
	mem, tables := closedLedger(t, "02/06/2025", "09:00:00", "02/06/2025", "19:00:00")

	sum := runCalculator(t, mem, tables, weekdayBook(t))

	// THEN 600 total = 480 normal + 120 overtime
	assert.Equal(t, attendance.ComputeSummary{Closed: 1, Computed: 1}, sum)
	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, 600, s.TotalMinutes)
	assert.Equal(t, 480, s.NormalMinutes)
	assert.Equal(t, 120, s.OvertimeMinutes)
	assert.Equal(t, s.TotalMinutes, s.NormalMinutes+s.OvertimeMinutes)
}

func TestCalculator_TotalFloorsToWholeMinutes(t *testing.T) {
	// GIVEN a session spanning 59 minutes 59 seconds
	mem, tables := closedLedger(t, "02/06/2025", "09:00:00", "02/06/2025", "09:59:59")

	runCalculator(t, mem, tables, weekdayBook(t))

	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, 59, s.TotalMinutes)
}

func TestCalculator_MissingPolicyCountsAllNormalAndFlags(t *testing.T) {
	// GIVEN a Sunday session with no window for that weekday
	mem, tables := closedLedger(t, "01/06/2025", "09:00:00", "01/06/2025", "19:00:00")

	sum := runCalculator(t, mem, tables, weekdayBook(t))

	// THEN the whole span is normal and the row is flagged for review
	assert.Equal(t, attendance.ComputeSummary{Closed: 1, Computed: 1, NoSchedule: 1}, sum)
	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, 600, s.TotalMinutes)
	assert.Equal(t, 600, s.NormalMinutes)
	assert.Equal(t, 0, s.OvertimeMinutes)
	assert.Equal(t, attendance.FlagNoSchedule, s.Flag)
}

func TestCalculator_CrossMidnightUsesEntryDayWindow(t *testing.T) {
	// GIVEN a night shift entering Monday 22:00, exiting Tuesday 06:00,
	// and a Monday-only 22:00-06:00 overnight window
	mem, tables := closedLedger(t, "02/06/2025", "22:00:00", "03/06/2025", "06:00:00")

	start, err := tabular.ParseClock("22:00:00")
	require.NoError(t, err)
	end, err := tabular.ParseClock("06:00:00")
	require.NoError(t, err)
	book := schedule.NewBook()
	book.Set("Ana Torres", time.Monday, schedule.Window{Start: start, End: end})

	sum := runCalculator(t, mem, tables, book)

	// THEN the entry day's policy applies: 480 scheduled, all normal
	assert.Equal(t, attendance.ComputeSummary{Closed: 1, Computed: 1}, sum)
	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, 480, s.TotalMinutes)
	assert.Equal(t, 480, s.NormalMinutes)
	assert.Equal(t, 0, s.OvertimeMinutes)
}

func TestCalculator_UpToDateSessionQueuesNothing(t *testing.T) {
	// GIVEN a COMPUTED session whose stored total matches the span
	mem, tables := closedLedger(t, "02/06/2025", "09:00:00", "02/06/2025", "17:00:00", "480", "480", "0")

	var sum attendance.ComputeSummary
	book := weekdayBook(t)
	runStage(t, mem, tables, func(_ *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewCalculator().Run(l, book, w)
		assert.Zero(t, w.Pending())
	})

	assert.Equal(t, attendance.ComputeSummary{Closed: 1, UpToDate: 1}, sum)
}

func TestCalculator_RecomputesAfterExitCorrection(t *testing.T) {
	// GIVEN a COMPUTED session whose exit was later corrected by hand,
	// so the stored total no longer matches the span
	mem, tables := closedLedger(t, "02/06/2025", "09:00:00", "02/06/2025", "19:00:00", "480", "480", "0")

	sum := runCalculator(t, mem, tables, weekdayBook(t))

	// THEN the split is rederived from the corrected cells
	assert.Equal(t, attendance.ComputeSummary{Closed: 1, Computed: 1, Recomputed: 1}, sum)
	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, 600, s.TotalMinutes)
	assert.Equal(t, 480, s.NormalMinutes)
	assert.Equal(t, 120, s.OvertimeMinutes)
}

func TestCalculator_OpenSessionsAreIgnored(t *testing.T) {
	// GIVEN an OPEN session (no exit yet)
	tables := attendance.DefaultTables()
	mem := store.NewMemory()
	mem.Seed(tables.RawLog, rawHeader)
	mem.Seed(tables.Ledger, attendance.LedgerHeader,
		tabular.Row{"id-1", "r1", "Ana Torres", "02/06/2025", "09:00:00", "", "", "", "", "", "", "", "", ""})

	var sum attendance.ComputeSummary
	book := weekdayBook(t)
	runStage(t, mem, tables, func(_ *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewCalculator().Run(l, book, w)
		assert.Zero(t, w.Pending())
	})

	assert.Equal(t, attendance.ComputeSummary{}, sum)
}
