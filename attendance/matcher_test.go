package attendance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/tabular"
)

// =============================================================================
// EXIT MATCHER
// =============================================================================

func TestMatcher_ClosesSessionWithEarliestLaterExit(t *testing.T) {
	// GIVEN an OPEN session and a matching exit in the raw log
	mem, tables := newTestStore(
		rawRow("r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""),
		rawRow("r2", "Ana Torres", "EXIT", "02/06/2025", "17:00", "closing shift", "approved"),
	)
	imp := newTestImporter()
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		imp.Run(ev, l, w)
	})

	// WHEN the matcher runs
	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
	})

	// THEN the session is CLOSED with the exit's fields
	assert.Equal(t, attendance.MatchSummary{Open: 1, Matched: 1}, sum)

	sessions := loadSessions(t, mem, tables)
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, attendance.StateClosed, s.State())
	assert.Equal(t, "02/06/2025", tabular.FormatDate(s.Exit))
	assert.Equal(t, "17:00:00", tabular.FormatClock(s.Exit))
	assert.Equal(t, "closing shift", s.ExitNote)
	assert.True(t, s.OvertimeRequested)
}

func TestMatcher_SecondPassQueuesNothing(t *testing.T) {
	mem, tables := newTestStore(
		rawRow("r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""),
		rawRow("r2", "Ana Torres", "EXIT", "02/06/2025", "17:00", "", ""),
	)
	imp := newTestImporter()
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		imp.Run(ev, l, w)
	})
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		attendance.NewMatcher().Run(ev, l, w)
	})

	// WHEN the matcher runs again on unchanged input
	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
		// THEN the recorded exit is already consumed; no writes
		assert.Zero(t, w.Pending())
	})
	assert.Equal(t, attendance.MatchSummary{}, sum)
}

func TestMatcher_OneExitNeverClosesTwoSessions(t *testing.T) {
	// GIVEN two OPEN sessions racing for a single exit
	mem, tables := newTestStore(
		rawRow("r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""),
		rawRow("r2", "Ana Torres", "ENTRY", "02/06/2025", "9:30", "", ""),
		rawRow("r3", "Ana Torres", "EXIT", "02/06/2025", "17:00", "", ""),
	)
	imp := newTestImporter()
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		imp.Run(ev, l, w)
	})

	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
	})

	// THEN the oldest entry wins the exit; the other stays OPEN and is
	// flagged for review
	assert.Equal(t, attendance.MatchSummary{Open: 2, Matched: 1, StillOpen: 1, DuplicateOpen: 1}, sum)

	var closed, open *attendance.Session
	for _, s := range loadSessions(t, mem, tables) {
		if s.State() == attendance.StateClosed {
			closed = s
		} else {
			open = s
		}
	}
	require.NotNil(t, closed)
	require.NotNil(t, open)
	assert.Equal(t, "09:00:00", tabular.FormatClock(closed.Entry))
	assert.Equal(t, "09:30:00", tabular.FormatClock(open.Entry))
	assert.Equal(t, attendance.FlagDuplicateOpen, open.Flag)
}

func TestMatcher_LateExitClearsDuplicateFlag(t *testing.T) {
	// GIVEN a session flagged DUPLICATE_OPEN in an earlier pass
	mem, tables := newTestStore(
		rawRow("r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""),
		rawRow("r2", "Ana Torres", "ENTRY", "02/06/2025", "9:30", "", ""),
		rawRow("r3", "Ana Torres", "EXIT", "02/06/2025", "17:00", "", ""),
	)
	imp := newTestImporter()
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		imp.Run(ev, l, w)
	})
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		attendance.NewMatcher().Run(ev, l, w)
	})

	// WHEN the missing exit shows up in the raw log and the matcher
	// runs again
	require.NoError(t, mem.AppendRows(context.Background(), tables.RawLog, []tabular.Row{
		rawRow("r4", "Ana Torres", "EXIT", "02/06/2025", "18:00", "", ""),
	}))
	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
	})

	// THEN the flagged session closes and the stale flag is cleared
	assert.Equal(t, attendance.MatchSummary{Open: 1, Matched: 1}, sum)
	for _, s := range loadSessions(t, mem, tables) {
		assert.Equal(t, attendance.StateClosed, s.State())
		assert.Empty(t, s.Flag)
	}
}

func TestMatcher_ExitBeforeEntryIsNotAMatch(t *testing.T) {
	// GIVEN an exit logged before the session's entry
	mem, tables := newTestStore(
		rawRow("r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""),
		rawRow("r2", "Ana Torres", "EXIT", "02/06/2025", "8:00", "", ""),
	)
	imp := newTestImporter()
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		imp.Run(ev, l, w)
	})

	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
	})

	// THEN the session stays OPEN and the exit counts as an orphan:
	// no session of this collaborator starts before it
	assert.Equal(t, attendance.MatchSummary{Open: 1, StillOpen: 1, Orphans: 1}, sum)
	assert.Equal(t, attendance.StateOpen, loadSessions(t, mem, tables)[0].State())
}

func TestMatcher_OrphanExitOfUnknownCollaborator(t *testing.T) {
	// GIVEN an exit for someone with no ledger presence at all
	mem, tables := newTestStore(
		rawRow("r1", "Maria Paz", "EXIT", "02/06/2025", "17:00", "", ""),
	)

	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
		assert.Zero(t, w.Pending())
	})

	// THEN it is counted, never fabricated into a session
	assert.Equal(t, attendance.MatchSummary{Orphans: 1}, sum)
	assert.Empty(t, loadSessions(t, mem, tables))
}

func TestMatcher_CrossMidnightExitMatchesEntryDaySession(t *testing.T) {
	// GIVEN a night shift: entry Monday 22:00, exit Tuesday 06:00
	mem, tables := newTestStore(
		rawRow("r1", "Ana Torres", "ENTRY", "02/06/2025", "22:00", "", ""),
		rawRow("r2", "Ana Torres", "EXIT", "03/06/2025", "6:00", "", ""),
	)
	imp := newTestImporter()
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		imp.Run(ev, l, w)
	})

	var sum attendance.MatchSummary
	runStage(t, mem, tables, func(ev *attendance.EventLog, l *attendance.Ledger, w *tabular.Writer) {
		sum = attendance.NewMatcher().Run(ev, l, w)
	})

	// THEN the next-day exit closes the session
	assert.Equal(t, attendance.MatchSummary{Open: 1, Matched: 1}, sum)
	s := loadSessions(t, mem, tables)[0]
	assert.Equal(t, attendance.StateClosed, s.State())
	assert.Equal(t, "03/06/2025", tabular.FormatDate(s.Exit))
}
