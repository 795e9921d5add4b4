/*
load.go - Boundary conversion from raw cells to typed entities

PURPOSE:
  The backing store hands back untyped string cells. Everything is
  validated and converted here, once, so the stages only ever handle
  RawEvent and Session values. Malformed rows are dropped and counted -
  a half-filled form row must never abort a payroll run.

SEE ALSO:
  - tabular/convert.go: the forgiving cell parsers
*/
package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/tabular"
)

// =============================================================================
// RAW LOG
// =============================================================================

// LoadRawLog reads and types the raw event log. A missing table is a
// configuration failure and aborts the run.
func LoadRawLog(ctx context.Context, r tabular.Reader, table string) (*EventLog, error) {
	t, err := r.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("raw log %s: %w", table, err)
	}

	var cols struct{ id, collaborator, event, date, clock, note, overtime int }
	for _, bind := range []struct {
		name string
		dst  *int
	}{
		{RawColID, &cols.id},
		{RawColCollaborator, &cols.collaborator},
		{RawColEvent, &cols.event},
		{RawColDate, &cols.date},
		{RawColTime, &cols.clock},
		{RawColDescription, &cols.note},
		{RawColOvertimeReq, &cols.overtime},
	} {
		if *bind.dst, err = t.ColumnIndex(bind.name); err != nil {
			return nil, err
		}
	}

	log := &EventLog{}
	for _, row := range t.Rows {
		ev := RawEvent{
			ID:                strings.TrimSpace(row.Get(cols.id)),
			Collaborator:      strings.TrimSpace(row.Get(cols.collaborator)),
			Description:       strings.TrimSpace(row.Get(cols.note)),
			OvertimeRequested: strings.TrimSpace(row.Get(cols.overtime)) != "",
		}
		switch strings.ToUpper(strings.TrimSpace(row.Get(cols.event))) {
		case string(EventEntry):
			ev.Type = EventEntry
		case string(EventExit):
			ev.Type = EventExit
		default:
			log.Malformed++
			continue
		}
		if ev.Collaborator == "" {
			log.Malformed++
			continue
		}
		ev.Timestamp, err = tabular.ParseTimestamp(row.Get(cols.date), row.Get(cols.clock))
		if err != nil {
			log.Malformed++
			continue
		}
		log.Events = append(log.Events, ev)
	}
	return log, nil
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the typed view of the consolidated ledger table plus the
// column layout needed to address cell updates back into it.
type Ledger struct {
	Table    string
	Header   []string
	Sessions []*Session

	// Malformed counts ledger rows whose entry fields would not parse.
	// Such rows are left untouched in the store.
	Malformed int

	cols map[string]int
}

// LoadLedger reads and types the consolidated ledger. A missing table
// is a configuration failure and aborts the run.
func LoadLedger(ctx context.Context, r tabular.Reader, table string) (*Ledger, error) {
	t, err := r.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", table, err)
	}

	l := &Ledger{Table: table, Header: t.Header, cols: make(map[string]int)}
	for _, name := range LedgerHeader {
		i, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		l.cols[name] = i
	}

	for i, row := range t.Rows {
		s := &Session{
			SheetRow:     t.SheetRow(i),
			ID:           strings.TrimSpace(row.Get(l.cols[LedgerColSessionID])),
			SourceID:     strings.TrimSpace(row.Get(l.cols[LedgerColSourceID])),
			Collaborator: strings.TrimSpace(row.Get(l.cols[LedgerColCollaborator])),
			EntryNote:    row.Get(l.cols[LedgerColEntryNote]),
			ExitNote:     row.Get(l.cols[LedgerColExitNote]),
			Flag:         strings.TrimSpace(row.Get(l.cols[LedgerColFlag])),
		}
		if s.Collaborator == "" {
			l.Malformed++
			continue
		}
		s.Entry, err = tabular.ParseTimestamp(row.Get(l.cols[LedgerColEntryDate]), row.Get(l.cols[LedgerColEntryTime]))
		if err != nil {
			l.Malformed++
			continue
		}

		exitDate := strings.TrimSpace(row.Get(l.cols[LedgerColExitDate]))
		exitTime := strings.TrimSpace(row.Get(l.cols[LedgerColExitTime]))
		if exitDate != "" && exitTime != "" {
			if s.Exit, err = tabular.ParseTimestamp(exitDate, exitTime); err != nil {
				l.Malformed++
				continue
			}
			s.OvertimeRequested = strings.EqualFold(strings.TrimSpace(row.Get(l.cols[LedgerColOvertimeReq])), "Yes")
		}

		if cell := row.Get(l.cols[LedgerColTotalMinutes]); strings.TrimSpace(cell) != "" {
			total, err := tabular.ParseInt(cell)
			if err != nil {
				l.Malformed++
				continue
			}
			s.TotalMinutes = total
			s.NormalMinutes, _ = tabular.ParseInt(row.Get(l.cols[LedgerColNormalMinutes]))
			s.OvertimeMinutes, _ = tabular.ParseInt(row.Get(l.cols[LedgerColOvertimeMinutes]))
			s.HasMinutes = true
		}

		l.Sessions = append(l.Sessions, s)
	}
	return l, nil
}

// Update builds a cell update against a session's row.
func (l *Ledger) Update(s *Session, column, value string) tabular.CellUpdate {
	return tabular.CellUpdate{Table: l.Table, Row: s.SheetRow, Column: l.cols[column], Value: value}
}

// NewRow lays out a fresh OPEN session row in this ledger's column
// order.
func (l *Ledger) NewRow(s *Session) tabular.Row {
	row := make(tabular.Row, len(l.Header))
	row[l.cols[LedgerColSessionID]] = s.ID
	row[l.cols[LedgerColSourceID]] = s.SourceID
	row[l.cols[LedgerColCollaborator]] = s.Collaborator
	row[l.cols[LedgerColEntryDate]] = tabular.FormatDate(s.Entry)
	row[l.cols[LedgerColEntryTime]] = tabular.FormatClock(s.Entry)
	row[l.cols[LedgerColEntryNote]] = s.EntryNote
	return row
}
