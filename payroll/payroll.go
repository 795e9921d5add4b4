/*
Package payroll tracks the pay-date schedule.

PURPOSE:
  The pay-schedule table lists, per collaborator, the next pay date and
  the attendance period it covers. Two consumers:

    - the readiness sweep marks rows READY once their pay date has
      passed (so the sheet shows at a glance which payments are due)
    - the report job selects collaborators whose pay date is today and
      hands their period to the report generator

  The engine only updates the Status column; pay dates and periods are
  maintained by hand in the sheet.
*/
package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/tabular"
)

// Column names of the pay-schedule table.
const (
	ColCollaborator = "Collaborator"
	ColPayDate      = "PayDate"
	ColPeriodStart  = "PeriodStart"
	ColPeriodEnd    = "PeriodEnd"
	ColStatus       = "Status"
)

// StatusReady marks a pay date that has passed.
const StatusReady = "READY"

// Entry is one pay-schedule row.
type Entry struct {
	SheetRow     int
	Collaborator string
	PayDate      time.Time
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Status       string
}

// Schedule is the typed pay-schedule table.
type Schedule struct {
	Table   string
	Entries []Entry

	// Malformed counts rows with unparseable dates. Skipped, reported,
	// never fatal.
	Malformed int

	statusCol int
}

// Load reads the pay-schedule table.
func Load(ctx context.Context, r tabular.Reader, table string) (*Schedule, error) {
	t, err := r.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("pay schedule %s: %w", table, err)
	}

	var cols struct{ collaborator, payDate, start, end, status int }
	for _, bind := range []struct {
		name string
		dst  *int
	}{
		{ColCollaborator, &cols.collaborator},
		{ColPayDate, &cols.payDate},
		{ColPeriodStart, &cols.start},
		{ColPeriodEnd, &cols.end},
		{ColStatus, &cols.status},
	} {
		if *bind.dst, err = t.ColumnIndex(bind.name); err != nil {
			return nil, err
		}
	}

	s := &Schedule{Table: table, statusCol: cols.status}
	for i, row := range t.Rows {
		e := Entry{
			SheetRow:     t.SheetRow(i),
			Collaborator: strings.TrimSpace(row.Get(cols.collaborator)),
			Status:       strings.TrimSpace(row.Get(cols.status)),
		}
		if e.Collaborator == "" {
			s.Malformed++
			continue
		}
		if e.PayDate, err = tabular.ParseDate(row.Get(cols.payDate)); err != nil {
			s.Malformed++
			continue
		}
		if e.PeriodStart, err = tabular.ParseDate(row.Get(cols.start)); err != nil {
			s.Malformed++
			continue
		}
		if e.PeriodEnd, err = tabular.ParseDate(row.Get(cols.end)); err != nil {
			s.Malformed++
			continue
		}
		s.Entries = append(s.Entries, e)
	}
	return s, nil
}

// DueOn returns the entries whose pay date is exactly the given day.
func (s *Schedule) DueOn(day time.Time) []Entry {
	var due []Entry
	for _, e := range s.Entries {
		if sameDay(e.PayDate, day) {
			due = append(due, e)
		}
	}
	return due
}

// MarkReady queues a READY status update for every entry whose pay
// date is on or before today's calendar date and which is not READY
// yet. Returns the number of rows marked. Idempotent: a second sweep
// queues nothing.
func (s *Schedule) MarkReady(today time.Time, w *tabular.Writer) int {
	marked := 0
	for _, e := range s.Entries {
		if e.Status == StatusReady || laterDay(e.PayDate, today) {
			continue
		}
		w.QueueUpdate(tabular.CellUpdate{
			Table: s.Table, Row: e.SheetRow, Column: s.statusCol, Value: StatusReady,
		})
		marked++
	}
	return marked
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// laterDay reports whether a falls on a later calendar day than b.
// Pay dates are calendar days; comparing components keeps the sweep
// correct when the two instants carry different zones (pay dates parse
// as UTC midnight, "today" is usually local).
func laterDay(a, b time.Time) bool {
	if a.Year() != b.Year() {
		return a.Year() > b.Year()
	}
	if a.Month() != b.Month() {
		return a.Month() > b.Month()
	}
	return a.Day() > b.Day()
}
