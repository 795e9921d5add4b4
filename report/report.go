/*
Package report builds per-collaborator attendance reports.

PURPOSE:
  When a collaborator's pay date arrives, their COMPUTED sessions for
  the pay period are collected into a report: one line per session plus
  minute and hour totals. The report is encoded as CSV for delivery as
  an email attachment.

  Hour totals use decimal arithmetic - payroll figures must not pick up
  float artifacts on their way into a pay calculation.
*/
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/tabular"
)

var sixty = decimal.NewFromInt(60)

// Report is one collaborator's attendance for one pay period.
type Report struct {
	Collaborator string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Sessions     []*attendance.Session

	TotalMinutes    int
	NormalMinutes   int
	OvertimeMinutes int
}

// Build selects the collaborator's COMPUTED sessions whose entry date
// falls inside [start, end] (inclusive, whole days) and totals them,
// ordered by entry time.
func Build(collaborator string, start, end time.Time, ledger *attendance.Ledger) *Report {
	r := &Report{Collaborator: collaborator, PeriodStart: start, PeriodEnd: end}

	periodEnd := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())
	for _, s := range ledger.Sessions {
		if s.Collaborator != collaborator || s.State() != attendance.StateComputed {
			continue
		}
		if s.Entry.Before(start) || s.Entry.After(periodEnd) {
			continue
		}
		r.Sessions = append(r.Sessions, s)
		r.TotalMinutes += s.TotalMinutes
		r.NormalMinutes += s.NormalMinutes
		r.OvertimeMinutes += s.OvertimeMinutes
	}
	sort.SliceStable(r.Sessions, func(i, j int) bool { return r.Sessions[i].Entry.Before(r.Sessions[j].Entry) })
	return r
}

// Empty reports whether the period contained no computed sessions.
func (r *Report) Empty() bool { return len(r.Sessions) == 0 }

// TotalHours returns the worked hours for the period, 2dp.
func (r *Report) TotalHours() decimal.Decimal {
	return decimal.NewFromInt(int64(r.TotalMinutes)).Div(sixty).Round(2)
}

// OvertimeHours returns the overtime hours for the period, 2dp.
func (r *Report) OvertimeHours() decimal.Decimal {
	return decimal.NewFromInt(int64(r.OvertimeMinutes)).Div(sixty).Round(2)
}

// Filename returns the attachment name for this report.
func (r *Report) Filename() string {
	return fmt.Sprintf("attendance_%s_%s.csv",
		sanitize(r.Collaborator), r.PeriodEnd.Format("2006-01-02"))
}

// CSV encodes the report: a session line per row, then a totals row.
func (r *Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{
		"EntryDate", "EntryTime", "ExitDate", "ExitTime",
		"TotalMinutes", "NormalMinutes", "OvertimeMinutes", "Note",
	}}
	for _, s := range r.Sessions {
		rows = append(rows, []string{
			tabular.FormatDate(s.Entry), tabular.FormatClock(s.Entry),
			tabular.FormatDate(s.Exit), tabular.FormatClock(s.Exit),
			strconv.Itoa(s.TotalMinutes), strconv.Itoa(s.NormalMinutes),
			strconv.Itoa(s.OvertimeMinutes), s.ExitNote,
		})
	}
	rows = append(rows, []string{
		"TOTAL", "", "", "",
		strconv.Itoa(r.TotalMinutes), strconv.Itoa(r.NormalMinutes),
		strconv.Itoa(r.OvertimeMinutes),
		fmt.Sprintf("%s h worked, %s h overtime", r.TotalHours(), r.OvertimeHours()),
	})

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitize(name string) string {
	out := []rune(name)
	for i, c := range out {
		if c == ' ' || c == '/' || c == '\\' {
			out[i] = '_'
		}
	}
	return string(out)
}
