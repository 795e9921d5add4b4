/*
Package schedule holds the per-collaborator weekly work-hour policies.

PURPOSE:
  The schedule table defines, per collaborator, the expected work window
  for each weekday. The minute calculator splits a session's total
  minutes into normal and overtime against these windows. The table is
  read-only for the engine.

TABLE SHAPE:
  One row per collaborator per day range:

    Collaborator | Days            | Start    | End
    Ana Torres   | Monday-Friday   | 09:00:00 | 17:00:00
    Ana Torres   | Saturday        | 09:00:00 | 13:00:00

  Day ranges expand left to right in Monday-first order. Later rows win
  on overlap, which lets a single-day row override a range row.

DESIGN:
  The Book is an explicit lookup structure handed to the calculator,
  never ambient state - tests substitute a fixture Book directly.
*/
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/attendance-engine/tabular"
)

// Column names of the schedule table.
const (
	ColCollaborator = "Collaborator"
	ColDays         = "Days"
	ColStart        = "Start"
	ColEnd          = "End"
)

// =============================================================================
// WINDOW - One weekday's expected work span
// =============================================================================

// Window is a scheduled work span for one weekday.
type Window struct {
	Start tabular.Clock
	End   tabular.Clock
}

// Minutes returns the scheduled span length. A window that ends at or
// before it starts is read as crossing midnight (night shifts).
func (w Window) Minutes() int {
	n := w.End.Minutes() - w.Start.Minutes()
	if n <= 0 {
		n += 24 * 60
	}
	return n
}

// =============================================================================
// BOOK - Collaborator → weekday → window lookup
// =============================================================================

// Book maps collaborators to their weekly windows.
type Book struct {
	windows map[string]map[time.Weekday]Window

	// Skipped counts malformed schedule rows dropped at load time.
	// Data quality, not fatal.
	Skipped int
}

func NewBook() *Book {
	return &Book{windows: make(map[string]map[time.Weekday]Window)}
}

// Set installs a window for one collaborator and weekday.
func (b *Book) Set(collaborator string, day time.Weekday, w Window) {
	week, ok := b.windows[collaborator]
	if !ok {
		week = make(map[time.Weekday]Window)
		b.windows[collaborator] = week
	}
	week[day] = w
}

// Lookup returns the window for a collaborator on a weekday.
func (b *Book) Lookup(collaborator string, day time.Weekday) (Window, bool) {
	w, ok := b.windows[collaborator][day]
	return w, ok
}

// Len returns the number of collaborators with at least one window.
func (b *Book) Len() int { return len(b.windows) }

// =============================================================================
// LOADING
// =============================================================================

// Load reads the schedule table into a Book. A missing table is a
// configuration failure; malformed rows are skipped and counted.
func Load(ctx context.Context, r tabular.Reader, table string) (*Book, error) {
	t, err := r.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("schedule table %s: %w", table, err)
	}

	cols, err := columnIndexes(t)
	if err != nil {
		return nil, err
	}

	book := NewBook()
	for _, row := range t.Rows {
		collaborator := strings.TrimSpace(row.Get(cols.collaborator))
		if collaborator == "" {
			book.Skipped++
			continue
		}
		days, err := ParseDayRange(row.Get(cols.days))
		if err != nil {
			book.Skipped++
			continue
		}
		start, err := tabular.ParseClock(row.Get(cols.start))
		if err != nil {
			book.Skipped++
			continue
		}
		end, err := tabular.ParseClock(row.Get(cols.end))
		if err != nil {
			book.Skipped++
			continue
		}
		for _, d := range days {
			book.Set(collaborator, d, Window{Start: start, End: end})
		}
	}
	return book, nil
}

type scheduleColumns struct {
	collaborator, days, start, end int
}

func columnIndexes(t *tabular.Table) (scheduleColumns, error) {
	var c scheduleColumns
	var err error
	if c.collaborator, err = t.ColumnIndex(ColCollaborator); err != nil {
		return c, err
	}
	if c.days, err = t.ColumnIndex(ColDays); err != nil {
		return c, err
	}
	if c.start, err = t.ColumnIndex(ColStart); err != nil {
		return c, err
	}
	if c.end, err = t.ColumnIndex(ColEnd); err != nil {
		return c, err
	}
	return c, nil
}

// =============================================================================
// DAY RANGES
// =============================================================================

// weekOrder is the Monday-first ordering day ranges expand in.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// ParseDayRange expands a day cell into weekdays: a single day name
// ("Saturday") or an inclusive range ("Monday-Friday").
func ParseDayRange(cell string) ([]time.Weekday, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil, fmt.Errorf("empty day cell")
	}
	parts := strings.Split(s, "-")
	first, err := parseWeekday(parts[0])
	if err != nil {
		return nil, err
	}
	last := first
	if len(parts) > 1 {
		if last, err = parseWeekday(parts[len(parts)-1]); err != nil {
			return nil, err
		}
	}

	from := weekIndex(first)
	to := weekIndex(last)
	if to < from {
		return nil, fmt.Errorf("day range %q runs backwards", cell)
	}
	return weekOrder[from : to+1], nil
}

func parseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, d := range weekOrder {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("unknown weekday %q", s)
}

func weekIndex(d time.Weekday) int {
	for i, w := range weekOrder {
		if w == d {
			return i
		}
	}
	return 0
}
