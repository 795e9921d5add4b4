/*
convert.go - Cell parsing helpers

PURPOSE:
  The backing stores hand back loosely typed string cells: clock values
  like "6:29:47" or "9:00", dates as dd/mm/yyyy, minute counts as bare
  digits. These helpers convert cells into typed values exactly once,
  at ingestion, so the reconciliation stages never touch raw cells.

FORGIVENESS:
  Human-entered clock cells come in several shapes. ParseClock accepts
  H:MM, HH:MM, H:MM:SS and HH:MM:SS by zero-padding before parsing.
  Anything else is a malformed cell: the caller skips and counts the
  row, it never aborts a stage.
*/
package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date cell format (day first, as the
// intake forms produce).
const DateLayout = "02/01/2006"

// isoDateLayout is accepted on read for manually corrected cells.
const isoDateLayout = "2006-01-02"

// Clock is a time of day, independent of any calendar date.
type Clock struct {
	Hour, Minute, Second int
}

// Minutes returns minutes since midnight, ignoring seconds.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// At anchors the clock onto a calendar day.
func (c Clock) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, c.Second, 0, day.Location())
}

// ParseClock parses a clock cell, tolerating missing zero padding and
// missing seconds.
func ParseClock(cell string) (Clock, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return Clock{}, fmt.Errorf("empty clock cell")
	}
	parts := strings.Split(s, ":")
	if len(parts) == 2 {
		parts = append(parts, "0")
	}
	if len(parts) != 3 {
		return Clock{}, fmt.Errorf("unparseable clock cell %q", cell)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Clock{}, fmt.Errorf("unparseable clock cell %q", cell)
		}
		vals[i] = n
	}
	c := Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return Clock{}, fmt.Errorf("clock cell out of range %q", cell)
	}
	return c, nil
}

// ParseDate parses a date cell as dd/mm/yyyy, falling back to ISO.
// The result is midnight UTC of that calendar day.
func ParseDate(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date cell")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(isoDateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date cell %q", cell)
}

// ParseTimestamp combines a date cell and a clock cell into a single
// instant (UTC).
func ParseTimestamp(dateCell, clockCell string) (time.Time, error) {
	day, err := ParseDate(dateCell)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := ParseClock(clockCell)
	if err != nil {
		return time.Time{}, err
	}
	return clock.At(day), nil
}

// ParseInt parses an integer cell. Empty cells are not integers.
func ParseInt(cell string) (int, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, fmt.Errorf("empty integer cell")
	}
	return strconv.Atoi(s)
}

// FormatDate renders a day in the canonical date cell format.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatClock renders an instant's time of day as a clock cell.
func FormatClock(t time.Time) string { return t.Format("15:04:05") }
