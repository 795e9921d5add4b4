/*
calculator.go - Minute Calculator (stage 3)

PURPOSE:
  For every CLOSED session, derives the worked-minute split against the
  collaborator's schedule:

    total    = floor(exit - entry, whole minutes)
    normal   = min(total, scheduled window length for the entry weekday)
    overtime = total - normal

  A session whose entry and exit fall on different calendar days is
  evaluated against the ENTRY day's window. That mirrors how the intake
  rows are keyed; cross-midnight shifts get the entry day's policy.

MISSING POLICY:
  No window for (collaborator, weekday) ⇒ the whole session counts as
  normal minutes, overtime 0, and the row is flagged NO_SCHEDULE for
  review. Conservative: the engine never invents overtime.

RECOMPUTATION:
  A COMPUTED session is recomputed only when the stored total no longer
  matches the freshly derived total, i.e. someone corrected the entry
  or exit cells since the last run.
*/
package attendance

import (
	"strconv"
	"time"

	"github.com/warp/attendance-engine/schedule"
	"github.com/warp/attendance-engine/tabular"
)

// Calculator fills the minute fields of CLOSED sessions.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Run computes the minute-field diff and queues it on the writer.
func (c *Calculator) Run(ledger *Ledger, book *schedule.Book, w *tabular.Writer) ComputeSummary {
	var sum ComputeSummary

	for _, s := range ledger.Sessions {
		if s.Exit.IsZero() {
			continue
		}
		sum.Closed++

		total := wholeMinutes(s.Entry, s.Exit)
		if s.HasMinutes && s.TotalMinutes == total {
			sum.UpToDate++
			continue
		}
		if s.HasMinutes {
			sum.Recomputed++
		}

		normal := total
		overtime := 0
		win, ok := book.Lookup(s.Collaborator, s.Entry.Weekday())
		if ok {
			if length := win.Minutes(); total > length {
				normal = length
				overtime = total - length
			}
		} else {
			sum.NoSchedule++
			if s.Flag == "" {
				s.Flag = FlagNoSchedule
				w.QueueUpdate(ledger.Update(s, LedgerColFlag, FlagNoSchedule))
			}
		}

		s.TotalMinutes = total
		s.NormalMinutes = normal
		s.OvertimeMinutes = overtime
		s.HasMinutes = true

		w.QueueUpdate(
			ledger.Update(s, LedgerColTotalMinutes, strconv.Itoa(total)),
			ledger.Update(s, LedgerColNormalMinutes, strconv.Itoa(normal)),
			ledger.Update(s, LedgerColOvertimeMinutes, strconv.Itoa(overtime)),
		)
		sum.Computed++
	}
	return sum
}

// wholeMinutes floors the span between two instants to whole minutes.
func wholeMinutes(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}
