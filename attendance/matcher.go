/*
matcher.go - Exit Matcher (stage 2)

PURPOSE:
  Closes OPEN sessions by finding each one's EXIT event in the raw log.

SELECTION POLICY:
  For an OPEN session, the match is the EARLIEST exit of the same
  collaborator strictly after the entry timestamp that no other session
  has consumed. Consumption is one-to-one across the whole batch: the
  consumed set is seeded from already-CLOSED sessions, then extended as
  matches are assigned, so a single exit can never close two sessions.
  Open sessions are matched oldest entry first, which makes assignment
  deterministic when a collaborator has duplicate OPEN sessions.

DATA QUALITY:
  - Duplicate OPEN sessions (several opens, not enough exits): the ones
    left open are flagged DUPLICATE_OPEN and counted; the flag is
    cleared again if a later run finds an exit for them
  - Orphan exits (no session with an earlier entry exists): left
    unconsumed and counted; never fabricated into sessions
*/
package attendance

import (
	"sort"

	"github.com/warp/attendance-engine/tabular"
)

// Matcher pairs OPEN sessions with exit events.
type Matcher struct{}

func NewMatcher() *Matcher { return &Matcher{} }

// Run computes the field-update diff and queues it on the writer.
func (m *Matcher) Run(log *EventLog, ledger *Ledger, w *tabular.Writer) MatchSummary {
	var sum MatchSummary

	// One-to-one consumption set, seeded with exits already recorded.
	consumed := make(map[string]bool)
	for _, s := range ledger.Sessions {
		if !s.Exit.IsZero() {
			consumed[sessionKey(s.Collaborator, s.Exit)] = true
		}
	}

	// Exits per collaborator, earliest first.
	exits := make(map[string][]RawEvent)
	for _, ev := range log.Events {
		if ev.Type == EventExit {
			exits[ev.Collaborator] = append(exits[ev.Collaborator], ev)
		}
	}
	for _, evs := range exits {
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })
	}

	// Open sessions, oldest entry first (ties by ledger row).
	var open []*Session
	openPer := make(map[string]int)
	for _, s := range ledger.Sessions {
		if s.State() == StateOpen {
			open = append(open, s)
			openPer[s.Collaborator]++
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].Entry.Equal(open[j].Entry) {
			return open[i].Entry.Before(open[j].Entry)
		}
		return open[i].SheetRow < open[j].SheetRow
	})
	sum.Open = len(open)

	for _, s := range open {
		match, ok := earliestFree(exits[s.Collaborator], s, consumed)
		if !ok {
			sum.StillOpen++
			// Several opens racing for the same exits is a data-quality
			// condition on the source log; surface it on the row.
			if openPer[s.Collaborator] > 1 && s.Flag == "" {
				w.QueueUpdate(ledger.Update(s, LedgerColFlag, FlagDuplicateOpen))
				sum.DuplicateOpen++
			}
			continue
		}

		consumed[sessionKey(s.Collaborator, match.Timestamp)] = true
		s.Exit = match.Timestamp
		s.ExitNote = match.Description
		s.OvertimeRequested = match.OvertimeRequested

		w.QueueUpdate(
			ledger.Update(s, LedgerColExitDate, tabular.FormatDate(match.Timestamp)),
			ledger.Update(s, LedgerColExitTime, tabular.FormatClock(match.Timestamp)),
			ledger.Update(s, LedgerColExitNote, match.Description),
			ledger.Update(s, LedgerColOvertimeReq, yesNo(match.OvertimeRequested)),
		)
		// A duplicate-open flag describes the session's open state; once
		// a late exit closes it, the flag no longer applies.
		if s.Flag == FlagDuplicateOpen {
			s.Flag = ""
			w.QueueUpdate(ledger.Update(s, LedgerColFlag, ""))
		}
		sum.Matched++
	}

	sum.Orphans = m.countOrphans(ledger, exits, consumed)
	return sum
}

// earliestFree returns the earliest unconsumed exit strictly after the
// session's entry.
func earliestFree(exits []RawEvent, s *Session, consumed map[string]bool) (RawEvent, bool) {
	for _, ev := range exits {
		if !ev.Timestamp.After(s.Entry) {
			continue
		}
		if consumed[sessionKey(ev.Collaborator, ev.Timestamp)] {
			continue
		}
		return ev, true
	}
	return RawEvent{}, false
}

// countOrphans counts unconsumed exits with no plausible entry: no
// session of that collaborator starts before the exit. Exits that
// merely lost the race for an earlier open session are not orphans,
// they are retried next run.
func (m *Matcher) countOrphans(ledger *Ledger, exits map[string][]RawEvent, consumed map[string]bool) int {
	earliestEntry := make(map[string]*Session)
	for _, s := range ledger.Sessions {
		if cur := earliestEntry[s.Collaborator]; cur == nil || s.Entry.Before(cur.Entry) {
			earliestEntry[s.Collaborator] = s
		}
	}

	orphans := 0
	for collaborator, evs := range exits {
		for _, ev := range evs {
			if consumed[sessionKey(collaborator, ev.Timestamp)] {
				continue
			}
			first := earliestEntry[collaborator]
			if first == nil || !first.Entry.Before(ev.Timestamp) {
				orphans++
			}
		}
	}
	return orphans
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
