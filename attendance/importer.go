/*
importer.go - Entry Importer (stage 1)

PURPOSE:
  Mirrors ENTRY events that are not yet in the ledger into new OPEN
  sessions, preserving raw-log order.

IDEMPOTENCE:
  An entry is "already mirrored" when the ledger holds a session with
  the same (collaborator, entry timestamp) key. The key set is rebuilt
  from current ledger state on every pass - there is no watermark and
  no cross-run memory, so replays, reordered source rows and partially
  failed previous flushes all converge on re-run.

SEE ALSO:
  - matcher.go: stage 2, closes the sessions opened here
*/
package attendance

import (
	"github.com/google/uuid"
	"github.com/warp/attendance-engine/tabular"
)

// Importer appends one OPEN session per unmirrored ENTRY event.
type Importer struct {
	// NewID mints ledger row ids. Defaults to random UUIDs; tests
	// install a deterministic sequence.
	NewID func() string
}

func NewImporter() *Importer {
	return &Importer{NewID: uuid.NewString}
}

// Run computes the append diff and queues it on the writer. Never
// fails: malformed events were already dropped and counted at load.
func (imp *Importer) Run(log *EventLog, ledger *Ledger, w *tabular.Writer) ImportSummary {
	sum := ImportSummary{Malformed: log.Malformed}

	seen := make(map[string]bool, len(ledger.Sessions))
	for _, s := range ledger.Sessions {
		seen[s.Key()] = true
	}

	for _, ev := range log.Events {
		if ev.Type != EventEntry {
			continue
		}
		sum.Scanned++

		key := sessionKey(ev.Collaborator, ev.Timestamp)
		if seen[key] {
			sum.Existing++
			continue
		}
		seen[key] = true

		s := &Session{
			ID:           imp.NewID(),
			SourceID:     ev.ID,
			Collaborator: ev.Collaborator,
			Entry:        ev.Timestamp,
			EntryNote:    ev.Description,
		}
		w.QueueAppend(ledger.Table, ledger.NewRow(s))
		sum.Appended++
	}
	return sum
}
