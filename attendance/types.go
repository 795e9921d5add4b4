/*
Package attendance contains the reconciliation and accrual engine.

PURPOSE:
  Raw clock-in/clock-out events are logged independently, append-only
  and unordered, by the intake forms. This package reconciles them into
  consolidated attendance sessions and derives payroll minute counts:

    1. Importer:   mirror unseen ENTRY events into the ledger (OPEN)
    2. Matcher:    pair OPEN sessions with their EXIT events (CLOSED)
    3. Calculator: split worked minutes into normal/overtime (COMPUTED)

  Each stage reads full current state, computes a diff, and submits it
  through the batched writer. Re-running any stage on unchanged input
  produces zero writes.

KEY CONCEPTS IN THIS FILE (types.go):
  - RawEvent: one immutable clock event from the raw log
  - Session:  one mutable ledger row (OPEN → CLOSED → COMPUTED)
  - Tables:   the named tables the engine touches
  - Stage summaries: structured per-stage counts, never panics

DESIGN PRINCIPLES:
  1. Idempotence: pending sets are recomputed from store state each
     run; no cross-run memory is trusted
  2. Data quality is not failure: malformed rows, orphan exits and
     duplicate OPEN sessions are counted and flagged, never fatal
  3. The ledger is append-and-update only: the engine never deletes
     or reorders rows

SEE ALSO:
  - load.go:       boundary conversion from raw cells
  - importer.go, matcher.go, calculator.go: the three stages
  - pipeline.go:   stage orchestration and the run summary
*/
package attendance

import (
	"fmt"
	"time"
)

// =============================================================================
// TABLES
// =============================================================================

// Tables names the backing-store tables the engine reads and writes.
type Tables struct {
	RawLog      string
	Ledger      string
	Schedule    string
	PaySchedule string
	Roster      string
}

// DefaultTables matches the production spreadsheet tab names.
func DefaultTables() Tables {
	return Tables{
		RawLog:      "DAILY_LOG",
		Ledger:      "ATTENDANCE_LEDGER",
		Schedule:    "WORK_SCHEDULE",
		PaySchedule: "PAY_SCHEDULE",
		Roster:      "COLLABORATORS",
	}
}

// Raw log columns.
const (
	RawColID           = "ID"
	RawColCollaborator = "Collaborator"
	RawColEvent        = "Event"
	RawColDate         = "Date"
	RawColTime         = "Time"
	RawColDescription  = "Description"
	RawColOvertimeReq  = "OvertimeRequest"
)

// Ledger columns. The engine appends full rows and updates the exit,
// minute and flag fields in place; it never deletes.
const (
	LedgerColSessionID       = "SessionID"
	LedgerColSourceID        = "SourceID"
	LedgerColCollaborator    = "Collaborator"
	LedgerColEntryDate       = "EntryDate"
	LedgerColEntryTime       = "EntryTime"
	LedgerColEntryNote       = "EntryNote"
	LedgerColExitDate        = "ExitDate"
	LedgerColExitTime        = "ExitTime"
	LedgerColExitNote        = "ExitNote"
	LedgerColOvertimeReq     = "OvertimeRequested"
	LedgerColTotalMinutes    = "TotalMinutes"
	LedgerColNormalMinutes   = "NormalMinutes"
	LedgerColOvertimeMinutes = "OvertimeMinutes"
	LedgerColFlag            = "Flag"
)

// LedgerHeader is the canonical ledger column order, used when the
// sqlite/memory backends bootstrap an empty ledger.
var LedgerHeader = []string{
	LedgerColSessionID, LedgerColSourceID, LedgerColCollaborator,
	LedgerColEntryDate, LedgerColEntryTime, LedgerColEntryNote,
	LedgerColExitDate, LedgerColExitTime, LedgerColExitNote,
	LedgerColOvertimeReq, LedgerColTotalMinutes, LedgerColNormalMinutes,
	LedgerColOvertimeMinutes, LedgerColFlag,
}

// Review flag values written to the ledger Flag column.
const (
	FlagDuplicateOpen = "DUPLICATE_OPEN"
	FlagNoSchedule    = "NO_SCHEDULE"
)

// =============================================================================
// RAW EVENTS
// =============================================================================

type EventType string

const (
	EventEntry EventType = "ENTRY"
	EventExit  EventType = "EXIT"
)

// RawEvent is one clock event from the raw log. Immutable: the engine
// never writes to the raw log. Identity within a processing window is
// (Collaborator, Timestamp, Type).
type RawEvent struct {
	ID                string
	Collaborator      string
	Type              EventType
	Timestamp         time.Time
	Description       string
	OvertimeRequested bool
}

// EventLog is the typed view of the raw log, in source order.
type EventLog struct {
	Events []RawEvent

	// Malformed counts source rows dropped at conversion (missing
	// collaborator, unparseable date/clock, unknown event type).
	Malformed int
}

// =============================================================================
// SESSIONS
// =============================================================================

type SessionState string

const (
	StateOpen     SessionState = "OPEN"
	StateClosed   SessionState = "CLOSED"
	StateComputed SessionState = "COMPUTED"
)

// Session is one ledger row: an entry event, eventually paired with
// its exit, eventually carrying the minute split.
type Session struct {
	// SheetRow is the 1-based backing-store row, the address field
	// updates are keyed by.
	SheetRow int

	ID           string
	SourceID     string
	Collaborator string

	Entry     time.Time
	EntryNote string

	// Exit is the zero time while the session is OPEN.
	Exit              time.Time
	ExitNote          string
	OvertimeRequested bool

	TotalMinutes    int
	NormalMinutes   int
	OvertimeMinutes int

	// HasMinutes distinguishes "computed as 0" from "not computed".
	HasMinutes bool

	Flag string
}

// State derives the lifecycle state from the filled fields.
func (s *Session) State() SessionState {
	switch {
	case s.Exit.IsZero():
		return StateOpen
	case !s.HasMinutes:
		return StateClosed
	default:
		return StateComputed
	}
}

// Key is the import identity: one session per (collaborator, entry
// timestamp).
func (s *Session) Key() string { return sessionKey(s.Collaborator, s.Entry) }

func sessionKey(collaborator string, at time.Time) string {
	return fmt.Sprintf("%s|%s", collaborator, at.UTC().Format(time.RFC3339))
}

// =============================================================================
// STAGE SUMMARIES
// =============================================================================

// ImportSummary reports one Entry Importer pass.
type ImportSummary struct {
	Scanned   int // ENTRY events seen in the raw log
	Appended  int // new OPEN sessions queued
	Existing  int // entries already mirrored
	Malformed int // raw rows skipped at conversion
}

// MatchSummary reports one Exit Matcher pass.
type MatchSummary struct {
	Open          int // OPEN sessions at stage start
	Matched       int // sessions closed this pass
	StillOpen     int // left OPEN for the next run
	Orphans       int // exits with no plausible entry
	DuplicateOpen int // OPEN sessions flagged as duplicates
}

// ComputeSummary reports one Minute Calculator pass.
type ComputeSummary struct {
	Closed      int // CLOSED-or-later sessions examined
	Computed    int // minute splits written
	Recomputed  int // of those, recomputed after entry/exit changed
	NoSchedule  int // sessions flagged for missing schedule policy
	UpToDate    int // already computed, nothing to do
}
