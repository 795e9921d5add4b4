/*
handlers.go - HTTP handlers for the operational API

PURPOSE:
  A small operational surface over the batch engine: trigger a
  pipeline run, inspect recent run summaries, and query ledger
  sessions. This is ops tooling for the people babysitting payroll
  runs, not a product UI - the engine itself stays a batch process.

SERIALIZATION:
  Runs against a shared ledger must not overlap. The handler holds a
  mutex across Run() so a manual trigger and the background scheduler
  can never race each other within this process.

SEE ALSO:
  - server.go:    router and middleware
  - scheduler.go: periodic background runs
*/
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/tabular"
)

// maxHistory bounds the in-memory run history.
const maxHistory = 50

// RunRecord is one remembered pipeline run.
type RunRecord struct {
	At      time.Time              `json:"at"`
	Summary *attendance.RunSummary `json:"summary,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Handler serves the operational API.
type Handler struct {
	Pipeline *attendance.Pipeline
	Store    tabular.Reader
	Tables   attendance.Tables
	Logger   *log.Logger

	runMu sync.Mutex

	histMu  sync.RWMutex
	history []RunRecord
}

func NewHandler(p *attendance.Pipeline, store tabular.Reader, tables attendance.Tables) *Handler {
	return &Handler{Pipeline: p, Store: store, Tables: tables, Logger: log.Default()}
}

// RunOnce executes one serialized pipeline run and records it.
// Shared by the POST endpoint and the scheduler.
func (h *Handler) RunOnce(ctx context.Context) (*attendance.RunSummary, error) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	sum, err := h.Pipeline.Run(ctx)
	rec := RunRecord{At: time.Now(), Summary: sum}
	if err != nil {
		rec.Error = err.Error()
	}

	h.histMu.Lock()
	h.history = append(h.history, rec)
	if len(h.history) > maxHistory {
		h.history = h.history[len(h.history)-maxHistory:]
	}
	h.histMu.Unlock()
	return sum, err
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Health responds to liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerRun runs the pipeline and returns its summary.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	sum, err := h.RunOnce(r.Context())
	if err != nil {
		// Configuration failure: nothing was written.
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !sum.Success() {
		// Completed, but some batches were unrecoverable.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, sum)
}

// ListRuns returns the remembered run records, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.histMu.RLock()
	out := make([]RunRecord, len(h.history))
	for i, rec := range h.history {
		out[len(h.history)-1-i] = rec
	}
	h.histMu.RUnlock()
	writeJSON(w, http.StatusOK, out)
}

// sessionDTO is the wire shape of one ledger session.
type sessionDTO struct {
	ID              string `json:"id"`
	Collaborator    string `json:"collaborator"`
	State           string `json:"state"`
	Entry           string `json:"entry"`
	Exit            string `json:"exit,omitempty"`
	TotalMinutes    int    `json:"total_minutes,omitempty"`
	NormalMinutes   int    `json:"normal_minutes,omitempty"`
	OvertimeMinutes int    `json:"overtime_minutes,omitempty"`
	Flag            string `json:"flag,omitempty"`
}

// ListSessions returns ledger sessions, optionally filtered by
// collaborator and entry-date range (?collaborator=&from=&to=,
// dates as yyyy-mm-dd).
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ledger, err := attendance.LoadLedger(r.Context(), h.Store, h.Tables.Ledger)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	collaborator := r.URL.Query().Get("collaborator")
	from, fromSet := parseDay(r.URL.Query().Get("from"))
	to, toSet := parseDay(r.URL.Query().Get("to"))

	out := []sessionDTO{}
	for _, s := range ledger.Sessions {
		if collaborator != "" && s.Collaborator != collaborator {
			continue
		}
		if fromSet && s.Entry.Before(from) {
			continue
		}
		if toSet && !s.Entry.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		dto := sessionDTO{
			ID:           s.ID,
			Collaborator: s.Collaborator,
			State:        string(s.State()),
			Entry:        s.Entry.Format(time.RFC3339),
			Flag:         s.Flag,
		}
		if !s.Exit.IsZero() {
			dto.Exit = s.Exit.Format(time.RFC3339)
		}
		if s.HasMinutes {
			dto.TotalMinutes = s.TotalMinutes
			dto.NormalMinutes = s.NormalMinutes
			dto.OvertimeMinutes = s.OvertimeMinutes
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
