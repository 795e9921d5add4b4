package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/tabular"
	"github.com/warp/attendance-engine/tabular/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var rawHeader = []string{"ID", "Collaborator", "Event", "Date", "Time", "Description", "OvertimeRequest"}

// newTestServer wires the full router over a seeded memory store.
// 02/06/2025 is a Monday; Ana works 09:00-17:00 on weekdays.
func newTestServer(t *testing.T, rawRows ...tabular.Row) (*httptest.Server, *store.Memory, attendance.Tables) {
	t.Helper()
	tables := attendance.DefaultTables()
	mem := store.NewMemory()
	mem.Seed(tables.RawLog, rawHeader, rawRows...)
	mem.Seed(tables.Ledger, attendance.LedgerHeader)
	mem.Seed(tables.Schedule, []string{"Collaborator", "Days", "Start", "End"},
		tabular.Row{"Ana Torres", "Monday-Friday", "09:00:00", "17:00:00"})

	h := api.NewHandler(attendance.NewPipeline(mem, tables), mem, tables)
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, mem, tables
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// =============================================================================
// ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var out map[string]string
	status := getJSON(t, srv.URL+"/healthz", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out["status"])
}

func TestTriggerRun_ReturnsSummaryAndRecordsHistory(t *testing.T) {
	srv, _, _ := newTestServer(t,
		tabular.Row{"r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""},
		tabular.Row{"r2", "Ana Torres", "EXIT", "02/06/2025", "17:00", "", ""},
	)

	var sum attendance.RunSummary
	status := postJSON(t, srv.URL+"/api/runs", &sum)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, sum.Import.Appended)
	assert.Equal(t, 1, sum.Match.Matched)
	assert.Equal(t, 1, sum.Compute.Computed)

	// The run shows up in the history, newest first.
	postJSON(t, srv.URL+"/api/runs", &attendance.RunSummary{})

	var runs []api.RunRecord
	status = getJSON(t, srv.URL+"/api/runs", &runs)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, runs, 2)
	require.NotNil(t, runs[0].Summary)
	require.NotNil(t, runs[1].Summary)
	// Newest first: the second (no-op) run leads.
	assert.Zero(t, runs[0].Summary.RowsWritten)
	assert.Equal(t, 1, runs[1].Summary.RowsWritten)
}

func TestTriggerRun_ConfigurationFailureIsBadGateway(t *testing.T) {
	tables := attendance.DefaultTables()
	mem := store.NewMemory() // no tables at all
	h := api.NewHandler(attendance.NewPipeline(mem, tables), mem, tables)
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)

	var out map[string]string
	status := postJSON(t, srv.URL+"/api/runs", &out)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.NotEmpty(t, out["error"])
}

func TestListSessions_FiltersByCollaboratorAndDateRange(t *testing.T) {
	srv, _, _ := newTestServer(t,
		tabular.Row{"r1", "Ana Torres", "ENTRY", "02/06/2025", "9:00", "", ""},
		tabular.Row{"r2", "Ana Torres", "EXIT", "02/06/2025", "17:00", "", ""},
		tabular.Row{"r3", "Ana Torres", "ENTRY", "20/06/2025", "9:00", "", ""},
		tabular.Row{"r4", "Maria Paz", "ENTRY", "02/06/2025", "9:00", "", ""},
	)
	postJSON(t, srv.URL+"/api/runs", &attendance.RunSummary{})

	type dto struct {
		Collaborator string `json:"collaborator"`
		State        string `json:"state"`
		TotalMinutes int    `json:"total_minutes"`
	}

	var all []dto
	status := getJSON(t, srv.URL+"/api/sessions", &all)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, all, 3)

	var ana []dto
	getJSON(t, srv.URL+"/api/sessions?collaborator=Ana+Torres&from=2025-06-01&to=2025-06-14", &ana)
	require.Len(t, ana, 1)
	assert.Equal(t, "Ana Torres", ana[0].Collaborator)
	assert.Equal(t, "COMPUTED", ana[0].State)
	assert.Equal(t, 480, ana[0].TotalMinutes)
}

func TestListSessions_EmptyLedgerIsAnEmptyArray(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var out []map[string]any
	status := getJSON(t, srv.URL+"/api/sessions", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
