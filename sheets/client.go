/*
Package sheets is the Google Sheets transport for the tabular store.

PURPOSE:
  Implements tabular.Store against the Sheets values API. Three
  endpoints cover the entire engine surface:

    values.get          → ReadTable   (whole tab, formatted values)
    values.append       → AppendRows  (INSERT_ROWS at the table end)
    values.batchUpdate  → UpdateCells (one A1 range per cell)

  Values are written with USER_ENTERED so dates and minute counts are
  typed by the sheet the same way manual entry types them.

ERROR MAPPING:
  429            → tabular.ErrQuotaExhausted (retryable; the batched
                   writer backs off and retries)
  5xx            → tabular.ErrTransient (retryable)
  400/404 on get → tabular.ErrTableNotFound (a missing tab is a
                   configuration failure)
  anything else  → terminal, reported as-is

SEE ALSO:
  - auth.go: service-account token source
  - tabular/writer.go: batching and retry on top of this client
*/
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/warp/attendance-engine/tabular"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4"

// Client talks to one spreadsheet.
type Client struct {
	SpreadsheetID string
	Tokens        TokenSource
	HTTP          *http.Client

	// BaseURL is overridable for tests.
	BaseURL string
}

func NewClient(spreadsheetID string, tokens TokenSource) *Client {
	return &Client{
		SpreadsheetID: spreadsheetID,
		Tokens:        tokens,
		HTTP:          http.DefaultClient,
		BaseURL:       defaultBaseURL,
	}
}

// =============================================================================
// tabular.Store IMPLEMENTATION
// =============================================================================

// ReadTable fetches a whole tab. The first row is the header; short
// rows are padded to the header width.
func (c *Client) ReadTable(ctx context.Context, name string) (*tabular.Table, error) {
	var out struct {
		Values [][]any `json:"values"`
	}
	path := fmt.Sprintf("/spreadsheets/%s/values/%s", c.SpreadsheetID, url.PathEscape(name))
	if err := c.call(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	if len(out.Values) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", tabular.ErrTableNotFound, name)
	}

	t := &tabular.Table{Name: name, Header: toCells(out.Values[0])}
	for _, raw := range out.Values[1:] {
		row := tabular.Row(toCells(raw))
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// AppendRows appends rows after the last data row of the tab.
func (c *Client) AppendRows(ctx context.Context, name string, rows []tabular.Row) error {
	body := map[string]any{"values": rows}
	path := fmt.Sprintf("/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		c.SpreadsheetID, url.PathEscape(name))
	return c.call(ctx, http.MethodPost, path, body, nil, false)
}

// UpdateCells issues one batchUpdate call covering every cell in the
// batch, one A1 range per cell.
func (c *Client) UpdateCells(ctx context.Context, updates []tabular.CellUpdate) error {
	data := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		data = append(data, map[string]any{
			"range":  u.A1(),
			"values": [][]string{{u.Value}},
		})
	}
	body := map[string]any{"valueInputOption": "USER_ENTERED", "data": data}
	path := fmt.Sprintf("/spreadsheets/%s/values:batchUpdate", c.SpreadsheetID)
	return c.call(ctx, http.MethodPost, path, body, nil, false)
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

func (c *Client) call(ctx context.Context, method, path string, body, out any, read bool) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("sheets auth: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", tabular.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err := classify(resp.StatusCode, raw, read); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("sheets response: %w", err)
		}
	}
	return nil
}

func classify(status int, body []byte, read bool) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", tabular.ErrQuotaExhausted, summarize(body))
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", tabular.ErrTransient, status, summarize(body))
	case read && (status == http.StatusBadRequest || status == http.StatusNotFound):
		return fmt.Errorf("%w: %s", tabular.ErrTableNotFound, summarize(body))
	default:
		return fmt.Errorf("sheets: status %d: %s", status, summarize(body))
	}
}

func summarize(body []byte) string {
	var out struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &out) == nil && out.Error.Message != "" {
		return out.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func toCells(raw []any) []string {
	cells := make([]string, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case string:
			cells[i] = x
		case nil:
			cells[i] = ""
		default:
			cells[i] = fmt.Sprint(x)
		}
	}
	return cells
}
