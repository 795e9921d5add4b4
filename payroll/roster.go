package payroll

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/tabular"
)

// Roster columns.
const (
	RosterColCollaborator = "Collaborator"
	RosterColEmail        = "Email"
)

// Roster maps collaborators to their report email addresses.
type Roster map[string]string

// LoadRoster reads the collaborator roster table. Rows without an
// address stay off the map; the report job reports them as
// undeliverable instead of failing.
func LoadRoster(ctx context.Context, r tabular.Reader, table string) (Roster, error) {
	t, err := r.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", table, err)
	}
	nameCol, err := t.ColumnIndex(RosterColCollaborator)
	if err != nil {
		return nil, err
	}
	emailCol, err := t.ColumnIndex(RosterColEmail)
	if err != nil {
		return nil, err
	}

	roster := make(Roster)
	for _, row := range t.Rows {
		name := strings.TrimSpace(row.Get(nameCol))
		email := strings.TrimSpace(row.Get(emailCol))
		if name == "" || email == "" {
			continue
		}
		roster[name] = email
	}
	return roster, nil
}
