package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

// statesTable implements types.StateTable over the case_states table.
type statesTable struct {
	backend *Backend
}

const selectStates = "SELECT case_id, lifecycle_status, test_data_override, steps_override, last_run, updated_at FROM case_states"

// Get retrieves the overlay for caseID.
// Returns ErrInvalidID if caseID is empty, ErrNotFound if absent.
func (t *statesTable) Get(caseID string) (*types.CaseState, error) {
	if caseID == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	if !t.backend.attached {
		return nil, types.ErrBackendDetached
	}

	row := t.backend.db.QueryRow(selectStates+" WHERE case_id = ?", caseID)
	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Set upserts the overlay for state.CaseID.
func (t *statesTable) Set(state *types.CaseState) error {
	if state == nil || state.CaseID == "" {
		return types.ErrInvalidID
	}
	if !types.ValidStatus(state.LifecycleStatus) {
		return types.ErrInvalidStatus
	}

	var testData, steps, lastRun sql.NullString
	if state.TestDataOverride != nil {
		testData = sql.NullString{String: *state.TestDataOverride, Valid: true}
	}
	if state.StepsOverride != nil {
		data, err := json.Marshal(state.StepsOverride)
		if err != nil {
			return fmt.Errorf("marshaling steps override: %w", err)
		}
		steps = sql.NullString{String: string(data), Valid: true}
	}
	if state.LastRun != nil {
		data, err := json.Marshal(state.LastRun)
		if err != nil {
			return fmt.Errorf("marshaling last run: %w", err)
		}
		lastRun = sql.NullString{String: string(data), Valid: true}
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	if !t.backend.attached {
		return types.ErrBackendDetached
	}

	_, err := t.backend.db.Exec(
		`INSERT INTO case_states (case_id, lifecycle_status, test_data_override, steps_override, last_run, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(case_id) DO UPDATE SET
		   lifecycle_status = excluded.lifecycle_status,
		   test_data_override = excluded.test_data_override,
		   steps_override = excluded.steps_override,
		   last_run = excluded.last_run,
		   updated_at = excluded.updated_at`,
		state.CaseID, state.LifecycleStatus, testData, steps, lastRun,
		updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting case state %s: %w", state.CaseID, err)
	}
	return nil
}

// Fetch returns overlays matching filter, ordered by case ID.
func (t *statesTable) Fetch(filter types.StateFilter) ([]*types.CaseState, error) {
	query := selectStates
	var args []any
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " WHERE lifecycle_status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY case_id ASC"

	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	if !t.backend.attached {
		return nil, types.ErrBackendDetached
	}

	rows, err := t.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching case states: %w", err)
	}
	defer rows.Close()

	results := []*types.CaseState{}
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating case states: %w", err)
	}
	return results, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanState hydrates a CaseState from a case_states row.
func scanState(row scanner) (*types.CaseState, error) {
	var s types.CaseState
	var testData, steps, lastRun sql.NullString
	var updatedAt string
	if err := row.Scan(&s.CaseID, &s.LifecycleStatus, &testData, &steps, &lastRun, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning case state: %w", err)
	}
	if testData.Valid {
		v := testData.String
		s.TestDataOverride = &v
	}
	if steps.Valid {
		s.StepsOverride = []types.Step{}
		if err := json.Unmarshal([]byte(steps.String), &s.StepsOverride); err != nil {
			return nil, fmt.Errorf("parsing steps override for %s: %w", s.CaseID, err)
		}
	}
	if lastRun.Valid {
		var r types.RunSummary
		if err := json.Unmarshal([]byte(lastRun.String), &r); err != nil {
			return nil, fmt.Errorf("parsing last run for %s: %w", s.CaseID, err)
		}
		s.LastRun = &r
	}
	var err error
	s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at for %s: %w", s.CaseID, err)
	}
	return &s, nil
}
