// Package casestate implements the per-case overlay store and the filtered
// view over the catalog. Every operation is keyed by test case ID; the
// effective value of a field is the overlay when present and the catalog
// default otherwise.
package casestate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mesh-intelligence/workbench/internal/catalog"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Placeholder text for steps appended with AddStep.
const (
	NewStepAction   = "New step action"
	NewStepExpected = "Expected result"
)

// errNoChange ends a mutation without storing anything.
var errNoChange = errors.New("no change")

// Store resolves effective test data and steps for catalog cases and routes
// every mutation through the backend's StateTable.
type Store struct {
	catalog *catalog.Catalog
	states  types.StateTable
	logger  *slog.Logger
	now     func() time.Time

	// mu serialises read-modify-write cycles on overlays.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for overlay writes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over cat using the attached backend b.
// Returns ErrBackendDetached if b is not attached.
func New(cat *catalog.Catalog, b types.Backend, opts ...Option) (*Store, error) {
	states, err := b.States()
	if err != nil {
		return nil, err
	}
	s := &Store{
		catalog: cat,
		states:  states,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Catalog returns the catalog the store resolves defaults from.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// TestCase returns the catalog entry for id.
func (s *Store) TestCase(id string) (types.TestCase, error) {
	return s.catalog.Get(id)
}

// State returns a snapshot of the overlay for id. A case that has never been
// touched yields a fresh NotStarted overlay, which is not stored.
func (s *Store) State(id string) (*types.CaseState, error) {
	if _, err := s.catalog.Get(id); err != nil {
		return nil, err
	}
	return s.load(id)
}

// EffectiveTestData returns the test data override for id, or the catalog
// default when there is none.
func (s *Store) EffectiveTestData(id string) (string, error) {
	tc, err := s.catalog.Get(id)
	if err != nil {
		return "", err
	}
	st, err := s.load(id)
	if err != nil {
		return "", err
	}
	return effectiveTestData(tc, st), nil
}

// EffectiveSteps returns the steps override for id, or the catalog default
// steps with every run status NotRun.
func (s *Store) EffectiveSteps(id string) ([]types.Step, error) {
	tc, err := s.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	st, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return effectiveSteps(tc, st), nil
}

// LifecycleStatus returns the current lifecycle status of id.
func (s *Store) LifecycleStatus(id string) (string, error) {
	st, err := s.State(id)
	if err != nil {
		return "", err
	}
	return st.LifecycleStatus, nil
}

// LastRun returns the latest finalized run of id, or nil if it never ran.
func (s *Store) LastRun(id string) (*types.RunSummary, error) {
	st, err := s.State(id)
	if err != nil {
		return nil, err
	}
	return st.LastRun, nil
}

// SetTestData stores text verbatim as the test data of id. Text is not
// parsed at write time, but it must be valid UTF-8 (ErrInvalidEncoding) so
// that every export format carries it unchanged.
func (s *Store) SetTestData(id, text string) error {
	return s.mutate(id, "set test data", func(_ types.TestCase, st *types.CaseState) error {
		if !utf8.ValidString(text) {
			return types.ErrInvalidEncoding
		}
		st.SetTestData(text)
		return nil
	})
}

// ResetTestData clears the test data override of id so reads fall back to
// the catalog default.
func (s *Store) ResetTestData(id string) error {
	return s.mutate(id, "reset test data", func(_ types.TestCase, st *types.CaseState) error {
		st.ResetTestData()
		return nil
	})
}

// SetSteps stores steps as the step list of id. Steps must be numbered 1..N
// (ErrInvalidStepNumbering) and carry known run statuses.
func (s *Store) SetSteps(id string, steps []types.Step) error {
	return s.mutate(id, "set steps", func(_ types.TestCase, st *types.CaseState) error {
		return st.SetSteps(steps)
	})
}

// AddStep appends a placeholder step to id and returns it.
func (s *Store) AddStep(id string) (types.Step, error) {
	var added types.Step
	err := s.mutate(id, "add step", func(tc types.TestCase, st *types.CaseState) error {
		steps := effectiveSteps(tc, st)
		steps = append(steps, types.Step{
			Action:         NewStepAction,
			ExpectedResult: NewStepExpected,
			RunStatus:      types.RunStatusNotRun,
		})
		types.Renumber(steps)
		added = steps[len(steps)-1]
		return st.SetSteps(steps)
	})
	return added, err
}

// RemoveStep deletes step n of id. Later steps keep their content and move
// down by one. Returns ErrIndexOutOfRange when n is not a current step.
func (s *Store) RemoveStep(id string, n int) error {
	return s.mutate(id, "remove step", func(tc types.TestCase, st *types.CaseState) error {
		steps := effectiveSteps(tc, st)
		if n < 1 || n > len(steps) {
			return fmt.Errorf("%w: step %d of %d", types.ErrIndexOutOfRange, n, len(steps))
		}
		steps = append(steps[:n-1], steps[n:]...)
		types.Renumber(steps)
		return st.SetSteps(steps)
	})
}

// UpdateStep sets one field of step n of id. field is one of the types.Field
// constants. Changing the run status does not touch the lifecycle status.
func (s *Store) UpdateStep(id string, n int, field, value string) error {
	return s.mutate(id, "update step", func(tc types.TestCase, st *types.CaseState) error {
		steps := effectiveSteps(tc, st)
		if n < 1 || n > len(steps) {
			return fmt.Errorf("%w: step %d of %d", types.ErrIndexOutOfRange, n, len(steps))
		}
		step := &steps[n-1]
		switch field {
		case types.FieldAction:
			step.Action = value
		case types.FieldExpectedResult:
			step.ExpectedResult = value
		case types.FieldRunStatus:
			status, err := types.ParseRunStatus(value)
			if err != nil {
				return err
			}
			step.RunStatus = status
		default:
			return fmt.Errorf("%w: %q", types.ErrInvalidField, field)
		}
		return st.SetSteps(steps)
	})
}

// SetLifecycleStatus overwrites the lifecycle status of id.
func (s *Store) SetLifecycleStatus(id, status string) error {
	return s.mutate(id, "set lifecycle status", func(_ types.TestCase, st *types.CaseState) error {
		return st.SetLifecycleStatus(status)
	})
}

// SwapLifecycleStatus sets the lifecycle status of id to status only when
// it is currently old, and reports whether it did.
func (s *Store) SwapLifecycleStatus(id, old, status string) (bool, error) {
	swapped := false
	err := s.mutate(id, "swap lifecycle status", func(_ types.TestCase, st *types.CaseState) error {
		if st.LifecycleStatus != old {
			return errNoChange
		}
		if err := st.SetLifecycleStatus(status); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	return swapped, err
}

// RecordRun stores summary as the latest run of id and sets the lifecycle
// status to the run outcome.
func (s *Store) RecordRun(id string, summary types.RunSummary) error {
	return s.mutate(id, "record run", func(_ types.TestCase, st *types.CaseState) error {
		if err := st.SetLifecycleStatus(summary.Outcome); err != nil {
			return err
		}
		r := summary
		st.LastRun = &r
		return nil
	})
}

// Counts returns the number of catalog cases in each lifecycle status.
func (s *Store) Counts() (map[string]int, error) {
	overlays, err := s.overlays()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(types.LifecycleStatuses))
	for _, status := range types.LifecycleStatuses {
		counts[status] = 0
	}
	for _, tc := range s.catalog.ListAll() {
		counts[statusOf(overlays, tc.ID)]++
	}
	return counts, nil
}

// load returns a copy of the stored overlay for id, or a fresh one.
func (s *Store) load(id string) (*types.CaseState, error) {
	st, err := s.states.Get(id)
	if errors.Is(err, types.ErrNotFound) {
		return types.NewCaseState(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading state for %s: %w", id, err)
	}
	return st, nil
}

// overlays returns the stored overlays keyed by case ID. With statuses,
// only overlays in one of those lifecycle statuses are fetched.
func (s *Store) overlays(statuses ...string) (map[string]*types.CaseState, error) {
	all, err := s.states.Fetch(types.StateFilter{Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("fetching states: %w", err)
	}
	m := make(map[string]*types.CaseState, len(all))
	for _, st := range all {
		m[st.CaseID] = st
	}
	return m, nil
}

// mutate applies fn to the overlay for id and stores the result. The overlay
// is created on first mutation. Nothing is stored if fn fails.
func (s *Store) mutate(id, op string, fn func(types.TestCase, *types.CaseState) error) error {
	tc, err := s.catalog.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(id)
	if err != nil {
		return err
	}
	if err := fn(tc, st); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	st.UpdatedAt = s.now()
	if err := s.states.Set(st); err != nil {
		return fmt.Errorf("%s for %s: %w", op, id, err)
	}
	s.logger.Debug("case state updated", "case", id, "op", op, "status", st.LifecycleStatus)
	return nil
}

// effectiveTestData resolves the test data of tc under st.
func effectiveTestData(tc types.TestCase, st *types.CaseState) string {
	if st.TestDataOverride != nil {
		return *st.TestDataOverride
	}
	return tc.DefaultTestData
}

// effectiveSteps resolves a fresh copy of the steps of tc under st.
func effectiveSteps(tc types.TestCase, st *types.CaseState) []types.Step {
	if st.StepsOverride != nil {
		return types.CloneSteps(st.StepsOverride)
	}
	return tc.InitialSteps()
}

// statusMatcher reports which cases are in lifecycle status status. Only
// the overlays that decide the answer are fetched from the state table.
func (s *Store) statusMatcher(status string) (func(id string) bool, error) {
	if status == types.StatusAll {
		return func(string) bool { return true }, nil
	}
	if status == types.StatusNotStarted {
		others := make([]string, 0, len(types.LifecycleStatuses))
		for _, st := range types.LifecycleStatuses {
			if st != types.StatusNotStarted {
				others = append(others, st)
			}
		}
		started, err := s.overlays(others...)
		if err != nil {
			return nil, err
		}
		return func(id string) bool {
			_, ok := started[id]
			return !ok
		}, nil
	}
	matched, err := s.overlays(status)
	if err != nil {
		return nil, err
	}
	return func(id string) bool {
		_, ok := matched[id]
		return ok
	}, nil
}

// statusOf returns the lifecycle status of id given the stored overlays.
func statusOf(overlays map[string]*types.CaseState, id string) string {
	if st, ok := overlays[id]; ok {
		return st.LifecycleStatus
	}
	return types.StatusNotStarted
}
