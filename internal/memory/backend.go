// Package memory implements a map-backed storage backend for case overlays.
// It is the default backend; nothing survives Detach.
package memory

import (
	"sort"
	"sync"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Backend implements types.Backend with an in-process map.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	states   map[string]*types.CaseState
	table    *stateTable
}

// NewBackend creates a new memory backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// States returns the overlay table.
// Returns ErrBackendDetached if the backend is not attached.
func (b *Backend) States() (types.StateTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.table, nil
}

// Attach initializes an empty overlay map.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	b.states = make(map[string]*types.CaseState)
	b.table = &stateTable{backend: b}
	b.attached = true
	return nil
}

// Detach discards every overlay. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attached = false
	b.states = nil
	return nil
}

// stateTable implements types.StateTable over the backend map.
type stateTable struct {
	backend *Backend
}

// Get returns a copy of the overlay for caseID.
// Returns ErrInvalidID if caseID is empty, ErrNotFound if absent.
func (t *stateTable) Get(caseID string) (*types.CaseState, error) {
	if caseID == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	if !t.backend.attached {
		return nil, types.ErrBackendDetached
	}
	s, ok := t.backend.states[caseID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return s.Clone(), nil
}

// Set stores a copy of state, replacing any existing overlay.
func (t *stateTable) Set(state *types.CaseState) error {
	if state == nil || state.CaseID == "" {
		return types.ErrInvalidID
	}
	if !types.ValidStatus(state.LifecycleStatus) {
		return types.ErrInvalidStatus
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	if !t.backend.attached {
		return types.ErrBackendDetached
	}
	t.backend.states[state.CaseID] = state.Clone()
	return nil
}

// Fetch returns copies of the overlays matching filter, ordered by case ID.
func (t *stateTable) Fetch(filter types.StateFilter) ([]*types.CaseState, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	if !t.backend.attached {
		return nil, types.ErrBackendDetached
	}

	want := make(map[string]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		want[s] = true
	}

	results := []*types.CaseState{}
	for _, s := range t.backend.states {
		if len(want) > 0 && !want[s.LifecycleStatus] {
			continue
		}
		results = append(results, s.Clone())
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CaseID < results[j].CaseID
	})
	return results, nil
}
