package types

import "errors"

// Backend defines the interface for storage of case overlays.
// Callers attach to a backend, obtain the state table, and detach when done.
type Backend interface {
	// States returns the table of case overlays.
	// Returns ErrBackendDetached if the backend is not attached.
	States() (StateTable, error)

	// Attach connects the backend using config. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources and discards every overlay.
	// Idempotent: multiple calls succeed.
	Detach() error
}

// StateTable stores CaseState overlays keyed by test case ID.
type StateTable interface {
	// Get retrieves the overlay for caseID.
	// Returns ErrNotFound if the case has never been touched.
	Get(caseID string) (*CaseState, error)

	// Set creates or replaces the overlay for state.CaseID.
	// Returns ErrInvalidID if CaseID is empty.
	Set(state *CaseState) error

	// Fetch returns every overlay matching filter, ordered by case ID.
	// An empty filter returns every stored overlay.
	Fetch(filter StateFilter) ([]*CaseState, error)
}

// StateFilter narrows StateTable.Fetch.
type StateFilter struct {
	// Statuses limits results to the given lifecycle statuses.
	Statuses []string
}

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Lookup and editing errors.
var (
	ErrNotFound             = errors.New("test case not found")
	ErrInvalidID            = errors.New("invalid test case ID")
	ErrIndexOutOfRange      = errors.New("step number out of range")
	ErrInvalidStatus        = errors.New("invalid lifecycle status")
	ErrInvalidRunStatus     = errors.New("invalid step run status")
	ErrInvalidField         = errors.New("invalid step field")
	ErrInvalidStepNumbering = errors.New("steps must be numbered 1..N")
	ErrInvalidEncoding      = errors.New("test data must be valid UTF-8")
	ErrNoFailedRun          = errors.New("latest run did not fail")
	ErrInvalidCatalog       = errors.New("invalid catalog")
)
