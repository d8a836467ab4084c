// Package backend selects and attaches the overlay storage backend named by
// the configuration.
package backend

import (
	"fmt"

	"github.com/mesh-intelligence/workbench/internal/memory"
	"github.com/mesh-intelligence/workbench/internal/sqlite"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// New returns an unattached backend for name.
// Returns ErrBackendEmpty or ErrBackendUnknown for unusable names.
func New(name string) (types.Backend, error) {
	switch name {
	case "":
		return nil, types.ErrBackendEmpty
	case types.BackendMemory:
		return memory.NewBackend(), nil
	case types.BackendSQLite:
		return sqlite.NewBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, name)
	}
}

// Open creates the backend named by cfg.Backend and attaches it.
// The caller must Detach the returned backend.
func Open(cfg types.Config) (types.Backend, error) {
	b, err := New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if err := b.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}
