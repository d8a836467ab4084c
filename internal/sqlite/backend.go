package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

// memoryDSN opens a private in-memory database. Each connection to
// ":memory:" gets its own database, so the pool is pinned to one connection.
const memoryDSN = ":memory:"

// Backend implements types.Backend using an in-memory SQLite database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	states   *statesTable
}

// NewBackend creates a new SQLite backend instance.
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
	return b.states, nil
}

// Attach opens the in-memory database and creates the schema.
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

	db, err := sql.Open("sqlite", memoryDSN)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("create index: %w", err)
		}
	}

	b.db = db
	b.states = &statesTable{backend: b}
	b.attached = true
	return nil
}

// Detach closes the database, discarding every overlay.
// After Detach, all operations return ErrBackendDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.attached = false
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	return nil
}
