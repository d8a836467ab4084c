// Package sqlite implements an in-memory SQLite backend for case overlays.
// SQLite serves as the query engine for overlay lookups and status filters;
// the database lives in memory and is discarded on Detach.
package sqlite

// Schema DDL for the overlay tables.
const (
	createCaseStates = `CREATE TABLE case_states (
    case_id TEXT PRIMARY KEY,
    lifecycle_status TEXT NOT NULL,
    test_data_override TEXT,
    steps_override TEXT,
    last_run TEXT,
    updated_at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxCaseStatesStatus = `CREATE INDEX idx_case_states_status ON case_states(lifecycle_status);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createCaseStates,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxCaseStatesStatus,
}
