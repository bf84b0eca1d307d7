package store

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string { return "?" }

func (d *SQLiteDialect) NowExpr() string { return "CURRENT_TIMESTAMP" }

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _connections (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    secret_hash TEXT NOT NULL,
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS _sessions (
    connection_id        TEXT PRIMARY KEY,
    solution_unique_name TEXT NOT NULL DEFAULT '',
    parent_entity        TEXT NOT NULL DEFAULT '',
    configuration_json   TEXT NOT NULL DEFAULT '',
    last_modified        TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func (d *SQLiteDialect) SystemTablesSQL() string { return sqliteSystemTablesSQL }

func (d *SQLiteDialect) UpsertSessionSQL() string {
	return `INSERT INTO _sessions (connection_id, solution_unique_name, parent_entity, configuration_json, last_modified)
	 VALUES (?, ?, ?, ?, ?)
	 ON CONFLICT (connection_id) DO UPDATE SET
	   solution_unique_name = excluded.solution_unique_name,
	   parent_entity = excluded.parent_entity,
	   configuration_json = excluded.configuration_json,
	   last_modified = excluded.last_modified`
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
