package store

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _connections (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name        TEXT NOT NULL UNIQUE,
    secret_hash TEXT NOT NULL,
    active      BOOLEAN NOT NULL DEFAULT true,
    created_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _sessions (
    connection_id        TEXT PRIMARY KEY,
    solution_unique_name TEXT NOT NULL DEFAULT '',
    parent_entity        TEXT NOT NULL DEFAULT '',
    configuration_json   TEXT NOT NULL DEFAULT '',
    last_modified        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func (d *PostgresDialect) SystemTablesSQL() string { return pgSystemTablesSQL }

func (d *PostgresDialect) UpsertSessionSQL() string {
	return `INSERT INTO _sessions (connection_id, solution_unique_name, parent_entity, configuration_json, last_modified)
	 VALUES ($1, $2, $3, $4, $5)
	 ON CONFLICT (connection_id) DO UPDATE SET
	   solution_unique_name = EXCLUDED.solution_unique_name,
	   parent_entity = EXCLUDED.parent_entity,
	   configuration_json = EXCLUDED.configuration_json,
	   last_modified = EXCLUDED.last_modified`
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	// With pgx/stdlib, the underlying error message includes the PG code
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
