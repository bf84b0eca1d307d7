package store

import "fmt"

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string

	// SystemTablesSQL returns the DDL for the system tables.
	SystemTablesSQL() string

	// UpsertSessionSQL returns the statement that inserts or replaces a
	// session row keyed by connection id. Parameter order: connection_id,
	// solution_unique_name, parent_entity, configuration_json, last_modified.
	UpsertSessionSQL() string

	// MapError maps a database error to a well-known sentinel error.
	MapError(err error) error
}

// NewDialect creates the dialect for the given driver name.
func NewDialect(driver string) Dialect {
	switch driver {
	case "postgres":
		return &PostgresDialect{}
	case "sqlite", "":
		return &SQLiteDialect{}
	default:
		panic(fmt.Sprintf("unsupported database driver: %s", driver))
	}
}
