package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the system tables if missing and seeds a default
// connection record when the table is empty. Idempotent.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range splitStatements(s.Dialect.SystemTablesSQL()) {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create system tables: %w", err)
		}
	}

	if err := s.seedDefaultConnection(ctx); err != nil {
		return fmt.Errorf("seed default connection: %w", err)
	}
	return nil
}

func (s *Store) seedDefaultConnection(ctx context.Context) error {
	row, err := QueryRow(ctx, s.DB, "SELECT COUNT(*) AS count FROM _connections")
	if err != nil {
		return err
	}
	if toInt64(row["count"]) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default secret: %w", err)
	}
	if _, err := s.CreateConnection(ctx, "local", string(hash)); err != nil {
		return err
	}

	log.Println("Seeded default connection 'local' (secret: changeme)")
	return nil
}

// splitStatements breaks a DDL script on statement boundaries. SQLite's
// driver executes one statement per call.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
