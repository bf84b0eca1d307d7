package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConnectionRecord identifies one platform connection this tool may edit
// configurations for.
type ConnectionRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SecretHash string `json:"-"`
	Active     bool   `json:"active"`
}

// CreateConnection inserts a new connection record. A duplicate name comes
// back as ErrUniqueViolation.
func (s *Store) CreateConnection(ctx context.Context, name, secretHash string) (*ConnectionRecord, error) {
	rec := &ConnectionRecord{
		ID:         uuid.New().String(),
		Name:       name,
		SecretHash: secretHash,
		Active:     true,
	}
	sql := fmt.Sprintf(
		"INSERT INTO _connections (id, name, secret_hash, created_at) VALUES (%s, %s, %s, %s)",
		s.Dialect.Placeholder(1), s.Dialect.Placeholder(2), s.Dialect.Placeholder(3), s.Dialect.NowExpr())
	if _, err := Exec(ctx, s.DB, sql, rec.ID, rec.Name, rec.SecretHash); err != nil {
		return nil, fmt.Errorf("create connection %s: %w", name, s.Dialect.MapError(err))
	}
	return rec, nil
}

// FindConnectionByName returns the connection with the given name, or
// ErrNotFound.
func (s *Store) FindConnectionByName(ctx context.Context, name string) (*ConnectionRecord, error) {
	sql := fmt.Sprintf(
		"SELECT id, name, secret_hash, active FROM _connections WHERE name = %s",
		s.Dialect.Placeholder(1))
	row, err := QueryRow(ctx, s.DB, sql, name)
	if err != nil {
		return nil, err
	}

	rec := &ConnectionRecord{}
	rec.ID, _ = row["id"].(string)
	rec.Name, _ = row["name"].(string)
	rec.SecretHash, _ = row["secret_hash"].(string)
	switch v := row["active"].(type) {
	case bool:
		rec.Active = v
	case int64:
		rec.Active = v != 0
	}
	return rec, nil
}
