package store

import (
	"context"
	"fmt"
	"time"
)

// SessionRecord is the persisted envelope for one connection's configuration
// session: what was being edited and its last-known canonical JSON.
type SessionRecord struct {
	ConnectionID            string    `json:"connectionId"`
	SolutionUniqueName      string    `json:"solutionUniqueName"`
	ParentEntityLogicalName string    `json:"parentEntityLogicalName"`
	ConfigurationJSON       string    `json:"configurationJson"`
	LastModifiedUTC         time.Time `json:"lastModifiedUtc"`
}

// IsEmpty reports whether the record carries nothing restorable.
func (r *SessionRecord) IsEmpty() bool {
	return r.ParentEntityLogicalName == "" || r.ConfigurationJSON == ""
}

// SaveSession inserts or replaces the session row for a connection.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	last := rec.LastModifiedUTC
	if last.IsZero() {
		last = time.Now().UTC()
	}
	_, err := Exec(ctx, s.DB, s.Dialect.UpsertSessionSQL(),
		rec.ConnectionID, rec.SolutionUniqueName, rec.ParentEntityLogicalName,
		rec.ConfigurationJSON, last.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ConnectionID, s.Dialect.MapError(err))
	}
	return nil
}

// LoadSession returns the session row for a connection, or ErrNotFound.
func (s *Store) LoadSession(ctx context.Context, connectionID string) (*SessionRecord, error) {
	sql := fmt.Sprintf(
		"SELECT connection_id, solution_unique_name, parent_entity, configuration_json, last_modified FROM _sessions WHERE connection_id = %s",
		s.Dialect.Placeholder(1))
	row, err := QueryRow(ctx, s.DB, sql, connectionID)
	if err != nil {
		return nil, err
	}
	return scanSession(row), nil
}

// DeleteSession removes the session row for a connection. Deleting a missing
// session is not an error.
func (s *Store) DeleteSession(ctx context.Context, connectionID string) error {
	sql := fmt.Sprintf("DELETE FROM _sessions WHERE connection_id = %s", s.Dialect.Placeholder(1))
	if _, err := Exec(ctx, s.DB, sql, connectionID); err != nil {
		return fmt.Errorf("delete session %s: %w", connectionID, err)
	}
	return nil
}

// ListSessions returns all persisted sessions, most recently modified first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := QueryRows(ctx, s.DB,
		"SELECT connection_id, solution_unique_name, parent_entity, configuration_json, last_modified FROM _sessions ORDER BY last_modified DESC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, *scanSession(row))
	}
	return out, nil
}

func scanSession(row map[string]any) *SessionRecord {
	rec := &SessionRecord{}
	rec.ConnectionID, _ = row["connection_id"].(string)
	rec.SolutionUniqueName, _ = row["solution_unique_name"].(string)
	rec.ParentEntityLogicalName, _ = row["parent_entity"].(string)
	rec.ConfigurationJSON, _ = row["configuration_json"].(string)
	switch v := row["last_modified"].(type) {
	case time.Time:
		rec.LastModifiedUTC = v.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.LastModifiedUTC = t.UTC()
		}
	}
	return rec
}
