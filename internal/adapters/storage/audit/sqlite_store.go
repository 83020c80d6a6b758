package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"horario/internal/adapters/storage"
	domain "horario/internal/domain/audit"
)

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const eventColumns = "id, timestamp, category, action, severity, actor_id, actor_email, actor_role, resource_id, resource_type, description, ip_address, user_agent, metadata"

// SQLiteStore keeps the audit trail in the audit_event table.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save appends one event.
// PRE: event has an id and timestamp
func (s *SQLiteStore) Save(ctx context.Context, event domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC().Format(timestampLayout), string(event.Category), string(event.Action),
		string(event.Severity), event.ActorID, event.ActorEmail, event.ActorRole,
		event.ResourceID, string(event.ResourceType), event.Description, event.IPAddress, event.UserAgent, event.Metadata)
	if err != nil {
		return fmt.Errorf("save audit event %s: %w", event.ID, err)
	}
	return nil
}

// List returns matching events, newest first.
// PRE: limit > 0
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}
	if filter.Category != nil {
		add("category = ?", string(*filter.Category))
	}
	if filter.Action != nil {
		add("action = ?", string(*filter.Action))
	}
	if filter.Resource != nil {
		add("resource_type = ?", string(*filter.Resource))
	}
	if filter.ActorID != nil {
		add("actor_id = ?", *filter.ActorID)
	}
	if !filter.Since.IsZero() {
		add("timestamp >= ?", filter.Since.UTC().Format(timestampLayout))
	}

	query := `SELECT ` + eventColumns + ` FROM audit_event`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var (
			e                                           domain.Event
			timestamp, category, action, severity, kind string
		)
		if err := rows.Scan(&e.ID, &timestamp, &category, &action, &severity, &e.ActorID, &e.ActorEmail,
			&e.ActorRole, &e.ResourceID, &kind, &e.Description, &e.IPAddress, &e.UserAgent, &e.Metadata); err != nil {
			return nil, err
		}
		e.Category = domain.Category(category)
		e.Action = domain.Action(action)
		e.Severity = domain.Severity(severity)
		e.ResourceType = domain.Resource(kind)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		events = append(events, e)
	}
	return events, rows.Err()
}
