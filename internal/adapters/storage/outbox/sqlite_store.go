package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"horario/internal/adapters/storage"
	domain "horario/internal/domain/outbox"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectEntry = `SELECT id, kind, payload, status, attempts, max_attempts, last_attempted_at, created_at, message_id, error_message FROM outbox`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an entry by its ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+" WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Save inserts or updates an entry.
// PRE: entry has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	lastAttemptedAt := ""
	if !e.LastAttemptedAt.IsZero() {
		lastAttemptedAt = e.LastAttemptedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, kind, payload, status, attempts, max_attempts, last_attempted_at, created_at, message_id, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kind=excluded.kind, payload=excluded.payload, status=excluded.status,
		   attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_attempted_at=excluded.last_attempted_at, message_id=excluded.message_id,
		   error_message=excluded.error_message`,
		e.ID, e.Kind, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		lastAttemptedAt, e.CreatedAt.UTC().Format(timeLayout), e.MessageID, e.ErrorMessage)
	return err
}

// ListPending returns entries still eligible for delivery, oldest first.
// PRE: limit > 0
func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]domain.Entry, error) {
	return s.list(ctx, selectEntry+` WHERE status IN (?, ?) AND attempts < max_attempts ORDER BY created_at ASC LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, limit)
}

// ListFailed returns entries whose attempts ran out, most recently attempted first.
// PRE: limit > 0
func (s *SQLiteStore) ListFailed(ctx context.Context, limit int) ([]domain.Entry, error) {
	return s.list(ctx, selectEntry+` WHERE status = ? ORDER BY last_attempted_at DESC LIMIT ?`,
		domain.StatusFailed, limit)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (domain.Entry, error) {
	var e domain.Entry
	var createdAt, lastAttemptedAt string
	if err := scan(&e.ID, &e.Kind, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&lastAttemptedAt, &createdAt, &e.MessageID, &e.ErrorMessage); err != nil {
		return domain.Entry{}, err
	}
	var err error
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.Entry{}, fmt.Errorf("outbox %s: created_at: %w", e.ID, err)
	}
	if lastAttemptedAt != "" {
		if e.LastAttemptedAt, err = time.Parse(timeLayout, lastAttemptedAt); err != nil {
			return domain.Entry{}, fmt.Errorf("outbox %s: last_attempted_at: %w", e.ID, err)
		}
	}
	return e, nil
}
