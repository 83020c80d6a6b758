package outbox

import (
	"context"
	"errors"

	domain "horario/internal/domain/outbox"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("outbox entry not found")

// Store persists queued notifications.
type Store interface {
	// GetByID retrieves an entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save inserts or updates an entry.
	// PRE: entry has been validated
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries still eligible for delivery, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns entries whose attempts ran out, most recently attempted first.
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
