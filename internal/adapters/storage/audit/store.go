package audit

import (
	"context"
	"time"

	domain "horario/internal/domain/audit"
)

// Store persists the audit trail.
type Store interface {
	// Save appends one event.
	// PRE: event has an id and timestamp
	Save(ctx context.Context, event domain.Event) error

	// List returns matching events, newest first.
	// PRE: limit > 0
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)
}

// Filter narrows List. Nil fields and a zero Since match everything.
type Filter struct {
	Category *domain.Category
	Action   *domain.Action
	Resource *domain.Resource
	ActorID  *string
	Since    time.Time // inclusive
}

var _ Store = (*SQLiteStore)(nil)
