package schedule

import (
	"context"

	domain "horario/internal/domain/schedule"
)

// Store persists the draft and published schedule snapshots.
// Each Write replaces the whole snapshot atomically.
type Store interface {
	Read(ctx context.Context) (domain.State, error)
	Write(ctx context.Context, s domain.State) error
	ReadPublished(ctx context.Context) (domain.State, error)
	WritePublished(ctx context.Context, s domain.State) error
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
