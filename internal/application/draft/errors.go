package draft

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy is returned when a mutation, save or publish is attempted while another is in flight.
	// Operations are refused, never queued; callers retry later.
	ErrBusy = errors.New("another schedule operation is in progress, try again shortly")

	// ErrNotSaved is returned by Publish when the draft has changes that were not saved.
	ErrNotSaved = errors.New("save the draft before publishing")
)

// CooldownError is returned by Publish when the settle period after the last save has not elapsed.
type CooldownError struct {
	Remaining time.Duration
}

// Error implements the error interface.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("draft was saved moments ago, publish available in %s", e.Remaining.Round(100*time.Millisecond))
}

// ErrCooldown matches any *CooldownError under errors.Is.
var ErrCooldown = errors.New("publish cooldown has not elapsed")

// Is lets errors.Is(err, ErrCooldown) match.
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// StorageError wraps a durable-store failure. The in-memory state is left as it was.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e *StorageError) Unwrap() error {
	return e.Err
}
