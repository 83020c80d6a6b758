// Package outbox models outgoing notifications that failed once and are retried later.
package outbox

import (
	"errors"
	"time"
)

// Status constants for the entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// KindPublishNotice is the email sent to subscribers after a publish.
const KindPublishNotice = "publish_notice"

// DefaultMaxAttempts bounds retries for an entry that does not set its own.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyKind    = errors.New("kind is required")
	ErrEmptyPayload = errors.New("payload is required")
	ErrTerminal     = errors.New("entry is done or abandoned and cannot be retried")
)

// Entry is one queued delivery. Payload is the JSON-encoded message to replay.
type Entry struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Payload         string    `json:"payload"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	MaxAttempts     int       `json:"max_attempts"`
	LastAttemptedAt time.Time `json:"last_attempted_at,omitzero"`
	CreatedAt       time.Time `json:"created_at"`
	MessageID       string    `json:"message_id,omitempty"` // provider id once delivered
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// Validate checks that the Entry has valid data and fills the attempt limit.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise; MaxAttempts > 0
func (e *Entry) Validate() error {
	if e.Kind == "" {
		return ErrEmptyKind
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	return nil
}

// CanRetry reports whether the background worker should pick the entry up.
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// IsTerminal reports whether the entry will never be sent again without an admin.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusAbandoned
}

// MarkAttempt records a delivery attempt at now.
// POST: Attempts incremented, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess records the provider's message id.
func (e *Entry) MarkSuccess(messageID string) {
	e.Status = StatusDone
	e.MessageID = messageID
	e.ErrorMessage = ""
}

// MarkFailed records err. The entry stays retrying until its attempts run out.
// POST: Status is failed iff Attempts >= MaxAttempts
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// MarkAbandoned stops all further delivery.
func (e *Entry) MarkAbandoned() {
	e.Status = StatusAbandoned
}

// Due reports whether the backoff since the last attempt has elapsed at now.
func (e *Entry) Due(now time.Time, baseDelay, maxDelay time.Duration) bool {
	if e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(baseDelay, maxDelay)))
}

// NextRetryDelay is 2^attempts * baseDelay, capped at maxDelay.
func (e *Entry) NextRetryDelay(baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
