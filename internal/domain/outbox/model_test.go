package outbox

import (
	"errors"
	"testing"
	"time"
)

func TestEntry_Validate(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{"valid", Entry{Kind: KindPublishNotice, Payload: "{}", CreatedAt: now}, nil},
		{"no kind", Entry{Payload: "{}", CreatedAt: now}, ErrEmptyKind},
		{"no payload", Entry{Kind: KindPublishNotice, CreatedAt: now}, ErrEmptyPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if err == nil && (tt.entry.MaxAttempts != DefaultMaxAttempts || tt.entry.Status != StatusPending) {
				t.Errorf("defaults not applied: %+v", tt.entry)
			}
		})
	}
}

func TestEntry_Lifecycle(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	e := Entry{Kind: KindPublishNotice, Payload: "{}", CreatedAt: now, MaxAttempts: 2}
	if err := e.Validate(); err != nil {
		t.Fatal(err)
	}

	e.MarkAttempt(now)
	e.MarkFailed(errors.New("provider down"))
	if e.Status != StatusRetrying || !e.CanRetry() {
		t.Fatalf("after first failure: %+v", e)
	}

	e.MarkAttempt(now.Add(time.Minute))
	e.MarkFailed(errors.New("provider down"))
	if e.Status != StatusFailed || e.CanRetry() || e.IsTerminal() {
		t.Fatalf("after last failure: %+v", e)
	}

	e.MarkSuccess("msg-1")
	if !e.IsTerminal() || e.ErrorMessage != "" || e.MessageID != "msg-1" {
		t.Errorf("after success: %+v", e)
	}
}

func TestEntry_Backoff(t *testing.T) {
	base, max := 30*time.Second, 10*time.Minute
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	e := Entry{}
	if !e.Due(start, base, max) {
		t.Error("never-attempted entry must be due")
	}

	e.MarkAttempt(start) // Attempts = 1, delay 60s
	if e.Due(start.Add(59*time.Second), base, max) {
		t.Error("due before backoff elapsed")
	}
	if !e.Due(start.Add(60*time.Second), base, max) {
		t.Error("not due after backoff elapsed")
	}

	e.Attempts = 10
	if got := e.NextRetryDelay(base, max); got != max {
		t.Errorf("delay = %v, want cap %v", got, max)
	}
	e.Attempts = 64
	if got := e.NextRetryDelay(base, max); got != max {
		t.Errorf("delay with huge attempts = %v, want cap %v", got, max)
	}
}
