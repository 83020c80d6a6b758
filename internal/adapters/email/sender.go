package email

import (
	"context"
	"time"
)

// SendRequest is one outgoing message.
type SendRequest struct {
	To      []string
	From    string // e.g. "Horario <horario@example.org>"; empty uses the sender's default
	Subject string
	HTML    string
	Text    string // plain-text alternative, optional
	ReplyTo string
}

// SendResult is the provider's acknowledgement of one message.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers messages through an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
}
