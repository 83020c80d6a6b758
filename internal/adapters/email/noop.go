package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender logs messages instead of delivering them. It is used when no
// provider key is configured, and it keeps what it was asked to send.
type NoopSender struct {
	mu   sync.Mutex
	sent []SendRequest
	now  func() time.Time
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{now: time.Now}
}

// Send records and logs req.
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, req)
	n := len(s.sent)
	s.mu.Unlock()

	slog.Info("noop_email_send", "to", req.To, "subject", req.Subject)
	return SendResult{MessageID: fmt.Sprintf("noop-%d", n), SentAt: s.now()}, nil
}

// SendBatch records and logs every request in order.
func (s *NoopSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := s.Send(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Sent returns a copy of every request seen so far.
func (s *NoopSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendRequest(nil), s.sent...)
}
