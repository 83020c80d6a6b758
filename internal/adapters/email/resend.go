package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// resendBatchLimit is the most messages Resend accepts per batch call.
const resendBatchLimit = 100

// ResendSender delivers messages through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender with the given API key and default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) params(req SendRequest) *resend.SendEmailRequest {
	from := req.From
	if from == "" {
		from = s.from
	}
	p := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		Text:    req.Text,
	}
	if req.ReplyTo != "" {
		p.ReplyTo = req.ReplyTo
	}
	return p
}

// Send delivers a single message.
// POST: returns the Resend message id
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, s.params(req))
	if err != nil {
		slog.Error("resend_send_failed", "err", err, "to", req.To, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("resend send: %w", err)
	}
	slog.Info("resend_sent", "message_id", sent.Id, "to", req.To)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}

// SendBatch delivers reqs in chunks of resendBatchLimit.
// POST: results are in request order; on failure the results of earlier chunks are returned with the error
func (s *ResendSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	var results []SendResult
	for start := 0; start < len(reqs); start += resendBatchLimit {
		end := min(start+resendBatchLimit, len(reqs))
		chunk := make([]*resend.SendEmailRequest, 0, end-start)
		for _, req := range reqs[start:end] {
			chunk = append(chunk, s.params(req))
		}

		resp, err := s.client.Batch.SendWithContext(ctx, chunk)
		if err != nil {
			slog.Error("resend_batch_failed", "err", err, "batch_size", len(chunk))
			return results, fmt.Errorf("resend batch send: %w", err)
		}
		for _, item := range resp.Data {
			results = append(results, SendResult{MessageID: item.Id, SentAt: time.Now()})
		}
		slog.Info("resend_batch_sent", "count", len(chunk), "total_sent", len(results))
	}
	return results, nil
}
