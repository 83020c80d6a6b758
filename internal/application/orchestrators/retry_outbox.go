package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"horario/internal/adapters/email"
	outboxStore "horario/internal/adapters/storage/outbox"
	domain "horario/internal/domain/outbox"
)

// OutboxSaver queues entries. The outbox SQLite store satisfies it.
type OutboxSaver interface {
	Save(ctx context.Context, e domain.Entry) error
}

// notificationPayload is the stored form of an email.SendRequest.
type notificationPayload struct {
	To      []string `json:"to"`
	From    string   `json:"from,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// EnqueueNotifications stores one pending entry per request.
// POST: returns how many entries were saved; the first save error stops the loop
func EnqueueNotifications(ctx context.Context, q OutboxSaver, reqs []email.SendRequest, now time.Time, generateID func() string) (int, error) {
	if generateID == nil {
		generateID = func() string { return uuid.New().String() }
	}
	for i, req := range reqs {
		payload, err := json.Marshal(notificationPayload{
			To: req.To, From: req.From, Subject: req.Subject, HTML: req.HTML, Text: req.Text, ReplyTo: req.ReplyTo,
		})
		if err != nil {
			return i, fmt.Errorf("encode notification: %w", err)
		}
		e := domain.Entry{ID: generateID(), Kind: domain.KindPublishNotice, Payload: string(payload), CreatedAt: now}
		if err := e.Validate(); err != nil {
			return i, err
		}
		if err := q.Save(ctx, e); err != nil {
			return i, fmt.Errorf("queue notification: %w", err)
		}
	}
	return len(reqs), nil
}

// OutboxOptions tunes an OutboxProcessor. Zero values fall back to defaults.
type OutboxOptions struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	BatchSize int
	Now       func() time.Time
}

// OutboxProcessor redelivers queued notifications with exponential backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	sender    email.Sender
	now       func() time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// NewOutboxProcessor creates a processor delivering through sender.
func NewOutboxProcessor(store outboxStore.Store, sender email.Sender, opts OutboxOptions) *OutboxProcessor {
	p := &OutboxProcessor{
		store:     store,
		sender:    sender,
		now:       opts.Now,
		baseDelay: opts.BaseDelay,
		maxDelay:  opts.MaxDelay,
		batchSize: opts.BatchSize,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.baseDelay <= 0 {
		p.baseDelay = 30 * time.Second
	}
	if p.maxDelay <= 0 {
		p.maxDelay = time.Hour
	}
	if p.batchSize <= 0 {
		p.batchSize = 10
	}
	return p
}

// ProcessPending attempts every due entry in one batch.
// PRE: Context is valid
// POST: returns how many entries were delivered; per-entry failures are recorded on the entry
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending outbox entries: %w", err)
	}

	sent := 0
	for _, entry := range entries {
		if !entry.Due(p.now(), p.baseDelay, p.maxDelay) {
			continue
		}
		ok, err := p.attempt(ctx, &entry)
		if err != nil {
			slog.Error("outbox_save_failed", "entry_id", entry.ID, "error", err.Error())
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// attempt sends entry once and saves the outcome. ok reports delivery.
func (p *OutboxProcessor) attempt(ctx context.Context, entry *domain.Entry) (ok bool, err error) {
	entry.MarkAttempt(p.now())
	messageID, sendErr := p.deliver(ctx, *entry)
	if sendErr != nil {
		entry.MarkFailed(sendErr)
		slog.Warn("outbox_delivery_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "max_attempts", entry.MaxAttempts, "error", sendErr.Error())
	} else {
		entry.MarkSuccess(messageID)
		slog.Info("outbox_delivered", "entry_id", entry.ID, "attempt", entry.Attempts, "message_id", messageID)
	}
	return sendErr == nil, p.store.Save(ctx, *entry)
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry domain.Entry) (string, error) {
	if entry.Kind != domain.KindPublishNotice {
		return "", fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
	var payload notificationPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	res, err := p.sender.Send(ctx, email.SendRequest{
		To:      payload.To,
		From:    payload.From,
		Subject: payload.Subject,
		HTML:    payload.HTML,
		Text:    payload.Text,
		ReplyTo: payload.ReplyTo,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// Retry delivers one entry now, ignoring backoff. A failed entry gets one extra attempt.
// PRE: id names an existing entry
// POST: returns the saved entry; domain.ErrTerminal for done or abandoned entries
func (p *OutboxProcessor) Retry(ctx context.Context, id string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, id)
	if err != nil {
		return domain.Entry{}, err
	}
	if entry.IsTerminal() {
		return entry, domain.ErrTerminal
	}
	if entry.Attempts >= entry.MaxAttempts {
		entry.MaxAttempts = entry.Attempts + 1
	}
	if _, err := p.attempt(ctx, &entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// Abandon stops delivery of one entry.
// POST: returns the saved entry; domain.ErrTerminal if it was already delivered
func (p *OutboxProcessor) Abandon(ctx context.Context, id string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, id)
	if err != nil {
		return domain.Entry{}, err
	}
	if entry.Status == domain.StatusDone {
		return entry, domain.ErrTerminal
	}
	entry.MarkAbandoned()
	slog.Info("outbox_abandoned", "entry_id", entry.ID, "attempts", entry.Attempts)
	return entry, p.store.Save(ctx, entry)
}

// StartOutboxWorker runs ProcessPending every interval until ctx is done.
// The returned channel closes once the worker has exited.
func StartOutboxWorker(ctx context.Context, p *OutboxProcessor, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				if _, err := p.ProcessPending(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("outbox_worker_failed", "error", err.Error())
				}
				cancel()
			case <-ctx.Done():
				slog.Info("outbox_worker_stopped")
				return
			}
		}
	}()
	return done
}
