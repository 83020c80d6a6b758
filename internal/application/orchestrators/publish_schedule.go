package orchestrators

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"horario/internal/adapters/email"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

// Publisher promotes the saved draft. The draft machine satisfies it.
type Publisher interface {
	Publish(ctx context.Context) (schedule.State, error)
}

// PublishScheduleInput carries the actor for the audit trail.
type PublishScheduleInput struct {
	Actor Actor
}

// PublishScheduleResult summarizes the new published snapshot.
type PublishScheduleResult struct {
	Week     schedule.Week `json:"week"`
	Rows     int           `json:"rows"`
	Events   int           `json:"events"`
	Notified int           `json:"notified"`
	Queued   int           `json:"queued"` // notifications left in the outbox for retry
}

// PublishScheduleDeps holds dependencies for PublishSchedule.
// Sender and Recipients are optional; without them no notification is sent.
// With an Outbox, messages the sender rejects are queued for retry.
type PublishScheduleDeps struct {
	Draft      Publisher
	Sender     email.Sender
	Recipients []string
	From       string
	Audit      AuditRecorder
	Outbox     OutboxSaver
	Now        func() time.Time
}

// mdRenderer renders notification markdown. Raw HTML in input is escaped.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// ExecutePublishSchedule publishes the saved draft and notifies the configured recipients.
// PRE: the draft machine's publish gate is open; otherwise its rejection is returned unchanged
// POST: the published snapshot equals the saved draft; a notification failure is logged and
//
//	never undoes or fails the publish
func ExecutePublishSchedule(ctx context.Context, input PublishScheduleInput, deps PublishScheduleDeps) (PublishScheduleResult, error) {
	snap, err := deps.Draft.Publish(ctx)
	if err != nil {
		return PublishScheduleResult{}, err
	}

	week := snap.Config.CurrentWeek
	result := PublishScheduleResult{Week: week, Rows: len(snap.Rows), Events: snap.EventCount()}

	recordAudit(ctx, deps.Audit, input.Actor.event(audit.CategorySchedule, audit.ActionPublish).
		WithDescription(fmt.Sprintf("published week %s with %d events", formatWeek(week), result.Events)))

	if deps.Sender != nil && len(deps.Recipients) > 0 {
		reqs, err := notificationRequests(deps, snap)
		if err != nil {
			slog.Error("publish_notify_failed", "err", err, "recipients", len(deps.Recipients))
		} else {
			result.Notified, result.Queued = deliverNotifications(ctx, deps, reqs)
		}
	}

	slog.Info("schedule_published", "actor", input.Actor.Email, "week", formatWeek(week), "rows", result.Rows, "events", result.Events, "notified", result.Notified)
	return result, nil
}

func notificationRequests(deps PublishScheduleDeps, snap schedule.State) ([]email.SendRequest, error) {
	md := PublishedSummaryMarkdown(snap)
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}

	subject := "Horario publicado: semana " + formatWeek(snap.Config.CurrentWeek)
	reqs := make([]email.SendRequest, 0, len(deps.Recipients))
	for _, to := range deps.Recipients {
		reqs = append(reqs, email.SendRequest{
			To:      []string{to},
			From:    deps.From,
			Subject: subject,
			HTML:    buf.String(),
			Text:    md,
		})
	}
	return reqs, nil
}

// deliverNotifications sends reqs as one batch. Requests the sender did not acknowledge go to the
// outbox when one is configured.
// INVARIANT: results are in request order, so reqs[len(results):] were never delivered
func deliverNotifications(ctx context.Context, deps PublishScheduleDeps, reqs []email.SendRequest) (sent, queued int) {
	results, err := deps.Sender.SendBatch(ctx, reqs)
	sent = min(len(results), len(reqs))
	if err == nil {
		return sent, 0
	}
	undelivered := reqs[sent:]
	slog.Error("publish_notify_failed", "err", err, "delivered", sent, "undelivered", len(undelivered))
	if deps.Outbox == nil || len(undelivered) == 0 {
		return sent, 0
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	queued, qerr := EnqueueNotifications(ctx, deps.Outbox, undelivered, now(), nil)
	if qerr != nil {
		slog.Error("publish_notify_queue_failed", "err", qerr, "queued", queued)
	}
	slog.Info("publish_notify_queued", "queued", queued)
	return sent, queued
}

// PublishedSummaryMarkdown lists the week's events per instructor.
func PublishedSummaryMarkdown(snap schedule.State) string {
	week := snap.Config.CurrentWeek
	var b strings.Builder
	fmt.Fprintf(&b, "# Horario de la semana %s\n\n", formatWeek(week))

	agenda := snap.WeekAgenda(week)
	if len(agenda) == 0 {
		b.WriteString("No hay eventos programados esta semana.\n")
		return b.String()
	}

	lastRow := ""
	for _, de := range agenda {
		if de.RowID != lastRow {
			if lastRow != "" {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "## %s", escapeMarkdown(de.Instructor))
			if de.Regional != "" {
				fmt.Fprintf(&b, " (%s)", escapeMarkdown(de.Regional))
			}
			b.WriteString("\n\n")
			lastRow = de.RowID
		}
		ev := de.Event
		fmt.Fprintf(&b, "- **%s %d**: %s", schedule.DayName(de.Date.Weekday()), de.Date.Day(), escapeMarkdown(ev.Title))
		if ev.Time != "" {
			fmt.Fprintf(&b, ", %s", escapeMarkdown(ev.Time))
		}
		fmt.Fprintf(&b, ", %s", escapeMarkdown(ev.Location))
		if ev.Modality != "" {
			fmt.Fprintf(&b, " (%s)", ev.Modality)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "#", `\#`, "\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func formatWeek(w schedule.Week) string {
	if w.IsZero() {
		return "sin definir"
	}
	return w.Start.Format(schedule.DateLayout) + " a " + w.End.Format(schedule.DateLayout)
}
