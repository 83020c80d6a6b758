package orchestrators

import (
	"context"
	"log/slog"

	"horario/internal/domain/audit"
)

// AuditRecorder persists audit events. The audit SQLite store satisfies it.
type AuditRecorder interface {
	Save(ctx context.Context, event audit.Event) error
}

// Actor identifies who triggered an administrative operation.
type Actor struct {
	ID    string
	Email string
	Role  string
	IP    string
	Agent string
}

func (a Actor) event(category audit.Category, action audit.Action) audit.Event {
	if a.ID == "" && a.Email == "" {
		return audit.System(category, action)
	}
	return audit.NewEvent(a.ID, a.Email, a.Role, category, action).WithRequest(a.IP, a.Agent)
}

// recordAudit saves ev when a recorder is configured. Audit failures are logged, never returned.
func recordAudit(ctx context.Context, rec AuditRecorder, ev audit.Event) {
	if rec == nil {
		return
	}
	if err := rec.Save(ctx, ev); err != nil {
		slog.Error("audit_save_failed", "action", string(ev.Action), "err", err)
	}
}
