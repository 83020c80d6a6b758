package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"horario/internal/application/draft"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

// WeekAdvancer moves the active week forward. The draft machine satisfies it.
type WeekAdvancer interface {
	AdvanceWeek(ctx context.Context) (schedule.Week, error)
}

// RolloverDeps holds dependencies for the week rollover job.
type RolloverDeps struct {
	Draft   WeekAdvancer
	Audit   AuditRecorder
	Timeout time.Duration
	// Location is the zone the cron spec is read in; nil means the server's local zone.
	Location *time.Location
}

// ExecuteWeekRollover advances the draft's active week by seven days.
// A busy machine skips this run and is not an error; the next tick retries.
// POST: returns the new week, or the zero week when skipped
func ExecuteWeekRollover(ctx context.Context, deps RolloverDeps) (schedule.Week, error) {
	w, err := deps.Draft.AdvanceWeek(ctx)
	if errors.Is(err, draft.ErrBusy) {
		slog.Info("week_rollover_skipped", "reason", "busy")
		return schedule.Week{}, nil
	}
	if err != nil {
		slog.Error("week_rollover_failed", "err", err)
		return schedule.Week{}, err
	}
	slog.Info("week_rollover", "week", formatWeek(w))
	recordAudit(ctx, deps.Audit, audit.System(audit.CategorySchedule, audit.ActionRollover).
		WithResource(audit.ResourceWeek, w.Start.Format(schedule.DateLayout)).
		WithDescription("active week advanced to "+formatWeek(w)))
	return w, nil
}

// NewRolloverScheduler registers the rollover job on spec. The caller starts and stops it.
// PRE: spec is a standard five-field cron expression
func NewRolloverScheduler(spec string, deps RolloverDeps) (*cron.Cron, error) {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, _ = ExecuteWeekRollover(ctx, deps)
	})
	if err != nil {
		return nil, fmt.Errorf("week rollover schedule %q: %w", spec, err)
	}
	slog.Info("week_rollover_scheduled", "spec", spec, "location", loc.String())
	return c, nil
}
