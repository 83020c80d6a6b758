package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"horario/internal/application/draft"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

// DraftRunner is the part of the draft state machine the import needs.
type DraftRunner interface {
	Draft() schedule.State
	Run(ctx context.Context, op string, fn func(ctx context.Context, ed *draft.Editor) error) error
}

// ImportScheduleInput carries the parsed rows and import options.
// PRE: Rows come from ParseImportCSV or an equivalent tabular source.
// POST: Nothing is written unless every row validates and DryRun is false.
// INVARIANT: The merge only appends; existing events and instructors are never replaced.
type ImportScheduleInput struct {
	Rows   []ImportRow
	DryRun bool
	Actor  Actor
}

// ImportScheduleResult holds the validation report and the merge summary.
type ImportScheduleResult struct {
	Report                ValidationReport `json:"report"`
	DryRun                bool             `json:"dryRun"`
	InstructorsTotal      int              `json:"instructorsTotal"`
	EventsTotal           int              `json:"eventsTotal"`
	NewInstructorsCreated int              `json:"newInstructorsCreated"`
	IntegrityWarning      bool             `json:"integrityWarning"`
}

// ImportScheduleDeps holds external dependencies for the import orchestrator.
type ImportScheduleDeps struct {
	Draft   DraftRunner
	Palette *schedule.Palette
	Audit   AuditRecorder
}

// ImportValidationError is returned when any row fails validation. It carries field-level detail.
type ImportValidationError struct {
	Errors []ImportRowError
}

// Error implements the error interface.
func (e *ImportValidationError) Error() string {
	if len(e.Errors) == 1 && e.Errors[0].Field == "" {
		return "import rejected: " + e.Errors[0].Message
	}
	return fmt.Sprintf("import rejected: %d field errors", len(e.Errors))
}

// instructorGroup is the set of validated events for one normalized instructor name.
type instructorGroup struct {
	key    string
	events []ValidatedEvent
}

// groupByInstructor groups events by NormalizeName, keeping first-seen group order.
func groupByInstructor(events []ValidatedEvent) []instructorGroup {
	index := make(map[string]int)
	var groups []instructorGroup
	for _, ev := range events {
		key := schedule.NormalizeName(ev.Instructor)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, instructorGroup{key: key})
		}
		groups[i].events = append(groups[i].events, ev)
	}
	return groups
}

// ExecuteImportSchedule validates rows and merges them into the draft.
// Phase 1 validates every row without side effects; any error rejects the batch with
// *ImportValidationError. Phase 2 runs as a single draft operation: missing instructors are
// created, then every event is appended in input order to its instructor's row under the day
// key resolved against the active week.
// PRE: deps.Draft is loaded
// POST: on success the summary counts the file's instructors, events and newly created instructors;
//
//	a failure partway through phase 2 keeps what was already merged
//
// INVARIANT: no content-based dedup happens here; importing the same file twice doubles its events
func ExecuteImportSchedule(ctx context.Context, input ImportScheduleInput, deps ImportScheduleDeps) (ImportScheduleResult, error) {
	result := ImportScheduleResult{DryRun: input.DryRun}
	if len(input.Rows) == 0 {
		return result, &ImportValidationError{Errors: []ImportRowError{{Row: 1, Message: "file has no data rows"}}}
	}

	result.Report = ValidateImportRows(input.Rows)
	if !result.Report.Valid {
		slog.Info("schedule_import_rejected", "rows", len(input.Rows), "errors", len(result.Report.Errors))
		return result, &ImportValidationError{Errors: result.Report.Errors}
	}

	valid := result.Report.ValidRows
	groups := groupByInstructor(valid)
	result.InstructorsTotal = len(groups)
	result.EventsTotal = len(valid)

	if input.DryRun {
		current := deps.Draft.Draft()
		for _, g := range groups {
			if _, ok := current.FindRowByName(g.events[0].Instructor); !ok {
				result.NewInstructorsCreated++
			}
		}
		slog.Info("schedule_import_dry_run", "instructors", result.InstructorsTotal, "events", result.EventsTotal, "new_instructors", result.NewInstructorsCreated)
		return result, nil
	}

	palette := deps.Palette
	if palette == nil {
		palette = schedule.NewPalette(nil)
	}

	err := deps.Draft.Run(ctx, "import", func(ctx context.Context, ed *draft.Editor) error {
		state := ed.State()
		rowIDs := mapExistingRows(state.Rows)

		for _, g := range groups {
			first := g.events[0]
			if id, ok := rowIDs[g.key]; ok {
				noteRegionalMismatch(state, id, first)
				continue
			}
			created, err := ed.CreateInstructor(schedule.Instructor{Name: first.Instructor, Regional: first.Regional})
			if err != nil {
				return fmt.Errorf("create instructor %q: %w", first.Instructor, err)
			}
			id, ok := locateNewRow(ed.State().Rows, g.key, rowIDs)
			if !ok || id != created.ID {
				return &schedule.NotFoundError{Kind: "row", Key: first.Instructor}
			}
			rowIDs[g.key] = id
			result.NewInstructorsCreated++
		}

		week := ed.Week()
		before := ed.State().EventCount()
		for _, v := range valid {
			if d, ok := schedule.ResolveDate(week.Start, v.Day); ok && !week.Contains(d) {
				slog.Warn("schedule_import_day_after_week", "row", v.Row, "dia", v.Day, "date", d.Format(schedule.DateLayout))
			}
			ev := schedule.Event{
				Title:    v.Title,
				Details:  v.Details,
				Time:     v.Time(),
				Location: v.Location,
				Modality: v.Modality,
			}
			ev.Color = palette.ColorFor(ev.PrimaryDetail())
			rowID := rowIDs[schedule.NormalizeName(v.Instructor)]
			if _, err := ed.AppendEvent(rowID, schedule.ResolveDayKey(week.Start, v.Day), ev); err != nil {
				return fmt.Errorf("append event from row %d: %w", v.Row, err)
			}
		}

		after := ed.State().EventCount()
		if expected := before + len(valid); after < expected {
			result.IntegrityWarning = true
			slog.Warn("schedule_import_count_mismatch", "expected", expected, "actual", after)
		}
		return nil
	})
	if err != nil {
		slog.Error("schedule_import_failed", "err", err, "new_instructors", result.NewInstructorsCreated)
		return result, err
	}

	slog.Info("schedule_import",
		"actor", input.Actor.Email,
		"instructors", result.InstructorsTotal,
		"events", result.EventsTotal,
		"new_instructors", result.NewInstructorsCreated,
		"integrity_warning", result.IntegrityWarning,
	)
	recordAudit(ctx, deps.Audit, input.Actor.event(audit.CategorySchedule, audit.ActionImport).
		WithDescription(fmt.Sprintf("imported %d events for %d instructors (%d new)",
			result.EventsTotal, result.InstructorsTotal, result.NewInstructorsCreated)))
	return result, nil
}

// mapExistingRows builds the normalized-name to row-id map. The first row wins on a name collision.
func mapExistingRows(rows []schedule.Row) map[string]string {
	ids := make(map[string]string, len(rows))
	for _, r := range rows {
		key := schedule.NormalizeName(r.Instructor)
		if _, ok := ids[key]; !ok {
			ids[key] = r.ID
		}
	}
	return ids
}

// locateNewRow finds the row for key among rows not already mapped to another name.
func locateNewRow(rows []schedule.Row, key string, mapped map[string]string) (string, bool) {
	taken := make(map[string]bool, len(mapped))
	for _, id := range mapped {
		taken[id] = true
	}
	for _, r := range rows {
		if !taken[r.ID] && schedule.NormalizeName(r.Instructor) == key {
			return r.ID, true
		}
	}
	return "", false
}

// noteRegionalMismatch logs when an import names a known instructor under a different regional.
// The stored regional is kept.
func noteRegionalMismatch(state schedule.State, rowID string, v ValidatedEvent) {
	i, ok := state.RowIndex(rowID)
	if !ok {
		return
	}
	stored := state.Rows[i].Regional
	if !strings.EqualFold(strings.TrimSpace(stored), v.Regional) {
		slog.Info("schedule_import_regional_mismatch",
			"instructor", v.Instructor,
			"stored", stored,
			"imported", v.Regional,
		)
	}
}
