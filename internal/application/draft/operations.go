package draft

import (
	"context"
	"log/slog"

	"horario/internal/domain/schedule"
)

// Single-step operations. Each runs under the processing flag like any other Run.

// AddInstructor creates an instructor with an empty row.
func (m *Machine) AddInstructor(ctx context.Context, in schedule.Instructor) (schedule.Instructor, error) {
	var created schedule.Instructor
	err := m.Run(ctx, "add_instructor", func(_ context.Context, ed *Editor) error {
		var err error
		created, err = ed.CreateInstructor(in)
		return err
	})
	return created, err
}

// UpdateInstructor edits an instructor and its row header.
func (m *Machine) UpdateInstructor(ctx context.Context, in schedule.Instructor) error {
	return m.Run(ctx, "update_instructor", func(_ context.Context, ed *Editor) error {
		return ed.UpdateInstructor(in)
	})
}

// DeleteInstructor removes an instructor, its row and the row's events.
func (m *Machine) DeleteInstructor(ctx context.Context, id string) error {
	return m.Run(ctx, "delete_instructor", func(_ context.Context, ed *Editor) error {
		return ed.DeleteInstructor(id)
	})
}

// AddEvent appends one event to a row's day bucket.
func (m *Machine) AddEvent(ctx context.Context, rowID, dayKey string, ev schedule.Event) (schedule.Event, error) {
	var stored schedule.Event
	err := m.Run(ctx, "add_event", func(_ context.Context, ed *Editor) error {
		var err error
		stored, err = ed.AppendEvent(rowID, dayKey, ev)
		return err
	})
	return stored, err
}

// UpdateEvent replaces an event's content.
func (m *Machine) UpdateEvent(ctx context.Context, rowID string, ev schedule.Event) error {
	return m.Run(ctx, "update_event", func(_ context.Context, ed *Editor) error {
		return ed.UpdateEvent(rowID, ev)
	})
}

// DeleteEvent removes one event.
func (m *Machine) DeleteEvent(ctx context.Context, rowID, eventID string) error {
	return m.Run(ctx, "delete_event", func(_ context.Context, ed *Editor) error {
		return ed.DeleteEvent(rowID, eventID)
	})
}

// RemoveDuplicates drops repeated events and reports how many were removed.
func (m *Machine) RemoveDuplicates(ctx context.Context) (int, error) {
	removed := 0
	err := m.Run(ctx, "remove_duplicates", func(_ context.Context, ed *Editor) error {
		var err error
		removed, err = ed.RemoveDuplicates()
		return err
	})
	if err == nil {
		slog.Info("draft_duplicates_removed", "removed", removed)
	}
	return removed, err
}

// ClearCurrentWeek removes the active week's events from every row.
func (m *Machine) ClearCurrentWeek(ctx context.Context) (int, error) {
	removed := 0
	err := m.Run(ctx, "clear_week", func(_ context.Context, ed *Editor) error {
		var err error
		removed, err = ed.ClearWeek()
		return err
	})
	if err == nil {
		slog.Info("draft_week_cleared", "removed", removed)
	}
	return removed, err
}

// SetWeek replaces the active week window.
func (m *Machine) SetWeek(ctx context.Context, w schedule.Week) error {
	return m.Run(ctx, "set_week", func(_ context.Context, ed *Editor) error {
		return ed.SetWeek(w)
	})
}

// AdvanceWeek moves the active week seven days forward.
func (m *Machine) AdvanceWeek(ctx context.Context) (schedule.Week, error) {
	return m.moveWeek(ctx, "advance_week", schedule.Week.Next)
}

// RetreatWeek moves the active week seven days back.
func (m *Machine) RetreatWeek(ctx context.Context) (schedule.Week, error) {
	return m.moveWeek(ctx, "retreat_week", schedule.Week.Prev)
}

func (m *Machine) moveWeek(ctx context.Context, op string, step func(schedule.Week) schedule.Week) (schedule.Week, error) {
	var w schedule.Week
	err := m.Run(ctx, op, func(_ context.Context, ed *Editor) error {
		var err error
		w, err = ed.MoveWeek(step)
		return err
	})
	return w, err
}

// CheckIntegrity reports structural problems in the draft without changing it.
// It runs as an operation so the report reflects a draft no one else is editing.
func (m *Machine) CheckIntegrity(ctx context.Context) ([]schedule.Issue, error) {
	var issues []schedule.Issue
	err := m.Run(ctx, "integrity_check", func(_ context.Context, ed *Editor) error {
		issues = ed.State().CheckIntegrity()
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		slog.Warn("draft_integrity_issue", "row_id", is.RowID, "message", is.Message)
	}
	return issues, nil
}
