package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"horario/internal/adapters/storage"
	domain "horario/internal/domain/schedule"
)

const (
	variantDraft     = "draft"
	variantPublished = "published"
)

// SQLiteStore implements Store using SQLite. Both snapshots share one set of
// tables, partitioned by a variant column.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore creates a new snapshot store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Read loads the draft snapshot. A store that was never written returns an empty state.
func (s *SQLiteStore) Read(ctx context.Context) (domain.State, error) {
	return s.read(ctx, variantDraft)
}

// Write replaces the draft snapshot.
// PRE: state passed CheckIntegrity or is a faithful copy of the in-memory draft
// POST: the stored draft equals state, or nothing changed on error
func (s *SQLiteStore) Write(ctx context.Context, state domain.State) error {
	return s.write(ctx, variantDraft, state)
}

// ReadPublished loads the published snapshot.
func (s *SQLiteStore) ReadPublished(ctx context.Context) (domain.State, error) {
	return s.read(ctx, variantPublished)
}

// WritePublished replaces the published snapshot in a single transaction.
func (s *SQLiteStore) WritePublished(ctx context.Context, state domain.State) error {
	return s.write(ctx, variantPublished, state)
}

func (s *SQLiteStore) read(ctx context.Context, variant string) (domain.State, error) {
	state := domain.State{Rows: []domain.Row{}, Instructors: []domain.Instructor{}}

	var start, end string
	err := s.db.QueryRowContext(ctx, "SELECT week_start, week_end FROM snapshot WHERE variant = ?", variant).Scan(&start, &end)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return domain.State{}, fmt.Errorf("read %s snapshot: %w", variant, err)
	}
	if start != "" || end != "" {
		w, err := domain.ParseWeek(start, end)
		if err != nil {
			return domain.State{}, fmt.Errorf("read %s week: %w", variant, err)
		}
		state.Config.CurrentWeek = w
	}

	if state.Instructors, err = s.readInstructors(ctx, variant); err != nil {
		return domain.State{}, err
	}
	if state.Rows, err = s.readRows(ctx, variant); err != nil {
		return domain.State{}, err
	}
	return state, nil
}

func (s *SQLiteStore) readInstructors(ctx context.Context, variant string) ([]domain.Instructor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, city, regional FROM instructor WHERE variant = ? ORDER BY position", variant)
	if err != nil {
		return nil, fmt.Errorf("read %s instructors: %w", variant, err)
	}
	defer rows.Close()

	out := []domain.Instructor{}
	for rows.Next() {
		var in domain.Instructor
		if err := rows.Scan(&in.ID, &in.Name, &in.City, &in.Regional); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) readRows(ctx context.Context, variant string) ([]domain.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, instructor, regional FROM schedule_row WHERE variant = ? ORDER BY position", variant)
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", variant, err)
	}
	out := []domain.Row{}
	index := make(map[string]int)
	for rows.Next() {
		r := domain.Row{Events: map[string][]domain.Event{}}
		if err := rows.Scan(&r.ID, &r.Instructor, &r.Regional); err != nil {
			rows.Close()
			return nil, err
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	evRows, err := s.db.QueryContext(ctx,
		`SELECT row_id, day_key, id, title, details, time, location, color, modality
		 FROM event WHERE variant = ? ORDER BY row_id, day_key, position`, variant)
	if err != nil {
		return nil, fmt.Errorf("read %s events: %w", variant, err)
	}
	defer evRows.Close()
	for evRows.Next() {
		var rowID, dayKey, details string
		var ev domain.Event
		if err := evRows.Scan(&rowID, &dayKey, &ev.ID, &ev.Title, &details, &ev.Time, &ev.Location, &ev.Color, &ev.Modality); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
			return nil, fmt.Errorf("decode details of event %s: %w", ev.ID, err)
		}
		if len(ev.Details) == 0 {
			ev.Details = nil
		}
		i, ok := index[rowID]
		if !ok {
			continue
		}
		out[i].Append(dayKey, ev)
	}
	return out, evRows.Err()
}

func (s *SQLiteStore) write(ctx context.Context, variant string, state domain.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"event", "schedule_row", "instructor", "snapshot"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE variant = ?", variant); err != nil {
			return fmt.Errorf("clear %s %s: %w", variant, table, err)
		}
	}

	var start, end string
	if w := state.Config.CurrentWeek; !w.IsZero() {
		start, end = w.Start.Format(domain.DateLayout), w.End.Format(domain.DateLayout)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshot (variant, week_start, week_end, written_at) VALUES (?, ?, ?, ?)",
		variant, start, end, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write %s snapshot: %w", variant, err)
	}

	for pos, in := range state.Instructors {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO instructor (variant, id, position, name, city, regional) VALUES (?, ?, ?, ?, ?, ?)",
			variant, in.ID, pos, in.Name, in.City, in.Regional); err != nil {
			return fmt.Errorf("write instructor %s: %w", in.ID, err)
		}
	}

	insertEvent, err := tx.PrepareContext(ctx,
		`INSERT INTO event (variant, row_id, day_key, position, id, title, details, time, location, color, modality)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertEvent.Close()

	for pos, r := range state.Rows {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schedule_row (variant, id, position, instructor, regional) VALUES (?, ?, ?, ?, ?)",
			variant, r.ID, pos, r.Instructor, r.Regional); err != nil {
			return fmt.Errorf("write row %s: %w", r.ID, err)
		}
		for _, key := range r.DayKeys() {
			for i, ev := range r.Events[key] {
				details, err := json.Marshal(detailsOrEmpty(ev.Details))
				if err != nil {
					return err
				}
				if _, err := insertEvent.ExecContext(ctx,
					variant, r.ID, key, i, ev.ID, ev.Title, string(details), ev.Time, ev.Location, ev.Color, ev.Modality); err != nil {
					return fmt.Errorf("write event %s in row %s: %w", ev.ID, r.ID, err)
				}
			}
		}
	}

	return tx.Commit()
}

func detailsOrEmpty(d []string) []string {
	if d == nil {
		return []string{}
	}
	return d
}
