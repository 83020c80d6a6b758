package draft

import (
	"errors"
	"strings"

	"horario/internal/domain/schedule"
)

var errEditorClosed = errors.New("draft editor used after its operation finished")

// Editor mutates the draft on behalf of the operation that holds the processing flag.
// Each call is applied and broadcast immediately, so a failing operation keeps
// whatever it already wrote.
type Editor struct {
	m    *Machine
	open bool
}

// State returns a copy of the draft as it is now.
func (ed *Editor) State() schedule.State {
	ed.m.mu.Lock()
	defer ed.m.mu.Unlock()
	return ed.m.draft.Clone()
}

// Week returns the active week window.
func (ed *Editor) Week() schedule.Week {
	ed.m.mu.Lock()
	defer ed.m.mu.Unlock()
	return ed.m.draft.Config.CurrentWeek
}

// CreateInstructor adds an instructor and its empty row under one shared id.
// PRE: in.Name is non-empty and no roster member has the same normalized name
// POST: returns the stored instructor with its generated id
func (ed *Editor) CreateInstructor(in schedule.Instructor) (schedule.Instructor, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.City = strings.TrimSpace(in.City)
	in.Regional = strings.TrimSpace(in.Regional)
	if err := in.Validate(); err != nil {
		return schedule.Instructor{}, err
	}
	err := ed.edit(func(s *schedule.State) error {
		key := schedule.NormalizeName(in.Name)
		for _, existing := range s.Instructors {
			if schedule.NormalizeName(existing.Name) == key {
				return schedule.ErrDuplicateName
			}
		}
		if in.ID == "" {
			in.ID = ed.m.generateID()
		}
		s.Instructors = append(s.Instructors, in)
		s.Rows = append(s.Rows, schedule.Row{
			ID:         in.ID,
			Instructor: in.Name,
			Regional:   in.Regional,
			Events:     map[string][]schedule.Event{},
		})
		return nil
	})
	if err != nil {
		return schedule.Instructor{}, err
	}
	return in, nil
}

// UpdateInstructor replaces an instructor's name, city and regional and mirrors them onto its row.
func (ed *Editor) UpdateInstructor(in schedule.Instructor) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return err
	}
	return ed.edit(func(s *schedule.State) error {
		idx, ok := s.InstructorIndex(in.ID)
		if !ok {
			return &schedule.NotFoundError{Kind: "instructor", Key: in.ID}
		}
		key := schedule.NormalizeName(in.Name)
		for _, other := range s.Instructors {
			if other.ID != in.ID && schedule.NormalizeName(other.Name) == key {
				return schedule.ErrDuplicateName
			}
		}
		s.Instructors[idx] = in
		if ri, ok := s.RowIndex(in.ID); ok {
			s.Rows[ri].Instructor = in.Name
			s.Rows[ri].Regional = in.Regional
		}
		return nil
	})
}

// DeleteInstructor removes the instructor and its row, with every event the row held.
// Other rows are untouched.
func (ed *Editor) DeleteInstructor(id string) error {
	return ed.edit(func(s *schedule.State) error {
		ii, inOK := s.InstructorIndex(id)
		ri, rowOK := s.RowIndex(id)
		if !inOK && !rowOK {
			return &schedule.NotFoundError{Kind: "instructor", Key: id}
		}
		if inOK {
			s.Instructors = append(s.Instructors[:ii:ii], s.Instructors[ii+1:]...)
		}
		if rowOK {
			s.Rows = append(s.Rows[:ri:ri], s.Rows[ri+1:]...)
		}
		return nil
	})
}

// AppendEvent adds ev to the end of the row's day bucket.
// An empty ev.ID is replaced with a generated one.
// POST: returns the stored event
func (ed *Editor) AppendEvent(rowID, dayKey string, ev schedule.Event) (schedule.Event, error) {
	if strings.TrimSpace(dayKey) == "" {
		return schedule.Event{}, schedule.ErrEmptyDayKey
	}
	if err := ev.Validate(); err != nil {
		return schedule.Event{}, err
	}
	err := ed.edit(func(s *schedule.State) error {
		ri, ok := s.RowIndex(rowID)
		if !ok {
			return &schedule.NotFoundError{Kind: "row", Key: rowID}
		}
		if ev.ID == "" {
			ev.ID = ed.m.generateID()
		} else if _, _, dup := s.Rows[ri].FindEvent(ev.ID); dup {
			return schedule.ErrDuplicateEvent
		}
		s.Rows[ri].Append(dayKey, ev)
		return nil
	})
	if err != nil {
		return schedule.Event{}, err
	}
	return ev, nil
}

// UpdateEvent replaces an event's content in place. Its id and day bucket are kept.
func (ed *Editor) UpdateEvent(rowID string, ev schedule.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return ed.edit(func(s *schedule.State) error {
		ri, ok := s.RowIndex(rowID)
		if !ok {
			return &schedule.NotFoundError{Kind: "row", Key: rowID}
		}
		k, i, ok := s.Rows[ri].FindEvent(ev.ID)
		if !ok {
			return &schedule.NotFoundError{Kind: "event", Key: ev.ID}
		}
		s.Rows[ri].Events[k][i] = ev
		return nil
	})
}

// DeleteEvent removes one event from a row.
func (ed *Editor) DeleteEvent(rowID, eventID string) error {
	return ed.edit(func(s *schedule.State) error {
		ri, ok := s.RowIndex(rowID)
		if !ok {
			return &schedule.NotFoundError{Kind: "row", Key: rowID}
		}
		if !s.Rows[ri].RemoveEvent(eventID) {
			return &schedule.NotFoundError{Kind: "event", Key: eventID}
		}
		return nil
	})
}

// RemoveDuplicates drops repeated events across the draft.
// POST: returns the number of events removed
func (ed *Editor) RemoveDuplicates() (int, error) {
	removed := 0
	err := ed.edit(func(s *schedule.State) error {
		removed = schedule.RemoveDuplicates(s.Rows)
		return nil
	})
	return removed, err
}

// ClearWeek removes every event whose day key falls inside the active week.
// POST: returns the number of events removed
func (ed *Editor) ClearWeek() (int, error) {
	removed := 0
	err := ed.edit(func(s *schedule.State) error {
		removed = schedule.ClearWeek(s.Rows, s.Config.CurrentWeek)
		return nil
	})
	return removed, err
}

// SetWeek replaces the active week window.
func (ed *Editor) SetWeek(w schedule.Week) error {
	if err := w.Validate(); err != nil {
		return err
	}
	return ed.edit(func(s *schedule.State) error {
		s.Config.CurrentWeek = w
		return nil
	})
}

// MoveWeek replaces the active week with step applied to it.
// POST: returns the new window
func (ed *Editor) MoveWeek(step func(schedule.Week) schedule.Week) (schedule.Week, error) {
	var w schedule.Week
	err := ed.edit(func(s *schedule.State) error {
		s.Config.CurrentWeek = step(s.Config.CurrentWeek)
		w = s.Config.CurrentWeek
		return nil
	})
	return w, err
}

// edit applies fn to the draft under the machine lock and broadcasts on success.
// fn must leave the draft unchanged when it returns an error.
func (ed *Editor) edit(fn func(s *schedule.State) error) error {
	m := ed.m
	m.mu.Lock()
	if !ed.open {
		m.mu.Unlock()
		return errEditorClosed
	}
	err := fn(&m.draft)
	m.mu.Unlock()
	if err == nil {
		m.notify()
	}
	return err
}
