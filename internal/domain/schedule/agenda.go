package schedule

import (
	"strconv"
	"time"
)

// dayNames are the Spanish display names indexed by time.Weekday.
var dayNames = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// DayName returns the Spanish display name of wd, e.g. "miércoles".
func DayName(wd time.Weekday) string {
	return dayNames[wd]
}

// DatedEvent is an event placed on a calendar date of the active week.
type DatedEvent struct {
	Date       time.Time
	RowID      string
	Instructor string
	Regional   string
	Event      Event
}

// WeekAgenda lists the events whose day keys fall inside w, in row order and then by date.
// Buckets keyed outside the window (earlier weeks' history) are skipped.
func (s State) WeekAgenda(w Week) []DatedEvent {
	if w.IsZero() || w.Validate() != nil {
		return nil
	}
	var out []DatedEvent
	for _, r := range s.Rows {
		for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
			for _, ev := range r.Events[strconv.Itoa(d.Day())] {
				out = append(out, DatedEvent{
					Date:       d,
					RowID:      r.ID,
					Instructor: r.Instructor,
					Regional:   r.Regional,
					Event:      ev,
				})
			}
		}
	}
	return out
}
