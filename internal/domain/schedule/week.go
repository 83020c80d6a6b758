package schedule

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// DateLayout is the wire and storage format for week boundaries.
const DateLayout = "2006-01-02"

// ErrInvalidWeek is returned when a week's start date falls after its end date.
var ErrInvalidWeek = errors.New("week start date must not be after end date")

// Week is an inclusive window of calendar dates.
// Both bounds are normalized to midnight UTC.
type Week struct {
	Start time.Time
	End   time.Time
}

// NewWeek builds a validated week window.
// PRE: start and end are calendar dates (time of day is discarded)
// POST: Returns ErrInvalidWeek if start > end
func NewWeek(start, end time.Time) (Week, error) {
	w := Week{Start: dateOf(start), End: dateOf(end)}
	if err := w.Validate(); err != nil {
		return Week{}, err
	}
	return w, nil
}

// WeekContaining returns the Monday-to-Friday window of the week that contains t.
func WeekContaining(t time.Time) Week {
	d := dateOf(t)
	offset := (int(d.Weekday()) + 6) % 7 // days since Monday
	start := d.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 4)}
}

// Validate checks start <= end.
func (w Week) Validate() error {
	if w.Start.After(w.End) {
		return ErrInvalidWeek
	}
	return nil
}

// IsZero reports whether the window was never set.
func (w Week) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Equal compares calendar dates only.
func (w Week) Equal(o Week) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// Shift moves both bounds by the given number of days.
func (w Week) Shift(days int) Week {
	return Week{Start: w.Start.AddDate(0, 0, days), End: w.End.AddDate(0, 0, days)}
}

// Next returns the window seven days later.
func (w Week) Next() Week { return w.Shift(7) }

// Prev returns the window seven days earlier.
func (w Week) Prev() Week { return w.Shift(-7) }

// Contains reports whether the date of t falls inside the window.
func (w Week) Contains(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// DayKeys returns the day-of-month keys covered by the window.
func (w Week) DayKeys() map[string]bool {
	keys := make(map[string]bool)
	if w.Validate() != nil {
		return keys
	}
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		keys[strconv.Itoa(d.Day())] = true
	}
	return keys
}

// DateForKey maps a day key back to the calendar date inside the window.
func (w Week) DateForKey(dayKey string) (time.Time, bool) {
	day, err := strconv.Atoi(dayKey)
	if err != nil {
		return time.Time{}, false
	}
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		if d.Day() == day {
			return d, true
		}
	}
	return time.Time{}, false
}

type weekJSON struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// MarshalJSON encodes the window as {"startDate":"YYYY-MM-DD","endDate":"YYYY-MM-DD"}.
func (w Week) MarshalJSON() ([]byte, error) {
	if w.IsZero() {
		return json.Marshal(weekJSON{})
	}
	return json.Marshal(weekJSON{StartDate: w.Start.Format(DateLayout), EndDate: w.End.Format(DateLayout)})
}

// UnmarshalJSON decodes the format produced by MarshalJSON and validates the window.
func (w *Week) UnmarshalJSON(data []byte) error {
	var raw weekJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.StartDate == "" && raw.EndDate == "" {
		*w = Week{}
		return nil
	}
	parsed, err := ParseWeek(raw.StartDate, raw.EndDate)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWeek parses two YYYY-MM-DD dates into a validated window.
func ParseWeek(start, end string) (Week, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Week{}, err
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Week{}, err
	}
	return NewWeek(s, e)
}

// ClearWeek removes every event whose day key falls inside the window.
// Instructors and buckets outside the window are untouched.
// POST: returns the number of events removed
func ClearWeek(rows []Row, w Week) int {
	keys := w.DayKeys()
	removed := 0
	for i := range rows {
		for k, evs := range rows[i].Events {
			if keys[k] {
				removed += len(evs)
				delete(rows[i].Events, k)
			}
		}
	}
	return removed
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
