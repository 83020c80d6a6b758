package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Modality values. An empty Modality means the event does not declare one.
const (
	ModalityInPerson = "Presencial"
	ModalityVirtual  = "Virtual"
)

// DefaultLocation is stored when an event arrives without a location.
const DefaultLocation = "Por definir"

// Domain errors
var (
	ErrEmptyName       = errors.New("instructor name cannot be empty")
	ErrEmptyTitle      = errors.New("event title cannot be empty")
	ErrEmptyDayKey     = errors.New("day key cannot be empty")
	ErrInvalidModality = errors.New("modality must be one of: Presencial, Virtual")
	ErrInvalidColor    = errors.New("color must be a palette member")
	ErrDuplicateName   = errors.New("an instructor with this name already exists")
	ErrDuplicateEvent  = errors.New("an event with this id already exists in the row")
)

// NotFoundError is returned when an entity expected to exist in the draft cannot be located.
type NotFoundError struct {
	Kind string // "row", "instructor", "event"
	Key  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// Instructor is a member of the active roster.
// ID is shared with the instructor's ScheduleRow.
type Instructor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Regional string `json:"regional"`
}

// Validate checks if the Instructor has valid data.
// PRE: Instructor struct is populated
// POST: Returns nil if valid, error otherwise
func (i *Instructor) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Event is a single training session inside a row's day bucket.
type Event struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Details  []string `json:"details,omitempty"` // multi-line details are kept one line per entry
	Time     string   `json:"time,omitempty"`    // free-form display text, e.g. "8 a.m. a 10 a.m."
	Location string   `json:"location"`
	Color    string   `json:"color"`
	Modality string   `json:"modality,omitempty"`
}

// Validate checks if the Event has valid data.
// PRE: Event struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Modality != "" && e.Modality != ModalityInPerson && e.Modality != ModalityVirtual {
		return ErrInvalidModality
	}
	if e.Color != "" && !IsPaletteColor(e.Color) {
		return ErrInvalidColor
	}
	return nil
}

// PrimaryDetail returns the first detail line, used for color lookup.
func (e Event) PrimaryDetail() string {
	if len(e.Details) == 0 {
		return ""
	}
	return e.Details[0]
}

// Equal reports structural equality.
func (e Event) Equal(o Event) bool {
	if e.ID != o.ID || e.Title != o.Title || e.Time != o.Time || e.Location != o.Location ||
		e.Color != o.Color || e.Modality != o.Modality || len(e.Details) != len(o.Details) {
		return false
	}
	for i := range e.Details {
		if e.Details[i] != o.Details[i] {
			return false
		}
	}
	return true
}

// Row holds every event ever attributed to one instructor, bucketed by day key.
// Day keys are day-of-month strings scoped by whichever week was active when written.
type Row struct {
	ID         string             `json:"id"`
	Instructor string             `json:"instructor"`
	Regional   string             `json:"regional"`
	Events     map[string][]Event `json:"events"`
}

// DayKeys returns the row's non-empty day keys in ascending numeric order.
// Non-numeric keys sort after numeric ones, lexically.
func (r Row) DayKeys() []string {
	keys := make([]string, 0, len(r.Events))
	for k, evs := range r.Events {
		if len(evs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// EventCount returns the number of events across all day buckets.
func (r Row) EventCount() int {
	n := 0
	for _, evs := range r.Events {
		n += len(evs)
	}
	return n
}

// Append adds an event to the end of a day bucket.
// PRE: dayKey is non-empty
// POST: event is the last entry of Events[dayKey]
func (r *Row) Append(dayKey string, ev Event) {
	if r.Events == nil {
		r.Events = make(map[string][]Event)
	}
	r.Events[dayKey] = append(r.Events[dayKey], ev)
}

// FindEvent returns the day key and index of the event with the given id.
func (r Row) FindEvent(eventID string) (string, int, bool) {
	for k, evs := range r.Events {
		for i, ev := range evs {
			if ev.ID == eventID {
				return k, i, true
			}
		}
	}
	return "", 0, false
}

// RemoveEvent deletes the event with the given id.
// POST: returns true if an event was removed; empty buckets are dropped
func (r *Row) RemoveEvent(eventID string) bool {
	k, i, ok := r.FindEvent(eventID)
	if !ok {
		return false
	}
	evs := r.Events[k]
	evs = append(evs[:i:i], evs[i+1:]...)
	if len(evs) == 0 {
		delete(r.Events, k)
	} else {
		r.Events[k] = evs
	}
	return true
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := r
	out.Events = make(map[string][]Event, len(r.Events))
	for k, evs := range r.Events {
		cp := make([]Event, len(evs))
		for i, ev := range evs {
			cp[i] = ev
			if ev.Details != nil {
				cp[i].Details = append([]string(nil), ev.Details...)
			}
		}
		out.Events[k] = cp
	}
	return out
}

// Equal reports structural equality. Empty day buckets are ignored.
func (r Row) Equal(o Row) bool {
	if r.ID != o.ID || r.Instructor != o.Instructor || r.Regional != o.Regional {
		return false
	}
	a, b := r.DayKeys(), o.DayKeys()
	if len(a) != len(b) {
		return false
	}
	for i, k := range a {
		if b[i] != k {
			return false
		}
		ea, eb := r.Events[k], o.Events[k]
		if len(ea) != len(eb) {
			return false
		}
		for j := range ea {
			if !ea[j].Equal(eb[j]) {
				return false
			}
		}
	}
	return true
}

// GlobalConfig is the single source of truth for the active week.
type GlobalConfig struct {
	CurrentWeek Week `json:"currentWeek"`
}

// State is a full schedule snapshot: the draft working copy or the published version.
type State struct {
	Rows        []Row        `json:"rows"`
	Instructors []Instructor `json:"instructors"`
	Config      GlobalConfig `json:"config"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{Config: s.Config}
	out.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		out.Rows[i] = r.Clone()
	}
	out.Instructors = append(make([]Instructor, 0, len(s.Instructors)), s.Instructors...)
	return out
}

// Equal reports structural equality between two snapshots.
func (s State) Equal(o State) bool {
	if !s.Config.CurrentWeek.Equal(o.Config.CurrentWeek) {
		return false
	}
	if len(s.Rows) != len(o.Rows) || len(s.Instructors) != len(o.Instructors) {
		return false
	}
	for i := range s.Instructors {
		if s.Instructors[i] != o.Instructors[i] {
			return false
		}
	}
	for i := range s.Rows {
		if !s.Rows[i].Equal(o.Rows[i]) {
			return false
		}
	}
	return true
}

// EventCount returns the number of events across all rows.
func (s State) EventCount() int {
	n := 0
	for _, r := range s.Rows {
		n += r.EventCount()
	}
	return n
}

// RowIndex returns the index of the row with the given id.
func (s State) RowIndex(id string) (int, bool) {
	for i, r := range s.Rows {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

// InstructorIndex returns the index of the instructor with the given id.
func (s State) InstructorIndex(id string) (int, bool) {
	for i, in := range s.Instructors {
		if in.ID == id {
			return i, true
		}
	}
	return -1, false
}

// FindRowByName returns the first row whose instructor name matches under NormalizeName.
func (s State) FindRowByName(name string) (Row, bool) {
	key := NormalizeName(name)
	for _, r := range s.Rows {
		if NormalizeName(r.Instructor) == key {
			return r, true
		}
	}
	return Row{}, false
}
