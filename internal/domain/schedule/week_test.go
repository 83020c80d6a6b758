package schedule_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"horario/internal/domain/schedule"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestNewWeek_RejectsInvertedWindow verifies start <= end.
func TestNewWeek_RejectsInvertedWindow(t *testing.T) {
	if _, err := schedule.NewWeek(date(2024, 3, 8), date(2024, 3, 4)); !errors.Is(err, schedule.ErrInvalidWeek) {
		t.Errorf("err = %v, want ErrInvalidWeek", err)
	}
	if _, err := schedule.NewWeek(date(2024, 3, 4), date(2024, 3, 4)); err != nil {
		t.Errorf("single-day week: unexpected error %v", err)
	}
}

// TestWeekContaining returns the Monday-Friday window.
func TestWeekContaining(t *testing.T) {
	w := schedule.WeekContaining(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)) // Sunday
	if !w.Start.Equal(date(2024, 3, 4)) || !w.End.Equal(date(2024, 3, 8)) {
		t.Errorf("week = %v..%v, want 2024-03-04..2024-03-08", w.Start, w.End)
	}
}

// TestWeek_NextPrevShiftSevenDays verifies week navigation steps.
func TestWeek_NextPrevShiftSevenDays(t *testing.T) {
	w, _ := schedule.NewWeek(date(2024, 3, 4), date(2024, 3, 8))
	n := w.Next()
	if !n.Start.Equal(date(2024, 3, 11)) || !n.End.Equal(date(2024, 3, 15)) {
		t.Errorf("Next = %v..%v", n.Start, n.End)
	}
	if !n.Prev().Equal(w) {
		t.Error("Prev(Next(w)) != w")
	}
}

// TestWeek_Contains verifies both bounds are inclusive and time of day is ignored.
func TestWeek_Contains(t *testing.T) {
	w, _ := schedule.NewWeek(date(2024, 3, 4), date(2024, 3, 8))
	tests := []struct {
		t    time.Time
		want bool
	}{
		{date(2024, 3, 3), false},
		{date(2024, 3, 4), true},
		{date(2024, 3, 8).Add(23 * time.Hour), true},
		{date(2024, 3, 9), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

// TestClearWeek removes only in-window buckets.
func TestClearWeek(t *testing.T) {
	w, _ := schedule.NewWeek(date(2024, 3, 4), date(2024, 3, 8))
	rows := []schedule.Row{
		{ID: "r1", Events: map[string][]schedule.Event{
			"4":  {{ID: "a"}, {ID: "b"}},
			"8":  {{ID: "c"}},
			"11": {{ID: "d"}},
		}},
		{ID: "r2", Events: map[string][]schedule.Event{"20": {{ID: "e"}}}},
	}
	removed := schedule.ClearWeek(rows, w)
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if rows[0].EventCount() != 1 || rows[0].Events["11"][0].ID != "d" {
		t.Errorf("row r1 events = %v, want only day 11", rows[0].Events)
	}
	if rows[1].EventCount() != 1 {
		t.Error("row r2 should be untouched")
	}
}

// TestWeek_JSON verifies the startDate/endDate wire format.
func TestWeek_JSON(t *testing.T) {
	w, _ := schedule.NewWeek(date(2024, 3, 4), date(2024, 3, 8))
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"startDate":"2024-03-04","endDate":"2024-03-08"}` {
		t.Errorf("json = %s", data)
	}
	var back schedule.Week
	if err := json.Unmarshal([]byte(`{"startDate":"2024-03-08","endDate":"2024-03-04"}`), &back); err == nil {
		t.Error("expected error for inverted window")
	}
}

// TestWeek_DateForKey maps day keys back to dates inside the window.
func TestWeek_DateForKey(t *testing.T) {
	w, _ := schedule.NewWeek(date(2024, 4, 29), date(2024, 5, 3))
	d, ok := w.DateForKey("2")
	if !ok || !d.Equal(date(2024, 5, 2)) {
		t.Errorf("DateForKey(2) = %v, %v", d, ok)
	}
	if _, ok := w.DateForKey("15"); ok {
		t.Error("DateForKey(15) should be outside the window")
	}
}
