package schedule_test

import (
	"testing"
	"time"

	"horario/internal/domain/schedule"
)

func TestWeekAgenda(t *testing.T) {
	w, _ := schedule.NewWeek(date(2024, 3, 4), date(2024, 3, 8))
	s := schedule.State{Rows: []schedule.Row{
		{ID: "r1", Instructor: "Ana", Events: map[string][]schedule.Event{
			"6":  {{ID: "e2", Title: "Taller"}},
			"4":  {{ID: "e1", Title: "Inducción"}},
			"26": {{ID: "old", Title: "Anterior"}},
		}},
		{ID: "r2", Instructor: "Luis", Events: map[string][]schedule.Event{
			"8": {{ID: "e3", Title: "Seminario"}},
		}},
	}}

	got := s.WeekAgenda(w)
	want := []string{"e1", "e2", "e3"}
	if len(got) != len(want) {
		t.Fatalf("agenda = %+v, want %d entries", got, len(want))
	}
	for i, id := range want {
		if got[i].Event.ID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].Event.ID, id)
		}
	}
	if !got[1].Date.Equal(date(2024, 3, 6)) || got[2].Instructor != "Luis" {
		t.Errorf("entries = %+v", got)
	}
	if len(s.WeekAgenda(schedule.Week{})) != 0 {
		t.Error("zero week should yield no entries")
	}
}

func TestDayName(t *testing.T) {
	if got := schedule.DayName(time.Wednesday); got != "miércoles" {
		t.Errorf("DayName(Wednesday) = %q", got)
	}
}
