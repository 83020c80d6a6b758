package ics

import (
	"strings"
	"testing"
	"time"

	"horario/internal/domain/schedule"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		text       string
		start, end time.Duration
		ok         bool
	}{
		{"8 a.m. a 10 a.m.", 8 * time.Hour, 10 * time.Hour, true},
		{"2:30 p.m.", 14*time.Hour + 30*time.Minute, 15*time.Hour + 30*time.Minute, true},
		{"12 p.m. a 1 p.m.", 12 * time.Hour, 13 * time.Hour, true},
		{"12:15 a.m.", 15 * time.Minute, 75 * time.Minute, true},
		{"10 a.m. a 9 a.m.", 10 * time.Hour, 11 * time.Hour, true},
		{"", 0, 0, false},
		{"mañana", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			start, end, ok := parseTimeRange(tt.text)
			if ok != tt.ok || start != tt.start || end != tt.end {
				t.Errorf("parseTimeRange(%q) = %v, %v, %v; want %v, %v, %v", tt.text, start, end, ok, tt.start, tt.end, tt.ok)
			}
		})
	}
}

func TestExport(t *testing.T) {
	w, _ := schedule.NewWeek(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	s := schedule.State{
		Config: schedule.GlobalConfig{CurrentWeek: w},
		Rows: []schedule.Row{{ID: "r1", Instructor: "Ana", Regional: "Valle", Events: map[string][]schedule.Event{
			"4":  {{ID: "e1", Title: "Inducción", Time: "8 a.m. a 10 a.m.", Location: "Sala 1", Modality: schedule.ModalityVirtual}},
			"6":  {{ID: "e2", Title: "Taller", Location: "Por definir"}},
			"26": {{ID: "old", Title: "Anterior"}},
		}}},
	}

	out := Export(s, Options{Now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)})
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:e1@r1",
		"DTSTART:20240304T080000Z",
		"DTEND:20240304T100000Z",
		"UID:e2@r1",
		"DTSTART;VALUE=DATE:20240306",
		"CATEGORIES:Virtual",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "UID:old@r1") {
		t.Error("events outside the active week must not be exported")
	}
}
