package schedule_test

import (
	"testing"

	"horario/internal/domain/schedule"
)

// TestEvent_Validate tests validation of Event.
func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      schedule.Event
		wantErr bool
	}{
		{name: "valid event", ev: schedule.Event{ID: "1", Title: "Inducción", Location: "Sede"}, wantErr: false},
		{name: "valid virtual", ev: schedule.Event{ID: "2", Title: "Taller", Modality: schedule.ModalityVirtual}, wantErr: false},
		{name: "empty title", ev: schedule.Event{ID: "3", Title: "  "}, wantErr: true},
		{name: "unknown modality", ev: schedule.Event{ID: "4", Title: "Taller", Modality: "Hibrido"}, wantErr: true},
		{name: "palette color", ev: schedule.Event{ID: "5", Title: "Taller", Color: schedule.ColorTeal}, wantErr: false},
		{name: "off-palette color", ev: schedule.Event{ID: "6", Title: "Taller", Color: "#123456"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Event.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestRow_DayKeysNumericOrder verifies day keys sort numerically, skipping empty buckets.
func TestRow_DayKeysNumericOrder(t *testing.T) {
	row := schedule.Row{ID: "r1", Events: map[string][]schedule.Event{
		"10": {{ID: "a"}},
		"4":  {{ID: "b"}},
		"28": {{ID: "c"}},
		"5":  {},
	}}
	got := row.DayKeys()
	want := []string{"4", "10", "28"}
	if len(got) != len(want) {
		t.Fatalf("DayKeys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DayKeys[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestRow_RemoveEvent verifies removal drops emptied buckets.
func TestRow_RemoveEvent(t *testing.T) {
	row := schedule.Row{ID: "r1"}
	row.Append("4", schedule.Event{ID: "a", Title: "x"})
	row.Append("5", schedule.Event{ID: "b", Title: "y"})

	if !row.RemoveEvent("a") {
		t.Fatal("RemoveEvent(a) = false, want true")
	}
	if _, ok := row.Events["4"]; ok {
		t.Error("empty bucket 4 should be dropped")
	}
	if row.RemoveEvent("missing") {
		t.Error("RemoveEvent(missing) = true, want false")
	}
	if row.EventCount() != 1 {
		t.Errorf("EventCount = %d, want 1", row.EventCount())
	}
}

// TestState_CloneIsDeep verifies mutations on a clone do not leak into the original.
func TestState_CloneIsDeep(t *testing.T) {
	orig := schedule.State{
		Rows:        []schedule.Row{{ID: "r1", Instructor: "Ana", Events: map[string][]schedule.Event{"4": {{ID: "e1", Title: "T", Details: []string{"a"}}}}}},
		Instructors: []schedule.Instructor{{ID: "r1", Name: "Ana"}},
	}
	cp := orig.Clone()
	cp.Rows[0].Events["4"][0].Details[0] = "changed"
	cp.Rows[0].Append("5", schedule.Event{ID: "e2", Title: "U"})
	cp.Instructors[0].City = "Cali"

	if orig.Rows[0].Events["4"][0].Details[0] != "a" {
		t.Error("details slice shared with clone")
	}
	if orig.EventCount() != 1 {
		t.Errorf("orig EventCount = %d, want 1", orig.EventCount())
	}
	if orig.Instructors[0].City != "" {
		t.Error("instructors shared with clone")
	}
	if orig.Equal(cp) {
		t.Error("Equal() = true after divergent edits")
	}
}

// TestState_EqualIgnoresEmptyBuckets verifies structural (not reference) equality.
func TestState_EqualIgnoresEmptyBuckets(t *testing.T) {
	a := schedule.State{Rows: []schedule.Row{{ID: "r1", Events: map[string][]schedule.Event{"4": {{ID: "e1"}}}}}}
	b := schedule.State{Rows: []schedule.Row{{ID: "r1", Events: map[string][]schedule.Event{"4": {{ID: "e1"}}, "9": nil}}}}
	if !a.Equal(b) {
		t.Error("states differing only by an empty bucket should be equal")
	}
	b.Rows[0].Events["4"][0].Color = schedule.ColorRed
	if a.Equal(b) {
		t.Error("states with different event colour should not be equal")
	}
}

// TestState_CheckIntegrity verifies pairing and event-id uniqueness checks.
func TestState_CheckIntegrity(t *testing.T) {
	good := schedule.State{
		Rows:        []schedule.Row{{ID: "r1", Instructor: "Ana"}},
		Instructors: []schedule.Instructor{{ID: "r1", Name: "Ana"}},
	}
	if issues := good.CheckIntegrity(); len(issues) != 0 {
		t.Errorf("issues = %v, want none", issues)
	}

	bad := schedule.State{
		Rows: []schedule.Row{{ID: "r1", Instructor: "Ana", Events: map[string][]schedule.Event{
			"4": {{ID: "e1"}},
			"5": {{ID: "e1"}},
		}}},
		Instructors: []schedule.Instructor{{ID: "r2", Name: "Luis"}},
	}
	issues := bad.CheckIntegrity()
	if len(issues) != 3 {
		t.Errorf("issues = %d (%v), want 3", len(issues), issues)
	}
}

// TestState_FindRowByName verifies case-insensitive identity matching.
func TestState_FindRowByName(t *testing.T) {
	s := schedule.State{Rows: []schedule.Row{{ID: "r1", Instructor: "María Pérez"}}}
	if _, ok := s.FindRowByName("  MARÍA PÉREZ "); !ok {
		t.Error("expected case-insensitive match")
	}
	if _, ok := s.FindRowByName("Maria Perez"); ok {
		t.Error("accent differences are not the same instructor")
	}
}
