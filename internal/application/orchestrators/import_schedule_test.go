package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"

	"horario/internal/application/draft"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

const importCSV = `Instructor,Regional,Titulo,Detalles,Ubicacion,Dia,Hora Inicio,Hora Fin,Modalidad
Ana Pérez,Cauca,Inducción,"Inducción
Grupo A",,lunes,8 a.m.,10 a.m.,presencial
ana pérez,Cauca,Taller,Taller,Sala 2,Miércoles,2:30 p.m.,,VIRTUAL
Luis Gómez,Centro,Seminario,,Auditorio,viernes,,,
`

func parseFixture(t *testing.T, data string) []ImportRow {
	t.Helper()
	rows, err := ParseImportCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseImportCSV: %v", err)
	}
	return rows
}

func fixedPalette() *schedule.Palette {
	return schedule.NewPalette(func(int) int { return 0 })
}

func existingAna() schedule.State {
	return schedule.State{
		Instructors: []schedule.Instructor{{ID: "ana", Name: "Ana Pérez", City: "Cali", Regional: "Valle"}},
		Rows: []schedule.Row{{ID: "ana", Instructor: "Ana Pérez", Regional: "Valle", Events: map[string][]schedule.Event{
			"26": {{ID: "old", Title: "Evento anterior", Location: "Sala 1", Color: schedule.ColorGrey}},
		}}},
	}
}

// TestExecuteImportSchedule_Merge verifies grouping, day keys, time text, colors and regional preservation.
func TestExecuteImportSchedule_Merge(t *testing.T) {
	m, _ := newTestMachine(t, existingAna())
	rec := &mockAuditRecorder{}

	result, err := ExecuteImportSchedule(context.Background(),
		ImportScheduleInput{Rows: parseFixture(t, importCSV), Actor: Actor{ID: "a1", Email: "planner@example.com"}},
		ImportScheduleDeps{Draft: m, Palette: fixedPalette(), Audit: rec})
	if err != nil {
		t.Fatalf("ExecuteImportSchedule: %v", err)
	}
	if result.InstructorsTotal != 2 || result.EventsTotal != 3 || result.NewInstructorsCreated != 1 {
		t.Errorf("summary = %+v, want 2 instructors, 3 events, 1 new", result)
	}
	if result.IntegrityWarning {
		t.Error("unexpected integrity warning")
	}

	s := m.Draft()
	if len(s.Rows) != 2 || len(s.Instructors) != 2 {
		t.Fatalf("rows=%d instructors=%d, want 2/2", len(s.Rows), len(s.Instructors))
	}
	ana := s.Rows[0]
	if ana.Regional != "Valle" {
		t.Errorf("stored regional = %q, want Valle preserved", ana.Regional)
	}
	if ana.EventCount() != 3 {
		t.Errorf("ana events = %d, want 3 (history kept)", ana.EventCount())
	}
	monday := ana.Events["4"]
	if len(monday) != 1 {
		t.Fatalf("monday bucket = %v", monday)
	}
	if monday[0].Time != "8 a.m. a 10 a.m." || monday[0].Location != schedule.DefaultLocation ||
		monday[0].Color != schedule.ColorBlue || monday[0].Modality != schedule.ModalityInPerson ||
		len(monday[0].Details) != 2 || monday[0].ID == "" {
		t.Errorf("monday event = %+v", monday[0])
	}
	wed := ana.Events["6"]
	if len(wed) != 1 || wed[0].Time != "2:30 p.m." || wed[0].Modality != schedule.ModalityVirtual || wed[0].Color != schedule.ColorAmber {
		t.Errorf("wednesday bucket = %+v", wed)
	}

	luis := s.Rows[1]
	if luis.Instructor != "Luis Gómez" || luis.Regional != "Centro" || s.Instructors[1].ID != luis.ID {
		t.Errorf("new row = %+v, instructor = %+v", luis, s.Instructors[1])
	}
	fri := luis.Events["8"]
	if len(fri) != 1 || fri[0].Time != "" || fri[0].Color != schedule.PaletteColors[0] {
		t.Errorf("friday bucket = %+v", fri)
	}

	if len(rec.events) != 1 || rec.events[0].Action != audit.ActionImport || rec.events[0].ActorID != "a1" {
		t.Errorf("audit events = %+v", rec.events)
	}
	if !m.Status().Unsaved {
		t.Error("import must leave unsaved changes")
	}
}

// TestExecuteImportSchedule_DoubleImportThenDedup verifies imports append and dedup restores the count.
func TestExecuteImportSchedule_DoubleImportThenDedup(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, schedule.State{})
	deps := ImportScheduleDeps{Draft: m, Palette: fixedPalette()}
	input := ImportScheduleInput{Rows: parseFixture(t, importCSV)}

	if _, err := ExecuteImportSchedule(ctx, input, deps); err != nil {
		t.Fatalf("first import: %v", err)
	}
	once := m.Draft()
	second, err := ExecuteImportSchedule(ctx, input, deps)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.NewInstructorsCreated != 0 {
		t.Errorf("second import created %d instructors, want 0", second.NewInstructorsCreated)
	}
	twice := m.Draft()
	for i := range once.Rows {
		if twice.Rows[i].EventCount() != 2*once.Rows[i].EventCount() {
			t.Errorf("row %s events = %d, want %d", once.Rows[i].ID, twice.Rows[i].EventCount(), 2*once.Rows[i].EventCount())
		}
	}

	removed, err := m.RemoveDuplicates(ctx)
	if err != nil {
		t.Fatalf("RemoveDuplicates: %v", err)
	}
	if removed != once.EventCount() {
		t.Errorf("removed = %d, want %d", removed, once.EventCount())
	}
	after := m.Draft()
	for i := range once.Rows {
		if after.Rows[i].EventCount() != once.Rows[i].EventCount() {
			t.Errorf("row %s events after dedup = %d, want %d", once.Rows[i].ID, after.Rows[i].EventCount(), once.Rows[i].EventCount())
		}
	}
}

// TestExecuteImportSchedule_InvalidRowRejectsBatch verifies the all-or-nothing gate.
func TestExecuteImportSchedule_InvalidRowRejectsBatch(t *testing.T) {
	m, _ := newTestMachine(t, schedule.State{})
	data := importCSV + "Marta Ruiz,Norte,,,,jueves,,,\n"

	result, err := ExecuteImportSchedule(context.Background(),
		ImportScheduleInput{Rows: parseFixture(t, data)},
		ImportScheduleDeps{Draft: m, Palette: fixedPalette()})

	var verr *ImportValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ImportValidationError", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Row != 5 || verr.Errors[0].Field != "titulo" {
		t.Errorf("errors = %+v, want titulo on row 5", verr.Errors)
	}
	if result.Report.Valid || len(result.Report.ValidRows) != 0 {
		t.Errorf("report = %+v, want invalid with no valid rows", result.Report)
	}
	if len(m.Draft().Rows) != 0 {
		t.Error("draft must be untouched when validation fails")
	}
}

// TestExecuteImportSchedule_DryRun verifies the plan is computed without touching the draft.
func TestExecuteImportSchedule_DryRun(t *testing.T) {
	m, _ := newTestMachine(t, existingAna())
	before := m.Draft()

	result, err := ExecuteImportSchedule(context.Background(),
		ImportScheduleInput{Rows: parseFixture(t, importCSV), DryRun: true},
		ImportScheduleDeps{Draft: m})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !result.DryRun || result.NewInstructorsCreated != 1 || result.EventsTotal != 3 {
		t.Errorf("result = %+v", result)
	}
	if !m.Draft().Equal(before) {
		t.Error("dry run changed the draft")
	}
}

// TestExecuteImportSchedule_PartialMergeIsKept verifies a failing step does not roll back earlier work.
func TestExecuteImportSchedule_PartialMergeIsKept(t *testing.T) {
	// An instructor without a row: creating "Luis Gómez" again is refused as a duplicate name.
	broken := schedule.State{Instructors: []schedule.Instructor{{ID: "orphan", Name: "Luis Gómez"}}}
	m, _ := newTestMachine(t, broken)

	_, err := ExecuteImportSchedule(context.Background(),
		ImportScheduleInput{Rows: parseFixture(t, importCSV)},
		ImportScheduleDeps{Draft: m, Palette: fixedPalette()})
	if !errors.Is(err, schedule.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	s := m.Draft()
	if _, ok := s.FindRowByName("Ana Pérez"); !ok {
		t.Error("instructor created before the failure must be kept")
	}
	if s.EventCount() != 0 {
		t.Errorf("events = %d, want 0 (failure happened before appends)", s.EventCount())
	}
	if m.Status().Processing {
		t.Error("processing flag must be released after failure")
	}
}

// TestExecuteImportSchedule_Busy verifies an import is refused while another operation runs.
func TestExecuteImportSchedule_Busy(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, schedule.State{})
	err := m.Run(ctx, "outer", func(ctx context.Context, _ *draft.Editor) error {
		_, err := ExecuteImportSchedule(ctx, ImportScheduleInput{Rows: parseFixture(t, importCSV)}, ImportScheduleDeps{Draft: m})
		return err
	})
	if !errors.Is(err, draft.ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

// TestExecuteImportSchedule_NoRows verifies an empty batch is a validation error.
func TestExecuteImportSchedule_NoRows(t *testing.T) {
	m, _ := newTestMachine(t, schedule.State{})
	_, err := ExecuteImportSchedule(context.Background(), ImportScheduleInput{}, ImportScheduleDeps{Draft: m})
	var verr *ImportValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want *ImportValidationError", err)
	}
}

// TestLocateNewRow verifies only unmapped rows are considered.
func TestLocateNewRow(t *testing.T) {
	rows := []schedule.Row{{ID: "r1", Instructor: "Ana"}, {ID: "r2", Instructor: "ANA"}}
	mapped := map[string]string{"ana": "r1"}
	if id, ok := locateNewRow(rows, "ana", mapped); !ok || id != "r2" {
		t.Errorf("locateNewRow = %q, %v, want r2", id, ok)
	}
	if _, ok := locateNewRow(rows[:1], "ana", mapped); ok {
		t.Error("expected no match when the only candidate is already mapped")
	}
}
