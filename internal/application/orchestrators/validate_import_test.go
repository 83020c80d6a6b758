package orchestrators

import (
	"errors"
	"strings"
	"testing"

	"horario/internal/domain/schedule"
)

func validRow() ImportRow {
	return ImportRow{
		"instructor": "Ana Pérez",
		"regional":   "Cauca",
		"titulo":     "Inducción",
		"dia":        "lunes",
	}
}

func TestValidateImportRows_Hora12(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"8 a.m.", true},
		{"2:30 p.m.", true},
		{"12:00 P.M.", true},
		{"08:30 p.m.", false},
		{"2:30p.m.", false},
		{"0 a.m.", false},
		{"13 p.m.", false},
		{"8:60 a.m.", false},
		{"8 am", false},
		{"08:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			row := validRow()
			row["hora inicio"] = tt.value
			report := ValidateImportRows([]ImportRow{row})
			if report.Valid != tt.ok {
				t.Errorf("Valid = %v, want %v (errors %+v)", report.Valid, tt.ok, report.Errors)
			}
			if !tt.ok && (len(report.Errors) != 1 || report.Errors[0].Field != "horaInicio") {
				t.Errorf("errors = %+v, want one horaInicio error", report.Errors)
			}
		})
	}
}

func TestValidateImportRows_Dia(t *testing.T) {
	for _, day := range []string{"lunes", "Martes", "miércoles", "MIERCOLES", "jueves", "Viernes"} {
		row := validRow()
		row["dia"] = day
		if r := ValidateImportRows([]ImportRow{row}); !r.Valid {
			t.Errorf("dia %q rejected: %+v", day, r.Errors)
		}
	}
	for _, day := range []string{"sabado", "domingo", "monday", "lun"} {
		row := validRow()
		row["dia"] = day
		r := ValidateImportRows([]ImportRow{row})
		if r.Valid || r.Errors[0].Field != "dia" {
			t.Errorf("dia %q accepted or wrong field: %+v", day, r.Errors)
		}
	}
}

func TestValidateImportRows_ReportsEveryFieldOfEveryRow(t *testing.T) {
	rows := []ImportRow{
		validRow(),
		{"instructor": "  ", "dia": "sabado", "hora_fin": "noon"},
		validRow(),
	}
	report := ValidateImportRows(rows)
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	if len(report.ValidRows) != 0 {
		t.Errorf("ValidRows = %d, want 0 when any row fails", len(report.ValidRows))
	}
	fields := map[string]bool{}
	for _, e := range report.Errors {
		if e.Row != 3 {
			t.Errorf("error on row %d, want 3", e.Row)
		}
		fields[e.Field] = true
	}
	for _, f := range []string{"instructor", "regional", "titulo", "dia", "horaFin"} {
		if !fields[f] {
			t.Errorf("missing error for %s in %+v", f, report.Errors)
		}
	}
}

func TestValidateImportRows_Normalizes(t *testing.T) {
	row := ImportRow{
		"Instructor": " Luis ",
		"REGIONAL":   "Centro",
		"Título":     "Taller",
		"Detalles":   "Taller\r\n\r\nGrupo B ",
		"Ubicación":  "",
		"Día":        "Miércoles",
		"Hora-Fin":   "5 p.m.",
		"modalidad":  "VIRTUAL",
	}
	report := ValidateImportRows([]ImportRow{row})
	if !report.Valid || len(report.ValidRows) != 1 {
		t.Fatalf("report = %+v", report)
	}
	got := report.ValidRows[0]
	if got.Row != 2 || got.Instructor != "Luis" || got.Day != schedule.Miercoles {
		t.Errorf("row = %+v", got)
	}
	if got.Location != schedule.DefaultLocation {
		t.Errorf("location = %q, want default", got.Location)
	}
	if len(got.Details) != 2 || got.Details[1] != "Grupo B" {
		t.Errorf("details = %q", got.Details)
	}
	if got.Modality != schedule.ModalityVirtual {
		t.Errorf("modality = %q", got.Modality)
	}
	if got.Time() != "5 p.m." {
		t.Errorf("time = %q", got.Time())
	}
}

func TestValidateImportRows_UnknownModalityIsDropped(t *testing.T) {
	row := validRow()
	row["modalidad"] = "hibrida"
	report := ValidateImportRows([]ImportRow{row})
	if !report.Valid || report.ValidRows[0].Modality != "" {
		t.Errorf("report = %+v", report)
	}
}

func TestValidatedEvent_Time(t *testing.T) {
	tests := []struct {
		start, end, want string
	}{
		{"8 a.m.", "10 a.m.", "8 a.m. a 10 a.m."},
		{"8 a.m.", "", "8 a.m."},
		{"", "10 a.m.", "10 a.m."},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := (ValidatedEvent{StartTime: tt.start, EndTime: tt.end}).Time(); got != tt.want {
			t.Errorf("Time(%q, %q) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := map[string]string{
		"Hora Inicio":      "horaInicio",
		"hora_inicio":      "horaInicio",
		"HORAINICIO":       "horaInicio",
		"Hora-Fin":         "horaFin",
		"\ufeffInstructor": "instructor",
		"Ubicación":        "ubicacion",
		"Detalle":          "detalles",
		"Observaciones":    "observaciones",
	}
	for in, want := range tests {
		if got := canonicalKey(in); got != want {
			t.Errorf("canonicalKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseImportCSV(t *testing.T) {
	data := "\ufeffInstructor,Regional,Título,Día\n" +
		"Ana,Cauca,Inducción,lunes\n" +
		",,,\n" +
		"\n" +
		"Luis,Centro\n"
	rows, err := ParseImportCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseImportCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank rows skipped)", len(rows))
	}
	if rows[0]["instructor"] != "Ana" || rows[0]["titulo"] != "Inducción" || rows[0]["dia"] != "lunes" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if v, ok := rows[1]["dia"]; !ok || v != "" {
		t.Errorf("short row should read missing columns as empty, got %v", rows[1])
	}
}

func TestParseImportCSV_Empty(t *testing.T) {
	_, err := ParseImportCSV(strings.NewReader(""))
	var verr *ImportValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ImportValidationError", err)
	}
	if verr.Error() != "import rejected: file is empty" {
		t.Errorf("message = %q", verr.Error())
	}
}
