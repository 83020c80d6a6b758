package orchestrators

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"horario/internal/domain/schedule"
)

// ImportRow is one loosely-typed tabular row keyed by header name.
// Header casing, accents, spaces and underscores are ignored when reading fields.
type ImportRow map[string]string

// ImportRowError describes one failing field of one row.
// Row is 1-based and counts the header line, so the first data row is 2.
type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

// ValidatedEvent is a row that passed validation, normalized for the merge.
type ValidatedEvent struct {
	Row        int      `json:"row"`
	Instructor string   `json:"instructor"`
	Regional   string   `json:"regional"`
	Title      string   `json:"titulo"`
	Details    []string `json:"detalles,omitempty"`
	Location   string   `json:"ubicacion"`
	Day        string   `json:"dia"`
	StartTime  string   `json:"horaInicio,omitempty"`
	EndTime    string   `json:"horaFin,omitempty"`
	Modality   string   `json:"modalidad,omitempty"`
}

// Time returns the display string: "{start} a {end}", or whichever bound is present.
func (v ValidatedEvent) Time() string {
	switch {
	case v.StartTime != "" && v.EndTime != "":
		return v.StartTime + " a " + v.EndTime
	case v.StartTime != "":
		return v.StartTime
	}
	return v.EndTime
}

// ValidationReport is the outcome of the validation phase.
// INVARIANT: Valid is true iff Errors is empty; ValidRows is empty whenever Valid is false
type ValidationReport struct {
	Valid     bool             `json:"valid"`
	Errors    []ImportRowError `json:"errors"`
	ValidRows []ValidatedEvent `json:"validRows"`
}

// hora12Pattern matches "8 a.m.", "2:30 p.m.", "12:00 P.M.": hour 1-12 without a leading zero,
// optional minutes, then whitespace before the meridiem.
var hora12Pattern = regexp.MustCompile(`(?i)^([1-9]|1[0-2])(:[0-5][0-9])?\s+[ap]\.m\.$`)

// importRecord carries the constrained columns through validator/v10.
type importRecord struct {
	Instructor string `field:"instructor" validate:"required"`
	Regional   string `field:"regional" validate:"required"`
	Titulo     string `field:"titulo" validate:"required"`
	Dia        string `field:"dia" validate:"required,weekday"`
	HoraInicio string `field:"horaInicio" validate:"omitempty,hora12"`
	HoraFin    string `field:"horaFin" validate:"omitempty,hora12"`
}

var importValidator = newImportValidator()

func newImportValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return schedule.IsValidDay(fl.Field().String())
	})
	_ = v.RegisterValidation("hora12", func(fl validator.FieldLevel) bool {
		return hora12Pattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

// canonicalKeys maps folded header spellings to the record fields.
var canonicalKeys = map[string]string{
	"instructor": "instructor",
	"regional":   "regional",
	"titulo":     "titulo",
	"detalles":   "detalles",
	"detalle":    "detalles",
	"ubicacion":  "ubicacion",
	"dia":        "dia",
	"horainicio": "horaInicio",
	"horafin":    "horaFin",
	"modalidad":  "modalidad",
}

// canonicalKey folds a header name: "Hora Inicio", "hora_inicio" and "HORAINICIO" all become "horaInicio".
// Unknown headers are returned folded.
func canonicalKey(header string) string {
	folded := schedule.FoldAccents(strings.TrimPrefix(header, "\ufeff"))
	folded = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(folded)
	if k, ok := canonicalKeys[folded]; ok {
		return k
	}
	return folded
}

func normalizeRow(raw ImportRow) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[canonicalKey(k)] = strings.TrimSpace(v)
	}
	return out
}

// ValidateImportRows runs the validation phase over every row.
// The phase has no side effects. A single failing row rejects the whole batch.
// PRE: none; rows may be empty
// POST: errors for every failing field of every row are reported;
//
//	ValidRows holds every row only when no row failed
func ValidateImportRows(rows []ImportRow) ValidationReport {
	report := ValidationReport{Errors: []ImportRowError{}, ValidRows: []ValidatedEvent{}}
	var accepted []ValidatedEvent

	for i, raw := range rows {
		rowNum := i + 2
		f := normalizeRow(raw)
		rec := importRecord{
			Instructor: f["instructor"],
			Regional:   f["regional"],
			Titulo:     f["titulo"],
			Dia:        f["dia"],
			HoraInicio: f["horaInicio"],
			HoraFin:    f["horaFin"],
		}

		if rowErrs := fieldErrors(rowNum, rec); len(rowErrs) > 0 {
			report.Errors = append(report.Errors, rowErrs...)
			continue
		}

		location := f["ubicacion"]
		if location == "" {
			location = schedule.DefaultLocation
		}
		accepted = append(accepted, ValidatedEvent{
			Row:        rowNum,
			Instructor: rec.Instructor,
			Regional:   rec.Regional,
			Title:      rec.Titulo,
			Details:    splitDetails(f["detalles"]),
			Location:   location,
			Day:        schedule.FoldAccents(rec.Dia),
			StartTime:  rec.HoraInicio,
			EndTime:    rec.HoraFin,
			Modality:   normalizeModality(f["modalidad"]),
		})
	}

	report.Valid = len(report.Errors) == 0
	if report.Valid {
		report.ValidRows = append(report.ValidRows, accepted...)
	}
	return report
}

func fieldErrors(rowNum int, rec importRecord) []ImportRowError {
	err := importValidator.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ImportRowError{{Row: rowNum, Message: err.Error()}}
	}
	out := make([]ImportRowError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ImportRowError{
			Row:     rowNum,
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Value:   fmt.Sprint(fe.Value()),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "weekday":
		return "dia must be one of: " + strings.Join(schedule.ValidDays, ", ")
	case "hora12":
		return fe.Field() + ` must look like "8 a.m." or "2:30 p.m."`
	}
	return fe.Field() + " is invalid"
}

// splitDetails keeps multi-line details one line per entry.
func splitDetails(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// normalizeModality accepts either modality case-insensitively; anything else means none declared.
func normalizeModality(s string) string {
	switch schedule.FoldAccents(s) {
	case "presencial":
		return schedule.ModalityInPerson
	case "virtual":
		return schedule.ModalityVirtual
	}
	return ""
}

// ParseImportCSV reads a header row followed by data rows.
// Blank lines are skipped; short rows read missing columns as empty.
func ParseImportCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ImportValidationError{Errors: []ImportRowError{{Row: 1, Message: "file is empty"}}}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = canonicalKey(header[i])
	}

	var rows []ImportRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blankRecord(rec) {
			continue
		}
		row := make(ImportRow, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
