package schedule

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weekday tokens accepted by imports. "miércoles" folds to Miercoles.
const (
	Lunes     = "lunes"
	Martes    = "martes"
	Miercoles = "miercoles"
	Jueves    = "jueves"
	Viernes   = "viernes"
)

// ValidDays contains the folded weekday tokens in calendar order.
var ValidDays = []string{Lunes, Martes, Miercoles, Jueves, Viernes}

var weekdays = map[string]time.Weekday{
	Lunes:     time.Monday,
	Martes:    time.Tuesday,
	Miercoles: time.Wednesday,
	Jueves:    time.Thursday,
	Viernes:   time.Friday,
}

// NormalizeName is the instructor identity key used for merge matching.
// Exact case-insensitive match after trimming is the same instructor; nothing fuzzier.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// FoldAccents lowercases s and strips combining marks ("Miércoles" -> "miercoles").
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// ParseWeekday maps an accepted weekday token to its time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	wd, ok := weekdays[FoldAccents(name)]
	return wd, ok
}

// IsValidDay reports whether name is one of the accepted weekday tokens.
func IsValidDay(name string) bool {
	_, ok := ParseWeekday(name)
	return ok
}

// ResolveDate returns the first date on or after start whose weekday matches dayName.
// The scan only moves forward, so a start date later in the week than dayName
// lands on the following week's occurrence.
// POST: ok is false for unknown day names, in which case start is returned
func ResolveDate(start time.Time, dayName string) (time.Time, bool) {
	target, ok := ParseWeekday(dayName)
	d := dateOf(start)
	if !ok {
		return d, false
	}
	for i := 0; i < 7 && d.Weekday() != target; i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d, true
}

// ResolveDayKey returns the day-of-month key for dayName within the week starting at start.
// Unknown day names fall back to start's own day of month and are logged, not raised.
func ResolveDayKey(start time.Time, dayName string) string {
	d, ok := ResolveDate(start, dayName)
	if !ok {
		slog.Error("day_key_unknown_weekday", "day", dayName, "fallback", d.Format(DateLayout))
	}
	return strconv.Itoa(d.Day())
}
