package schedule_test

import (
	"testing"
	"time"

	"horario/internal/domain/schedule"
)

// TestResolveDayKey_MondayAlignedWeek checks each weekday against the March 2024 calendar.
func TestResolveDayKey_MondayAlignedWeek(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday
	tests := []struct {
		day  string
		want string
	}{
		{"lunes", "4"},
		{"martes", "5"},
		{"miercoles", "6"},
		{"miércoles", "6"},
		{"Jueves", "7"},
		{"VIERNES", "8"},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			if got := schedule.ResolveDayKey(start, tt.day); got != tt.want {
				t.Errorf("ResolveDayKey(%s) = %s, want %s", tt.day, got, tt.want)
			}
		})
	}
}

// TestResolveDayKey_ScansForwardOnly verifies a mid-week start resolves earlier weekdays to next week.
func TestResolveDayKey_ScansForwardOnly(t *testing.T) {
	start := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC) // Wednesday
	if got := schedule.ResolveDayKey(start, "lunes"); got != "11" {
		t.Errorf("lunes from Wednesday 6th = %s, want 11", got)
	}
	if got := schedule.ResolveDayKey(start, "miercoles"); got != "6" {
		t.Errorf("miercoles from Wednesday 6th = %s, want 6", got)
	}
}

// TestResolveDayKey_MonthWrap verifies day-of-month wraps across month boundaries.
func TestResolveDayKey_MonthWrap(t *testing.T) {
	start := time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC) // Monday
	if got := schedule.ResolveDayKey(start, "viernes"); got != "3" {
		t.Errorf("viernes = %s, want 3", got)
	}
}

// TestResolveDayKey_UnknownFallsBackToStart verifies unknown names do not raise.
func TestResolveDayKey_UnknownFallsBackToStart(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := schedule.ResolveDayKey(start, "sabado"); got != "4" {
		t.Errorf("sabado = %s, want fallback 4", got)
	}
}

// TestNormalizeName verifies trimming and case folding.
func TestNormalizeName(t *testing.T) {
	if schedule.NormalizeName("  Ana GÓMEZ ") != schedule.NormalizeName("ana gómez") {
		t.Error("names differing only by case/outer space should normalize equal")
	}
}

// TestIsValidDay verifies accepted weekday tokens.
func TestIsValidDay(t *testing.T) {
	for _, d := range []string{"lunes", "Martes", "miércoles", "MIERCOLES", "jueves", "viernes"} {
		if !schedule.IsValidDay(d) {
			t.Errorf("IsValidDay(%q) = false, want true", d)
		}
	}
	for _, d := range []string{"", "sabado", "domingo", "monday"} {
		if schedule.IsValidDay(d) {
			t.Errorf("IsValidDay(%q) = true, want false", d)
		}
	}
}
