// Package ics renders the published schedule as an iCalendar feed.
package ics

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"horario/internal/domain/schedule"
)

// DefaultDuration is used when an event's time text names only a start.
const DefaultDuration = time.Hour

// Options controls the rendered feed.
type Options struct {
	Location *time.Location // zone the free-form times are read in; nil means UTC
	Now      time.Time      // DTSTAMP of every event
	Name     string         // calendar display name
}

var clockPattern = regexp.MustCompile(`(?i)^(0?[1-9]|1[0-2])(?::([0-5][0-9]))?\s*([ap])\.m\.$`)

// parseClock reads "8 a.m." or "2:30 p.m." as an offset from midnight.
func parseClock(s string) (time.Duration, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	h %= 12
	if strings.EqualFold(m[3], "p") {
		h += 12
	}
	return time.Duration(h)*time.Hour + time.Duration(minute)*time.Minute, true
}

// parseTimeRange reads "{start} a {end}" or a lone start.
// ok is false when the text is not a recognizable clock time, in which case the event is all-day.
func parseTimeRange(text string) (start, end time.Duration, ok bool) {
	parts := strings.SplitN(text, " a ", 2)
	start, ok = parseClock(parts[0])
	if !ok {
		return 0, 0, false
	}
	end = start + DefaultDuration
	if len(parts) == 2 {
		if e, ok := parseClock(parts[1]); ok && e > start {
			end = e
		}
	}
	return start, end, true
}

// Export renders every event of the snapshot's active week.
// Events with a recognizable time become timed events; others are all-day.
func Export(s schedule.State, opts Options) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	name := opts.Name
	if name == "" {
		name = "Horario"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//horario//schedule//ES")
	cal.SetName(name)
	cal.SetXWRCalName(name)
	cal.SetXWRTimezone(loc.String())

	for _, de := range s.WeekAgenda(s.Config.CurrentWeek) {
		ev := de.Event
		ve := cal.AddEvent(ev.ID + "@" + de.RowID)
		ve.SetDtStampTime(opts.Now)
		ve.SetSummary(ev.Title + " - " + de.Instructor)
		ve.SetLocation(ev.Location)
		if desc := description(de); desc != "" {
			ve.SetDescription(desc)
		}
		if ev.Modality != "" {
			ve.AddProperty(ical.ComponentPropertyCategories, ev.Modality)
		}
		if ev.Color != "" {
			ve.SetProperty(ical.ComponentPropertyColor, ev.Color)
		}

		day := time.Date(de.Date.Year(), de.Date.Month(), de.Date.Day(), 0, 0, 0, 0, loc)
		if start, end, ok := parseTimeRange(ev.Time); ok {
			ve.SetStartAt(day.Add(start))
			ve.SetEndAt(day.Add(end))
		} else {
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
		}
	}
	return cal.Serialize()
}

func description(de schedule.DatedEvent) string {
	var lines []string
	if de.Regional != "" {
		lines = append(lines, "Regional: "+de.Regional)
	}
	if de.Event.Time != "" {
		lines = append(lines, "Hora: "+de.Event.Time)
	}
	lines = append(lines, de.Event.Details...)
	return strings.Join(lines, "\n")
}
