package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

type instructorRequest struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Regional string `json:"regional"`
}

// handleCreateInstructor handles POST /api/instructors.
// POST: the instructor and its empty row share the generated id
func (s *server) handleCreateInstructor(w http.ResponseWriter, r *http.Request) {
	var req instructorRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	created, err := s.deps.Draft.AddInstructor(r.Context(), schedule.Instructor{
		Name:     req.Name,
		City:     req.City,
		Regional: req.Regional,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionCreate, audit.ResourceInstructor, created.ID, "added instructor "+created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateInstructor handles PATCH /api/instructors/{id}.
// Omitted or empty fields keep their current value.
func (s *server) handleUpdateInstructor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req instructorRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	current := s.deps.Draft.Draft()
	i, ok := current.InstructorIndex(id)
	if !ok {
		respondError(w, r, &schedule.NotFoundError{Kind: "instructor", Key: id})
		return
	}
	in := current.Instructors[i]
	if v := strings.TrimSpace(req.Name); v != "" {
		in.Name = v
	}
	if v := strings.TrimSpace(req.City); v != "" {
		in.City = v
	}
	if v := strings.TrimSpace(req.Regional); v != "" {
		in.Regional = v
	}

	if err := s.deps.Draft.UpdateInstructor(r.Context(), in); err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionUpdate, audit.ResourceInstructor, in.ID, "updated instructor "+in.Name)
	writeJSON(w, http.StatusOK, in)
}

// handleDeleteInstructor handles DELETE /api/instructors/{id}.
// The instructor's row and every event in it go too.
func (s *server) handleDeleteInstructor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Draft.DeleteInstructor(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionDelete, audit.ResourceInstructor, id, "deleted instructor and row")
	w.WriteHeader(http.StatusNoContent)
}

// eventRequest is the body of event create and update.
// A create names its bucket either by DayKey or by a weekday name in Day,
// resolved against the active week.
type eventRequest struct {
	DayKey   string   `json:"dayKey"`
	Day      string   `json:"day"`
	Title    string   `json:"title"`
	Details  []string `json:"details"`
	Time     string   `json:"time"`
	Location string   `json:"location"`
	Color    string   `json:"color"`
	Modality string   `json:"modality"`
}

// event builds the stored form, filling location and color defaults.
func (s *server) event(req eventRequest) schedule.Event {
	ev := schedule.Event{
		Title:    strings.TrimSpace(req.Title),
		Details:  req.Details,
		Time:     strings.TrimSpace(req.Time),
		Location: strings.TrimSpace(req.Location),
		Color:    strings.ToUpper(strings.TrimSpace(req.Color)),
		Modality: req.Modality,
	}
	if ev.Location == "" {
		ev.Location = schedule.DefaultLocation
	}
	if ev.Color == "" {
		ev.Color = s.deps.Palette.ColorFor(ev.PrimaryDetail())
	}
	return ev
}

// handleCreateEvent handles POST /api/rows/{rowID}/events
func (s *server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")
	var req eventRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	dayKey := strings.TrimSpace(req.DayKey)
	if dayKey == "" && req.Day != "" {
		if !schedule.IsValidDay(req.Day) {
			writeError(w, http.StatusUnprocessableEntity, "invalid", "day must be one of: "+strings.Join(schedule.ValidDays, ", "))
			return
		}
		dayKey = schedule.ResolveDayKey(s.deps.Draft.Status().Week.Start, req.Day)
	}

	stored, err := s.deps.Draft.AddEvent(r.Context(), rowID, dayKey, s.event(req))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionCreate, audit.ResourceEvent, stored.ID, "added "+stored.Title+" to row "+rowID+" on day "+dayKey)
	writeJSON(w, http.StatusCreated, stored)
}

// handleUpdateEvent handles PUT /api/rows/{rowID}/events/{eventID}.
// The event keeps its day bucket; dayKey and day are ignored.
func (s *server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")
	var req eventRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	ev := s.event(req)
	ev.ID = chi.URLParam(r, "eventID")
	if err := s.deps.Draft.UpdateEvent(r.Context(), rowID, ev); err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionUpdate, audit.ResourceEvent, ev.ID, "updated "+ev.Title+" in row "+rowID)
	writeJSON(w, http.StatusOK, ev)
}

// handleDeleteEvent handles DELETE /api/rows/{rowID}/events/{eventID}
func (s *server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	rowID, eventID := chi.URLParam(r, "rowID"), chi.URLParam(r, "eventID")
	if err := s.deps.Draft.DeleteEvent(r.Context(), rowID, eventID); err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionDelete, audit.ResourceEvent, eventID, "deleted event from row "+rowID)
	w.WriteHeader(http.StatusNoContent)
}
