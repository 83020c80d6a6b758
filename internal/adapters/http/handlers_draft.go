package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"horario/internal/application/draft"
	"horario/internal/application/orchestrators"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
)

type draftResponse struct {
	State  schedule.State `json:"state"`
	Status draft.Status   `json:"status"`
}

// handleDraft handles GET /api/draft
func (s *server) handleDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, draftResponse{State: s.deps.Draft.Draft(), Status: s.deps.Draft.Status()})
}

// handleDraftStatus handles GET /api/draft/status
func (s *server) handleDraftStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Draft.Status())
}

// handleSave handles POST /api/draft/save
// POST: the draft is the saved baseline and the publish cooldown restarts
func (s *server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Draft.Save(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	st := s.deps.Draft.Status()
	s.recordAudit(r.Context(), r, audit.ActionSave, audit.ResourceDraft, "",
		fmt.Sprintf("saved draft with %d rows and %d events", st.Rows, st.Events))
	writeJSON(w, http.StatusOK, st)
}

// handlePublish handles POST /api/draft/publish
// PRE: the draft was saved, nothing changed since, and the cooldown elapsed
func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	result, err := orchestrators.ExecutePublishSchedule(r.Context(),
		orchestrators.PublishScheduleInput{Actor: actor(r)},
		orchestrators.PublishScheduleDeps{
			Draft:      s.deps.Draft,
			Sender:     s.deps.Sender,
			Recipients: s.deps.NotifyRecipients,
			From:       s.deps.NotifyFrom,
			Audit:      s.deps.Audit,
			Outbox:     s.deps.Outbox,
			Now:        s.deps.Now,
		})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImport handles POST /api/draft/import[?dry_run=1].
// The body is the CSV itself, or a multipart form with the CSV in field "file".
func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "dry_run must be a boolean")
			return
		}
		dryRun = b
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	body, closeBody, err := importBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	defer closeBody()

	rows, err := orchestrators.ParseImportCSV(body)
	if err != nil {
		var verr *orchestrators.ImportValidationError
		if errors.As(err, &verr) {
			respondError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_csv", err.Error())
		return
	}

	result, err := orchestrators.ExecuteImportSchedule(r.Context(),
		orchestrators.ImportScheduleInput{Rows: rows, DryRun: dryRun, Actor: actor(r)},
		orchestrators.ImportScheduleDeps{Draft: s.deps.Draft, Palette: s.deps.Palette, Audit: s.deps.Audit})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// importBody returns the CSV stream from a raw or multipart request.
func importBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("multipart upload needs a \"file\" field: %w", err)
	}
	return f, func() { f.Close() }, nil
}

type countResponse struct {
	Removed int          `json:"removed"`
	Status  draft.Status `json:"status"`
}

// handleRemoveDuplicates handles POST /api/draft/duplicates/remove
func (s *server) handleRemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	removed, err := s.deps.Draft.RemoveDuplicates(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionDedup, audit.ResourceDraft, "", fmt.Sprintf("removed %d duplicate events", removed))
	writeJSON(w, http.StatusOK, countResponse{Removed: removed, Status: s.deps.Draft.Status()})
}

type integrityResponse struct {
	OK     bool             `json:"ok"`
	Issues []schedule.Issue `json:"issues"`
}

// handleIntegrity handles POST /api/draft/integrity
func (s *server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	issues, err := s.deps.Draft.CheckIntegrity(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if issues == nil {
		issues = []schedule.Issue{}
	}
	writeJSON(w, http.StatusOK, integrityResponse{OK: len(issues) == 0, Issues: issues})
}

// handleSetWeek handles PUT /api/draft/week with {"startDate","endDate"}.
func (s *server) handleSetWeek(w http.ResponseWriter, r *http.Request) {
	var week schedule.Week
	if err := strictDecode(r, &week); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid", "invalid week: "+err.Error())
		return
	}
	if week.IsZero() {
		writeError(w, http.StatusUnprocessableEntity, "invalid", "startDate and endDate are required")
		return
	}
	if err := s.deps.Draft.SetWeek(r.Context(), week); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Draft.Status())
}

// handleAdvanceWeek handles POST /api/draft/week/next
func (s *server) handleAdvanceWeek(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Draft.AdvanceWeek(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Draft.Status())
}

// handleRetreatWeek handles POST /api/draft/week/prev
func (s *server) handleRetreatWeek(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Draft.RetreatWeek(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Draft.Status())
}

type clearWeekRequest struct {
	Confirm bool `json:"confirm"`
}

// handleClearWeek handles POST /api/draft/week/clear.
// PRE: body is {"confirm":true}; anything else is refused without touching the draft
func (s *server) handleClearWeek(w http.ResponseWriter, r *http.Request) {
	var req clearWeekRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusBadRequest, "confirm_required", "clearing the week needs {\"confirm\":true}")
		return
	}
	week := s.deps.Draft.Status().Week
	removed, err := s.deps.Draft.ClearCurrentWeek(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionClear, audit.ResourceWeek, week.Start.Format(schedule.DateLayout),
		fmt.Sprintf("cleared %d events from the active week", removed))
	writeJSON(w, http.StatusOK, countResponse{Removed: removed, Status: s.deps.Draft.Status()})
}
