package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"horario/internal/adapters/http/middleware"
	"horario/internal/application/draft"
	"horario/internal/application/orchestrators"
	"horario/internal/domain/audit"
	"horario/internal/domain/schedule"
	"horario/internal/logging"
)

// ErrorResponse is the JSON body of every error reply: {"error": {"code", "message", "details"}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine-readable Code and a Message safe to show a user.
// Details lists per-row import errors and is omitted otherwise.
type ErrorBody struct {
	Code    string                         `json:"code"`
	Message string                         `json:"message"`
	Details []orchestrators.ImportRowError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: msg}})
}

// internalError logs err with the request id and replies with a generic message.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("internal_error", "path", r.URL.Path, "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}

// validationErrors are domain rejections of user input.
var validationErrors = []error{
	schedule.ErrEmptyName,
	schedule.ErrEmptyTitle,
	schedule.ErrEmptyDayKey,
	schedule.ErrInvalidModality,
	schedule.ErrInvalidColor,
	schedule.ErrDuplicateName,
	schedule.ErrDuplicateEvent,
	schedule.ErrInvalidWeek,
}

// respondError maps a draft or orchestrator error to its HTTP status.
// Busy, cooldown and not-saved are expected rejections and are not logged as errors.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cooldown  *draft.CooldownError
		importErr *orchestrators.ImportValidationError
		notFound  *schedule.NotFoundError
		storage   *draft.StorageError
	)
	switch {
	case errors.Is(err, draft.ErrBusy):
		writeError(w, http.StatusConflict, "busy", err.Error())
	case errors.As(err, &cooldown):
		secs := int(math.Ceil(cooldown.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		writeError(w, http.StatusConflict, "cooldown", err.Error())
	case errors.Is(err, draft.ErrNotSaved):
		writeError(w, http.StatusConflict, "not_saved", err.Error())
	case errors.As(err, &importErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorBody{
			Code:    "import_invalid",
			Message: importErr.Error(),
			Details: importErr.Errors,
		}})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, "invalid", err.Error())
	case errors.As(err, &storage):
		logging.FromContext(r.Context()).Error("storage_error", "path", r.URL.Path, "op", storage.Op, "error", storage.Err.Error())
		writeError(w, http.StatusServiceUnavailable, "storage", "the schedule could not be stored, try again")
	default:
		internalError(w, r, err)
	}
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOrReject decodes the body into v and answers 400 on failure.
func decodeOrReject(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := strictDecode(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// actor identifies the signed-in user for orchestrators and the audit trail.
func actor(r *http.Request) orchestrators.Actor {
	a := orchestrators.Actor{IP: r.RemoteAddr, Agent: r.UserAgent()}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		a.ID = sess.AccountID
		a.Email = sess.Email
		a.Role = sess.Role
	}
	return a
}

// recordAudit saves an audit event for a handler-level operation.
// A failed save is logged and never fails the request.
func (s *server) recordAudit(ctx context.Context, r *http.Request, action audit.Action, resource audit.Resource, resourceID, desc string) {
	if s.deps.Audit == nil {
		return
	}
	a := actor(r)
	ev := audit.NewEvent(a.ID, a.Email, a.Role, resource.Category(), action).
		At(s.deps.Now()).
		WithRequest(a.IP, a.Agent).
		WithResource(resource, resourceID).
		WithDescription(desc)
	if err := s.deps.Audit.Save(ctx, ev); err != nil {
		logging.FromContext(ctx).Error("audit_save_failed", "action", string(action), "error", err.Error())
	}
}
