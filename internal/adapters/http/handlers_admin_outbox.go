package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	outboxStore "horario/internal/adapters/storage/outbox"
	"horario/internal/domain/audit"
	"horario/internal/domain/outbox"
)

// handleAdminOutbox handles GET /api/admin/outbox.
// Query: status (failed or pending, default failed), limit (1..100, default 50).
func (s *server) handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	if s.deps.Outbox == nil {
		writeJSON(w, http.StatusOK, []outbox.Entry{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var (
		entries []outbox.Entry
		err     error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "", outbox.StatusFailed:
		entries, err = s.deps.Outbox.ListFailed(r.Context(), limit)
	case outbox.StatusPending:
		entries, err = s.deps.Outbox.ListPending(r.Context(), limit)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "status must be failed or pending")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	if entries == nil {
		entries = []outbox.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAdminOutboxRetry handles POST /api/admin/outbox/{id}/retry.
// POST: the entry was attempted once; the response carries its new state
func (s *server) handleAdminOutboxRetry(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		writeError(w, http.StatusNotFound, "not_found", "the notification outbox is disabled")
		return
	}
	entry, err := s.outbox.Retry(r.Context(), chi.URLParam(r, "id"))
	s.respondOutbox(w, r, audit.ActionRetry, entry, err)
}

// handleAdminOutboxAbandon handles POST /api/admin/outbox/{id}/abandon.
func (s *server) handleAdminOutboxAbandon(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		writeError(w, http.StatusNotFound, "not_found", "the notification outbox is disabled")
		return
	}
	entry, err := s.outbox.Abandon(r.Context(), chi.URLParam(r, "id"))
	s.respondOutbox(w, r, audit.ActionAbandon, entry, err)
}

func (s *server) respondOutbox(w http.ResponseWriter, r *http.Request, action audit.Action, entry outbox.Entry, err error) {
	switch {
	case err == nil:
		s.recordAudit(r.Context(), r, action, audit.ResourceNotice, entry.ID,
			fmt.Sprintf("%s after %d attempts: %s", entry.Kind, entry.Attempts, entry.Status))
		writeJSON(w, http.StatusOK, entry)
	case errors.Is(err, outboxStore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no outbox entry with that id")
	case errors.Is(err, outbox.ErrTerminal):
		writeError(w, http.StatusConflict, "terminal", err.Error())
	default:
		internalError(w, r, err)
	}
}
