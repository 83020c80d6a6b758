package web

import (
	"net/http"
	"strconv"
	"time"

	auditStore "horario/internal/adapters/storage/audit"
	auditDomain "horario/internal/domain/audit"
)

// handleAdminAudit handles GET /api/admin/audit.
// Query: category, action, resource, actor_id, since (RFC3339), limit (1..1000, default 100).
// POST: Returns events newest first
func (s *server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeJSON(w, http.StatusOK, []auditDomain.Event{})
		return
	}

	q := r.URL.Query()
	filter := auditStore.Filter{}
	if category := q.Get("category"); category != "" {
		cat := auditDomain.Category(category)
		filter.Category = &cat
	}
	if action := q.Get("action"); action != "" {
		act := auditDomain.Action(action)
		filter.Action = &act
	}
	if resource := q.Get("resource"); resource != "" {
		res := auditDomain.Resource(resource)
		filter.Resource = &res
	}
	if actorID := q.Get("actor_id"); actorID != "" {
		filter.ActorID = &actorID
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = t
	}

	// Parse limit, default to 100
	limit := 100
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	events, err := s.deps.Audit.List(r.Context(), filter, limit)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if events == nil {
		events = []auditDomain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleAdminPerf handles GET /api/admin/perf.
// Query: window (Go duration, default 15m), top (default 10).
func (s *server) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		writeError(w, http.StatusNotFound, "not_found", "performance collection is disabled")
		return
	}
	window := 15 * time.Minute
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "window must be a positive duration like 15m")
			return
		}
		window = d
	}
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			top = n
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Collector.Snapshot(time.Now().Add(-window), top))
}
