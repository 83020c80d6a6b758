package web

import (
	"context"
	"net/http"
	"time"

	"horario/internal/adapters/ics"
	"horario/internal/domain/schedule"
)

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type publishedResponse struct {
	State       schedule.State `json:"state"`
	PublishedAt time.Time      `json:"published_at,omitzero"`
}

// handlePublished handles GET /api/published. No session is required.
func (s *server) handlePublished(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publishedResponse{
		State:       s.deps.Draft.Published(),
		PublishedAt: s.deps.Draft.Status().PublishedAt,
	})
}

// handlePublishedICS handles GET /api/published/schedule.ics
// POST: the feed holds the published snapshot's events inside its active week
func (s *server) handlePublishedICS(w http.ResponseWriter, r *http.Request) {
	body := ics.Export(s.deps.Draft.Published(), ics.Options{
		Location: s.deps.Location,
		Now:      s.deps.Now(),
		Name:     "Horario de formación",
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="horario.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleHealthz handles GET /healthz
func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "storage", "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
