package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"horario/internal/application/draft"
	"horario/internal/logging"
)

// streamHeartbeat keeps idle proxies from closing the status stream.
const streamHeartbeat = 25 * time.Second

// handleDraftStream handles GET /api/draft/stream as server-sent events.
// The current status is sent first, then one "status" event per machine notification.
// A slow client only ever sees the latest status; intermediate ones are dropped.
func (s *server) handleDraftStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	updates := make(chan draft.Status, 1)
	cancel := s.deps.Draft.Subscribe(func(st draft.Status) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	log := logging.FromContext(r.Context())
	log.Debug("draft_stream_open")
	defer log.Debug("draft_stream_closed")

	send := func(st draft.Status) bool {
		data, err := json.Marshal(st)
		if err != nil {
			log.Error("draft_stream_encode_failed", "error", err.Error())
			return false
		}
		if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(s.deps.Draft.Status()) {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case st := <-updates:
			if !send(st) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
