package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"horario/internal/adapters/http/perf"
	"horario/internal/logging"
)

// DefaultSlowRequest is used when TimingOptions.SlowRequest is zero.
const DefaultSlowRequest = 200 * time.Millisecond

// StreamPath is the server-sent status stream, which Timing does not measure.
const StreamPath = "/api/draft/stream"

// TimingOptions configures Timing.
type TimingOptions struct {
	Collector   *perf.Collector // nil records nothing
	SlowRequest time.Duration   // requests at or above it log at WARN
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader stores code and passes it on.
// POST: status == code
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so the status stream is not buffered.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

var statusWriters = sync.Pool{New: func() any { return &statusWriter{} }}

// Timing measures every request except the status stream.
// Requests are grouped by route pattern, so /api/rows/4/events/e1 and
// /api/rows/9/events/e2 share the entry "PUT /api/rows/{rowID}/events/{eventID}".
// Requests that match no route are grouped under their method alone.
// POST: one perf.KindRequest entry per measured request when a collector is set
func Timing(opts TimingOptions) func(http.Handler) http.Handler {
	slow := opts.SlowRequest
	if slow <= 0 {
		slow = DefaultSlowRequest
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == StreamPath {
				next.ServeHTTP(w, r)
				return
			}

			// The router fills a route context it finds on the request instead of making its own.
			rctx := chi.RouteContext(r.Context())
			if rctx == nil {
				rctx = chi.NewRouteContext()
				r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
			}

			start := time.Now()
			sw := statusWriters.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				elapsed := time.Since(start)
				route := rctx.RoutePattern()
				if route == "" {
					route = "unmatched"
				}
				label := r.Method + " " + route

				logger := logging.FromContext(r.Context())
				attrs := []any{"method", r.Method, "route", route, "path", r.URL.Path, "status", sw.status, "duration_ms", float64(elapsed.Microseconds()) / 1000}
				if elapsed >= slow {
					logger.Warn("slow_request", attrs...)
				} else {
					logger.Debug("request", attrs...)
				}

				if opts.Collector != nil {
					opts.Collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       label,
						StatusCode: sw.status,
						DurationMs: float64(elapsed.Microseconds()) / 1000,
						Timestamp:  start,
					})
				}

				sw.ResponseWriter = nil
				statusWriters.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
