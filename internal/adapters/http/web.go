package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"horario/internal/adapters/email"
	"horario/internal/adapters/http/middleware"
	"horario/internal/adapters/http/perf"
	accountStore "horario/internal/adapters/storage/account"
	auditStore "horario/internal/adapters/storage/audit"
	outboxStore "horario/internal/adapters/storage/outbox"
	"horario/internal/application/draft"
	"horario/internal/application/orchestrators"
	domainAccount "horario/internal/domain/account"
	"horario/internal/domain/schedule"
)

// maxImportBytes caps an uploaded import file.
const maxImportBytes = 5 << 20

// Deps holds the collaborators the handlers use.
type Deps struct {
	Draft     *draft.Machine
	Accounts  accountStore.Store
	Audit     auditStore.Store
	Collector *perf.Collector
	Pinger    Pinger // optional; checked by /healthz

	Sender           email.Sender // optional; nil disables publish notifications
	NotifyRecipients []string
	NotifyFrom       string
	Outbox           outboxStore.Store // optional; queues notifications the sender rejected

	Location *time.Location   // zone for the ics feed; nil means UTC
	Palette  *schedule.Palette // colors for manually added events; nil picks random fallbacks
	Now      func() time.Time
}

// Options configures the middleware stack.
type Options struct {
	CSRFKey            []byte // 32 bytes; nil disables CSRF protection
	SecureCookies      bool
	TrustedOrigins     []string
	RateLimitPerSecond int           // per-IP limit; 0 disables
	SlowRequest        time.Duration // zero uses middleware.DefaultSlowRequest
}

// server carries the dependencies shared by every handler.
type server struct {
	deps     Deps
	sessions *middleware.SessionStore
	secure   bool
	outbox   *orchestrators.OutboxProcessor // nil without Outbox and Sender
}

// NewMux wires HTTP handlers for the app.
// POST: the returned handler serves the public, viewer and admin routes behind
// request id, real ip, timing, recovery, rate limit, session, CSRF and security headers
func NewMux(d Deps, opts Options) http.Handler {
	return newServer(d, opts).handler(opts)
}

func newServer(d Deps, opts Options) *server {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Palette == nil {
		d.Palette = schedule.NewPalette(nil)
	}
	s := &server{
		deps:     d,
		sessions: middleware.NewSessionStore(middleware.SessionOptions{Now: d.Now}),
		secure:   opts.SecureCookies,
	}
	if d.Outbox != nil && d.Sender != nil {
		s.outbox = orchestrators.NewOutboxProcessor(d.Outbox, d.Sender, orchestrators.OutboxOptions{Now: d.Now})
	}
	return s
}

func (s *server) handler(opts Options) http.Handler {
	r := chi.NewRouter()
	s.routes(r)

	stack := []func(http.Handler) http.Handler{middleware.SecurityHeaders}
	if opts.CSRFKey != nil {
		stack = append(stack, middleware.CSRF(opts.CSRFKey, middleware.CSRFOptions{
			Secure:         opts.SecureCookies,
			TrustedOrigins: opts.TrustedOrigins,
		}))
	}
	stack = append(stack, middleware.Auth(s.sessions))
	if opts.RateLimitPerSecond > 0 {
		stack = append(stack, middleware.RateLimit(middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second)))
	}
	stack = append(stack,
		chimw.Recoverer,
		middleware.Timing(middleware.TimingOptions{Collector: s.deps.Collector, SlowRequest: opts.SlowRequest}),
		chimw.RealIP,
		chimw.RequestID,
	)

	// Outermost last: RequestID -> RealIP -> Timing -> Recoverer -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> router
	return middleware.Chain(r, stack...)
}

func (s *server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealthz)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/published", s.handlePublished)
		r.Get("/published/schedule.ics", s.handlePublishedICS)

		// Signed-in readers
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domainAccount.RoleAdmin, domainAccount.RoleViewer))
			r.Get("/draft", s.handleDraft)
			r.Get("/draft/status", s.handleDraftStatus)
			r.Get("/draft/stream", s.handleDraftStream)
			r.Post("/account/password", s.handleChangePassword)
		})

		// Editors
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domainAccount.RoleAdmin))

			r.Post("/draft/save", s.handleSave)
			r.Post("/draft/publish", s.handlePublish)
			r.Post("/draft/import", s.handleImport)
			r.Post("/draft/duplicates/remove", s.handleRemoveDuplicates)
			r.Post("/draft/integrity", s.handleIntegrity)

			r.Put("/draft/week", s.handleSetWeek)
			r.Post("/draft/week/next", s.handleAdvanceWeek)
			r.Post("/draft/week/prev", s.handleRetreatWeek)
			r.Post("/draft/week/clear", s.handleClearWeek)

			r.Post("/instructors", s.handleCreateInstructor)
			r.Patch("/instructors/{id}", s.handleUpdateInstructor)
			r.Delete("/instructors/{id}", s.handleDeleteInstructor)

			r.Post("/rows/{rowID}/events", s.handleCreateEvent)
			r.Put("/rows/{rowID}/events/{eventID}", s.handleUpdateEvent)
			r.Delete("/rows/{rowID}/events/{eventID}", s.handleDeleteEvent)

			r.Get("/admin/audit", s.handleAdminAudit)
			r.Get("/admin/perf", s.handleAdminPerf)
			r.Get("/admin/accounts", s.handleAdminAccounts)
			r.Post("/admin/accounts", s.handleCreateAccount)
			r.Get("/admin/outbox", s.handleAdminOutbox)
			r.Post("/admin/outbox/{id}/retry", s.handleAdminOutboxRetry)
			r.Post("/admin/outbox/{id}/abandon", s.handleAdminOutboxAbandon)
		})
	})
}
