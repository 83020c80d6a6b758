package middleware

import (
	"log/slog"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/csrf"
)

// visitorIdle is how long an IP may stay quiet before its bucket is forgotten.
const visitorIdle = 5 * time.Minute

// RateLimiter is a per-IP token bucket. Idle buckets are swept during Allow.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      int           // tokens per interval
	interval  time.Duration // refill interval
	now       func() time.Time
	lastSweep time.Time
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter allows rate requests per interval and IP.
// PRE: rate > 0, interval > 0
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		interval: interval,
		now:      time.Now,
	}
}

// Allow spends one token from ip's bucket.
// POST: false once the bucket is empty; it refills by rate every interval
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > visitorIdle {
		for addr, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorIdle {
				delete(rl.visitors, addr)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastSeen: now}
		return true
	}

	if periods := int(now.Sub(v.lastSeen) / rl.interval); periods > 0 {
		v.tokens = min(v.tokens+periods*rl.rate, rl.rate)
		v.lastSeen = v.lastSeen.Add(time.Duration(periods) * rl.interval)
	}
	if v.tokens <= 0 {
		slog.Warn("rate_limit_exceeded", "ip", ip)
		return false
	}
	v.tokens--
	return true
}

// tracked is the number of IPs with a live bucket.
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// RateLimit returns middleware that limits requests per client IP.
// Mount it after chi's RealIP so RemoteAddr carries the forwarded address.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				denyJSON(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeaders adds OWASP recommended headers.
// The service only serves JSON, SSE and ics, so nothing is allowed to load.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// CSRFOptions configures the CSRF middleware.
type CSRFOptions struct {
	Secure         bool     // cookie Secure flag; false only for plain-HTTP development
	TrustedOrigins []string // extra origins allowed to post, e.g. "localhost:8080"
}

// CSRF returns a handler that protects against CSRF attacks.
// authKey must be 32 bytes.
// Requests whose body type a cross-site HTML form cannot produce (JSON, CSV)
// are exempt, since browsers preflight them.
func CSRF(authKey []byte, opts CSRFOptions) func(http.Handler) http.Handler {
	csrfProtect := csrf.Protect(
		authKey,
		csrf.Secure(opts.Secure),
		csrf.Path("/"),
		csrf.TrustedOrigins(opts.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("csrf_rejected", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			denyJSON(w, http.StatusForbidden, "csrf", "invalid or missing CSRF token")
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if csrfExempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// formContentTypes are the body types a cross-site form can submit without a preflight.
var formContentTypes = map[string]bool{
	"":                                  true,
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"text/plain":                        true,
}

func csrfExempt(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return !formContentTypes[mediaType]
}

// Chain wraps h with each middleware in turn, so the last one listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}
