package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type sessionKey struct{}

// Session lifetimes.
const (
	DefaultSessionTTL  = 24 * time.Hour  // from sign-in, regardless of activity
	DefaultIdleTimeout = 2 * time.Hour   // since the last authenticated request
	sessionCookieName  = "horario_session"
)

// Session is a signed-in planner or viewer.
type Session struct {
	AccountID string
	Email     string
	Role      string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SessionOptions configures a SessionStore. Zero values use the defaults.
type SessionOptions struct {
	TTL  time.Duration
	Idle time.Duration
	Now  func() time.Time
}

// SessionStore keeps sessions in memory. A restart signs everyone out.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	idle     time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store with the given lifetimes.
func NewSessionStore(opts SessionOptions) *SessionStore {
	ss := &SessionStore{
		sessions: make(map[string]Session),
		ttl:      opts.TTL,
		idle:     opts.Idle,
		now:      opts.Now,
	}
	if ss.ttl <= 0 {
		ss.ttl = DefaultSessionTTL
	}
	if ss.idle <= 0 {
		ss.idle = DefaultIdleTimeout
	}
	if ss.now == nil {
		ss.now = time.Now
	}
	return ss
}

// Create stores a new session and returns its token. Expired sessions are pruned first.
// PRE: accountID, email, role are non-empty
func (ss *SessionStore) Create(accountID, email, role string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pruneLocked(now)
	ss.sessions[token] = Session{
		AccountID: accountID,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		LastSeen:  now,
	}
	return token, nil
}

// Get returns the live session for token and marks it as seen.
// POST: an expired session is removed and reported missing
func (ss *SessionStore) Get(token string) (Session, bool) {
	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[token]
	if !ok {
		return Session{}, false
	}
	if ss.expired(s, now) {
		delete(ss.sessions, token)
		return Session{}, false
	}
	s.LastSeen = now
	ss.sessions[token] = s
	return s, true
}

// Delete removes the session for token.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// DeleteForAccount removes every session belonging to accountID except keep.
// POST: returns the number of sessions removed
func (ss *SessionStore) DeleteForAccount(accountID, keep string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for token, s := range ss.sessions {
		if s.AccountID == accountID && token != keep {
			delete(ss.sessions, token)
			n++
		}
	}
	return n
}

// Len is the number of stored sessions, expired ones included until pruned.
func (ss *SessionStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

func (ss *SessionStore) expired(s Session, now time.Time) bool {
	return now.Sub(s.CreatedAt) > ss.ttl || now.Sub(s.LastSeen) > ss.idle
}

func (ss *SessionStore) pruneLocked(now time.Time) {
	for token, s := range ss.sessions {
		if ss.expired(s, now) {
			delete(ss.sessions, token)
		}
	}
}

// Auth attaches the cookie's session to the request context.
// Anonymous requests pass through; RequireRole rejects them.
func Auth(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := SessionToken(r); token != "" {
				if s, ok := sessions.Get(token); ok {
					r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, s))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole answers 401 without a session and 403 when the session's role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := GetSessionFromContext(r.Context())
			switch {
			case !ok:
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			case !allowed[s.Role]:
				denyJSON(w, http.StatusForbidden, "forbidden", "your role cannot do this")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func denyJSON(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}

// GetSessionFromContext returns the session Auth attached, if any.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// SessionToken returns the raw session cookie value, if any.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie sets the session cookie. secure is false only for plain-HTTP development.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, sessionCookie(token, secure, int(DefaultSessionTTL/time.Second)))
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, sessionCookie("", secure, -1))
}

func sessionCookie(value string, secure bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   maxAge,
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
