package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainAccount "horario/internal/domain/account"
)

func storeAt(now *time.Time) *SessionStore {
	return NewSessionStore(SessionOptions{
		TTL:  8 * time.Hour,
		Idle: time.Hour,
		Now:  func() time.Time { return *now },
	})
}

// TestSessionStore_Expiry verifies both the idle timeout and the absolute lifetime.
func TestSessionStore_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ss := storeAt(&now)

	token, err := ss.Create("acct-1", "planner@example.com", domainAccount.RoleAdmin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Activity every 50 minutes keeps the session alive past the idle timeout.
	for i := 0; i < 9; i++ {
		now = now.Add(50 * time.Minute)
		if _, ok := ss.Get(token); !ok {
			t.Fatalf("session dropped after %d active intervals", i+1)
		}
	}

	// 7.5h in and recently active, so only the 8h lifetime can end it.
	now = now.Add(40 * time.Minute)
	if _, ok := ss.Get(token); ok {
		t.Error("session outlived its absolute lifetime")
	}
	if ss.Len() != 0 {
		t.Errorf("Len = %d, want the expired session removed", ss.Len())
	}

	idle, _ := ss.Create("acct-1", "planner@example.com", domainAccount.RoleAdmin)
	now = now.Add(61 * time.Minute)
	if _, ok := ss.Get(idle); ok {
		t.Error("idle session still valid")
	}
}

// TestSessionStore_CreatePrunes verifies signing in clears out expired sessions.
func TestSessionStore_CreatePrunes(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ss := storeAt(&now)
	for i := 0; i < 3; i++ {
		if _, err := ss.Create("acct-1", "a@example.com", domainAccount.RoleViewer); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(2 * time.Hour)
	if _, err := ss.Create("acct-2", "b@example.com", domainAccount.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if ss.Len() != 1 {
		t.Errorf("Len = %d, want only the new session", ss.Len())
	}
}

// TestSessionStore_DeleteForAccount verifies other sessions of the account are revoked.
func TestSessionStore_DeleteForAccount(t *testing.T) {
	ss := NewSessionStore(SessionOptions{})
	keep, _ := ss.Create("acct-1", "a@example.com", domainAccount.RoleAdmin)
	other, _ := ss.Create("acct-1", "a@example.com", domainAccount.RoleAdmin)
	stranger, _ := ss.Create("acct-2", "b@example.com", domainAccount.RoleViewer)

	if n := ss.DeleteForAccount("acct-1", keep); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, ok := ss.Get(keep); !ok {
		t.Error("kept session was removed")
	}
	if _, ok := ss.Get(other); ok {
		t.Error("other session survived")
	}
	if _, ok := ss.Get(stranger); !ok {
		t.Error("another account's session was removed")
	}
}

// TestRequireRole verifies 401 without a session, 403 with the wrong role and pass-through otherwise.
func TestRequireRole(t *testing.T) {
	ss := NewSessionStore(SessionOptions{})
	admin, _ := ss.Create("acct-1", "a@example.com", domainAccount.RoleAdmin)
	viewer, _ := ss.Create("acct-2", "v@example.com", domainAccount.RoleViewer)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := GetSessionFromContext(r.Context()); !ok || s.AccountID != "acct-1" {
			t.Errorf("session in handler = %+v, %v", s, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := Auth(ss)(RequireRole(domainAccount.RoleAdmin)(inner))

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"unknown token", "nope", http.StatusUnauthorized},
		{"viewer", viewer, http.StatusForbidden},
		{"admin", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/draft/save", nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.token})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
