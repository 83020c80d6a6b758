package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"horario/internal/adapters/http/middleware"
	"horario/internal/application/orchestrators"
	"horario/internal/domain/account"
	"horario/internal/domain/audit"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"account_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	CSRFToken     string `json:"csrf_token,omitempty"`
}

// handleLogin handles POST /login with a JSON or form body.
// PRE: body carries email and password
// POST: on success a session cookie is set and the account is returned
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !decodeOrReject(w, r, &req) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid form submission")
			return
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       r.RemoteAddr,
		Agent:    r.UserAgent(),
	}, s.accountDeps())
	switch {
	case errors.Is(err, orchestrators.ErrInvalidCredentials):
		slog.Info("auth_event", "event", "login_failed", "email", req.Email, "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
		return
	case errors.Is(err, orchestrators.ErrAccountLocked):
		slog.Warn("auth_event", "event", "login_locked", "email", req.Email, "ip", r.RemoteAddr)
		writeError(w, http.StatusLocked, "locked", err.Error())
		return
	case err != nil:
		internalError(w, r, err)
		return
	}

	token, err := s.sessions.Create(result.AccountID, result.Email, result.Role)
	if err != nil {
		internalError(w, r, err)
		return
	}
	middleware.SetSessionCookie(w, token, s.secure)
	slog.Info("auth_event", "event", "login", "account_id", result.AccountID, "role", result.Role)
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		AccountID:     result.AccountID,
		Email:         result.Email,
		Role:          result.Role,
	})
}

// handleLogout handles POST /logout
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		s.sessions.Delete(token)
	}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		slog.Info("auth_event", "event", "logout", "account_id", sess.AccountID)
		s.recordAudit(r.Context(), r, audit.ActionLogout, audit.ResourceAccount, sess.AccountID, "signed out")
	}
	middleware.ClearSessionCookie(w, s.secure)
	w.WriteHeader(http.StatusNoContent)
}

// handleSession handles GET /api/session. It also hands out the CSRF token
// needed for multipart uploads.
func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{CSRFToken: csrf.Token(r)}
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		resp.Authenticated = true
		resp.AccountID = sess.AccountID
		resp.Email = sess.Email
		resp.Role = sess.Role
	}
	writeJSON(w, http.StatusOK, resp)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword handles POST /api/account/password.
// POST: on success every other session of the account is revoked
func (s *server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req changePasswordRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		AccountID:       sess.AccountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}, s.accountDeps())
	switch {
	case errors.Is(err, orchestrators.ErrMissingPasswordInput),
		errors.Is(err, orchestrators.ErrNewPasswordSame),
		errors.Is(err, account.ErrPasswordTooShort),
		errors.Is(err, account.ErrEmptyPassword):
		writeError(w, http.StatusUnprocessableEntity, "invalid", err.Error())
		return
	case errors.Is(err, orchestrators.ErrCurrentPasswordWrong):
		writeError(w, http.StatusForbidden, "wrong_password", err.Error())
		return
	case err != nil:
		internalError(w, r, err)
		return
	}

	revoked := s.sessions.DeleteForAccount(sess.AccountID, middleware.SessionToken(r))
	slog.Info("auth_event", "event", "password_changed", "account_id", sess.AccountID, "sessions_revoked", revoked)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) accountDeps() orchestrators.AccountDeps {
	return orchestrators.AccountDeps{Store: s.deps.Accounts, Audit: s.deps.Audit, Now: s.deps.Now}
}
