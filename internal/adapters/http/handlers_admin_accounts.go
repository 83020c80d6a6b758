package web

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"horario/internal/application/orchestrators"
	"horario/internal/domain/account"
	"horario/internal/domain/audit"
)

// accountView is an account without its password hash.
type accountView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Locked    bool      `json:"locked"`
}

// handleAdminAccounts handles GET /api/admin/accounts, sorted by email.
func (s *server) handleAdminAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	now := s.deps.Now()
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{ID: a.ID, Email: a.Email, Role: a.Role, CreatedAt: a.CreatedAt, Locked: a.IsLocked(now)})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Email < views[j].Email })
	writeJSON(w, http.StatusOK, views)
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleCreateAccount handles POST /api/admin/accounts.
// POST: 201 with the new account; 409 when the email is taken
func (s *server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	deps := s.accountDeps()
	deps.Audit = nil // recorded below with the acting admin
	id, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, deps)
	switch {
	case errors.Is(err, orchestrators.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, "exists", err.Error())
		return
	case errors.Is(err, account.ErrEmptyEmail),
		errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrEmailTooLong),
		errors.Is(err, account.ErrInvalidRole),
		errors.Is(err, account.ErrEmptyPassword),
		errors.Is(err, account.ErrPasswordTooShort):
		writeError(w, http.StatusUnprocessableEntity, "invalid", err.Error())
		return
	case err != nil:
		internalError(w, r, err)
		return
	}

	acct, err := s.deps.Accounts.GetByID(r.Context(), id)
	if err != nil {
		internalError(w, r, err)
		return
	}
	s.recordAudit(r.Context(), r, audit.ActionCreate, audit.ResourceAccount, id, acct.Role+" account for "+acct.Email)
	writeJSON(w, http.StatusCreated, accountView{ID: acct.ID, Email: acct.Email, Role: acct.Role, CreatedAt: acct.CreatedAt})
}
