package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	accountStore "horario/internal/adapters/storage/account"
	"horario/internal/domain/account"
	"horario/internal/domain/audit"
)

// AccountStore is what the account orchestrators need. The account SQLite store satisfies it.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// AccountDeps holds the collaborators shared by sign-in and account maintenance.
type AccountDeps struct {
	Store      AccountStore
	Audit      AuditRecorder // optional
	GenerateID func() string // nil uses uuid
	Now        func() time.Time
}

func (d AccountDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d AccountDeps) newID() string {
	if d.GenerateID != nil {
		return d.GenerateID()
	}
	return uuid.New().String()
}

var (
	ErrEmailAlreadyExists   = errors.New("an account with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountLocked        = errors.New("account is locked due to too many failed attempts")
	ErrCurrentPasswordWrong = errors.New("current password is incorrect")
	ErrNewPasswordSame      = errors.New("new password must be different from current password")
	ErrMissingPasswordInput = errors.New("all fields are required")
)

// CreateAccountInput carries input for ExecuteCreateAccount.
type CreateAccountInput struct {
	Email    string
	Password string
	Role     string
}

// ExecuteCreateAccount adds a planner or viewer account.
// PRE: password >= account.MinPasswordLength, role is admin or viewer
// POST: returns the new id; the stored account carries only the bcrypt hash
// INVARIANT: emails are unique, compared case-insensitively
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps AccountDeps) (string, error) {
	email := strings.TrimSpace(input.Email)
	_, err := deps.Store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return "", ErrEmailAlreadyExists
	case !errors.Is(err, accountStore.ErrNotFound):
		return "", fmt.Errorf("look up %s: %w", email, err)
	}

	acct := account.Account{
		ID:        deps.newID(),
		Email:     email,
		Role:      input.Role,
		CreatedAt: deps.now().UTC(),
	}
	if err := acct.Validate(); err != nil {
		return "", err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return "", err
	}
	if err := deps.Store.Save(ctx, acct); err != nil {
		return "", err
	}

	slog.Info("auth_event", "event", "account_created", "email", email, "role", acct.Role)
	recordAudit(ctx, deps.Audit, audit.System(audit.CategoryAccount, audit.ActionCreate).
		At(deps.now()).
		WithResource(audit.ResourceAccount, acct.ID).
		WithDescription(acct.Role+" account for "+email))
	return acct.ID, nil
}

// ExecuteSeedAdmin creates the configured admin when the database has no accounts.
// An empty email or password skips seeding.
// PRE: database is migrated
func ExecuteSeedAdmin(ctx context.Context, deps AccountDeps, email, password string) error {
	if email == "" || password == "" {
		slog.Info("auth_event", "event", "admin_seed_skipped", "reason", "not_configured")
		return nil
	}
	count, err := deps.Store.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: email, Password: password, Role: account.RoleAdmin}, deps); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return nil
}

// LoginInput carries the credentials and where they came from.
type LoginInput struct {
	Email    string
	Password string
	IP       string
	Agent    string
}

// LoginResult is what the session needs to remember.
type LoginResult struct {
	AccountID string
	Email     string
	Role      string
}

// ExecuteLogin checks credentials.
// POST: success clears the failed-login counter; a wrong password bumps it and may lock the account
// INVARIANT: a locked account is refused even with the right password
func ExecuteLogin(ctx context.Context, input LoginInput, deps AccountDeps) (LoginResult, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	now := deps.now()

	acct, err := deps.Store.GetByEmail(ctx, email)
	if errors.Is(err, accountStore.ErrNotFound) {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "not_found")
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("look up %s: %w", email, err)
	}

	if acct.IsLocked(now) {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "locked")
		return LoginResult{}, ErrAccountLocked
	}

	if err := acct.CheckPassword(input.Password); err != nil {
		acct.RecordFailedLogin(now)
		if err := deps.Store.Save(ctx, acct); err != nil {
			slog.Error("auth_event_save_failed", "email", email, "err", err)
		}
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "wrong_password", "failed_logins", acct.FailedLogins)
		if acct.IsLocked(now) {
			recordAudit(ctx, deps.Audit, audit.NewEvent(acct.ID, acct.Email, acct.Role, audit.CategorySecurity, audit.ActionLogin).
				At(now).
				WithSeverity(audit.SeverityWarning).
				WithResource(audit.ResourceAccount, acct.ID).
				WithRequest(input.IP, input.Agent).
				WithDescription(fmt.Sprintf("locked until %s after %d failed logins", acct.LockedUntil.Format(time.RFC3339), acct.FailedLogins)))
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if acct.FailedLogins > 0 {
		acct.ResetFailedLogins()
		if err := deps.Store.Save(ctx, acct); err != nil {
			slog.Error("auth_event_save_failed", "email", email, "err", err)
		}
	}

	slog.Info("auth_event", "event", "login_success", "email", email, "role", acct.Role)
	recordAudit(ctx, deps.Audit, audit.NewEvent(acct.ID, acct.Email, acct.Role, audit.CategoryAccount, audit.ActionLogin).
		At(now).
		WithResource(audit.ResourceAccount, acct.ID).
		WithRequest(input.IP, input.Agent))

	return LoginResult{AccountID: acct.ID, Email: acct.Email, Role: acct.Role}, nil
}

// ChangePasswordInput carries input for ExecuteChangePassword.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
}

// ExecuteChangePassword replaces the password after checking the current one.
// The caller revokes the account's other sessions.
// POST: the password is updated and the failed-login counter cleared
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps AccountDeps) error {
	if input.AccountID == "" || input.CurrentPassword == "" || input.NewPassword == "" {
		return ErrMissingPasswordInput
	}

	acct, err := deps.Store.GetByID(ctx, input.AccountID)
	if err != nil {
		return err
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return ErrNewPasswordSame
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return err
	}
	acct.ResetFailedLogins()
	if err := deps.Store.Save(ctx, acct); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "password_changed", "account_id", input.AccountID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(acct.ID, acct.Email, acct.Role, audit.CategoryAccount, audit.ActionPasswordChange).
		At(deps.now()).
		WithResource(audit.ResourceAccount, acct.ID).
		WithDescription("password changed"))
	return nil
}
