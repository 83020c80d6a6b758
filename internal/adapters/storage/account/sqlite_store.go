package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"horario/internal/adapters/storage"
	domain "horario/internal/domain/account"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectAccount = "SELECT id, email, password_hash, role, created_at, failed_logins, locked_until FROM account"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new AccountStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return s.getOne(ctx, selectAccount+" WHERE id = ?", id)
}

// GetByEmail retrieves an Account by email, case-insensitively.
// PRE: email is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.getOne(ctx, selectAccount+" WHERE lower(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLiteStore) getOne(ctx context.Context, query string, arg string) (domain.Account, error) {
	entity, err := scanAccount(s.db.QueryRowContext(ctx, query, arg).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: %s", ErrNotFound, arg)
	}
	return entity, err
}

// Save persists an Account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	var lockedUntil any
	if !entity.LockedUntil.IsZero() {
		lockedUntil = entity.LockedUntil.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (id, email, password_hash, role, created_at, failed_logins, locked_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email,
		   password_hash=excluded.password_hash,
		   role=excluded.role,
		   failed_logins=excluded.failed_logins,
		   locked_until=excluded.locked_until`,
		entity.ID,
		entity.Email,
		entity.PasswordHash,
		entity.Role,
		entity.CreatedAt.UTC().Format(timeLayout),
		entity.FailedLogins,
		lockedUntil,
	)
	return err
}

// List returns every account, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, selectAccount+" ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt string
	var lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&entity.Role,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if lockedUntil.Valid && lockedUntil.String != "" {
		entity.LockedUntil, _ = time.Parse(timeLayout, lockedUntil.String)
	}
	return entity, nil
}
