package account_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"horario/internal/adapters/storage"
	store "horario/internal/adapters/storage/account"
	domain "horario/internal/domain/account"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB: %v", err)
	}
	return store.NewSQLiteStore(db)
}

// TestSQLiteStore_SaveAndGet verifies insert, update and lookups.
func TestSQLiteStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	acct := domain.Account{ID: "a1", Email: "Planner@Example.com", PasswordHash: "hash", Role: domain.RoleAdmin, CreatedAt: created}
	if err := s.Save(ctx, acct); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.GetByEmail(ctx, "planner@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != "a1" || !got.CreatedAt.Equal(created) || !got.LockedUntil.IsZero() {
		t.Errorf("got %+v", got)
	}

	got.FailedLogins = 5
	got.LockedUntil = created.Add(15 * time.Minute)
	if err := s.Save(ctx, got); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	again, err := s.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if again.FailedLogins != 5 || !again.LockedUntil.Equal(got.LockedUntil) {
		t.Errorf("update not persisted: %+v", again)
	}

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

// TestSQLiteStore_NotFound verifies the sentinel error.
func TestSQLiteStore_NotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
