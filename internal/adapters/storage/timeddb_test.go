package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"horario/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTimedDB_RecordsEachStatement verifies exec, query and query-row all record a labelled entry.
func TestTimedDB_RecordsEachStatement(t *testing.T) {
	ctx := context.Background()
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	labels := map[string]int{}
	for _, s := range snap.SlowestQueries {
		labels[s.Path] = s.Count
	}
	if labels["INSERT test"] != 1 || labels["SELECT test"] != 2 {
		t.Errorf("labels = %v, want INSERT test:1 SELECT test:2", labels)
	}
}

// TestTimedDB_BeginTx verifies transactions pass through and are recorded.
func TestTimedDB_BeginTx(t *testing.T) {
	ctx := context.Background()
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	tx, err := tdb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO test (id, val) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("tx exec: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1 (tx statements are not wrapped)", collector.TotalRecorded())
	}
}

// TestTimedDB_NilCollector verifies the wrapper works without a collector.
func TestTimedDB_NilCollector(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, time.Second)
	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES ('1', 'x')"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
}

// TestTimedDB_ErrorPassthrough verifies driver errors are returned untouched.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	ctx := context.Background()
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	if _, err := tdb.ExecContext(ctx, "INSERT INTO missing (id) VALUES (1)"); err == nil {
		t.Error("expected error for missing table")
	}
	if _, err := tdb.QueryContext(ctx, "SELECT nope FROM test"); err == nil {
		t.Error("expected error for missing column")
	}
	var v string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = 'absent'").Scan(&v); err != sql.ErrNoRows {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("failed statements must still be recorded, got %d", collector.TotalRecorded())
	}
}

// TestTimedDB_ConcurrentExec verifies concurrent use through the wrapper.
func TestTimedDB_ConcurrentExec(t *testing.T) {
	ctx := context.Background()
	collector := perf.NewCollector(1000)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var count int
			_ = tdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM test").Scan(&count)
		}(i)
	}
	wg.Wait()
	if collector.TotalRecorded() != 20 {
		t.Errorf("TotalRecorded = %d, want 20", collector.TotalRecorded())
	}
}

// TestQueryLabel verifies statement labelling.
func TestQueryLabel(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"INSERT INTO event (variant, id) VALUES (?, ?)", "INSERT event"},
		{"select id from schedule_row where variant = ?", "SELECT schedule_row"},
		{"DELETE FROM snapshot WHERE variant = ?", "DELETE snapshot"},
		{"UPDATE account SET role = ?", "UPDATE account"},
		{"PRAGMA foreign_keys=ON", "PRAGMA"},
		{"   ", "EMPTY"},
	}
	for _, tt := range tests {
		if got := QueryLabel(tt.query); got != tt.want {
			t.Errorf("QueryLabel(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}
