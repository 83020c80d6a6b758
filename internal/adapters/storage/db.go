package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step. Version numbers are dense from 1.
type migration struct {
	version     int
	description string
	up          func(tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, description: "baseline schema", up: migrateBaseline},
	{version: 2, description: "event ordering indexes", up: migrateEventIndexes},
	{version: 3, description: "notification outbox", up: migrateOutbox},
}

// LatestSchemaVersion returns the version reached after every migration applies.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion reports the applied schema version, 0 for an unmigrated database.
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB enables WAL and foreign keys, then applies every pending migration in its own transaction.
// path names the database for logs; ":memory:" databases skip WAL.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB, path string) error {
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		slog.Info("schema_migrated", "db", path, "version", m.version, "description", m.description)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if err := m.up(tx); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
		return fmt.Errorf("migration %d: record version: %w", m.version, err)
	}
	return tx.Commit()
}

// migrateBaseline creates the account, audit and schedule snapshot tables.
// Every snapshot table is keyed by variant ("draft" or "published").
func migrateBaseline(tx *sql.Tx) error {
	schema := `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT
	);

	CREATE TABLE IF NOT EXISTS audit_event (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		category TEXT NOT NULL,
		action TEXT NOT NULL,
		severity TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		actor_email TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		resource_id TEXT NOT NULL DEFAULT '',
		resource_type TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS snapshot (
		variant TEXT PRIMARY KEY,
		week_start TEXT NOT NULL DEFAULT '',
		week_end TEXT NOT NULL DEFAULT '',
		written_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS instructor (
		variant TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		regional TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (variant, id),
		FOREIGN KEY (variant) REFERENCES snapshot(variant) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS schedule_row (
		variant TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		instructor TEXT NOT NULL,
		regional TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (variant, id),
		FOREIGN KEY (variant) REFERENCES snapshot(variant) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS event (
		variant TEXT NOT NULL,
		row_id TEXT NOT NULL,
		day_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '[]',
		time TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		modality TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (variant, row_id, id),
		FOREIGN KEY (variant, row_id) REFERENCES schedule_row(variant, id) ON DELETE CASCADE
	);
	`
	_, err := tx.Exec(schema)
	return err
}

func migrateEventIndexes(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE INDEX IF NOT EXISTS idx_event_bucket ON event (variant, row_id, day_key, position);
	CREATE INDEX IF NOT EXISTS idx_audit_event_timestamp ON audit_event (timestamp);
	`)
	return err
}

func migrateOutbox(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL,
		last_attempted_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		message_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, created_at);
	`)
	return err
}
