package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// migrations lists all schema migrations in order. Append only; never
// edit an applied migration.
var migrations = []Migration{
	{
		Version:     1,
		Description: "identity and sessions",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "screenshots and activity periods",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
	{
		Version:     3,
		Description: "lookup indexes",
		Up:          migrationV3Up,
		Down:        migrationV3Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS users (
    id          TEXT PRIMARY KEY,
    name        TEXT,
    email       TEXT,
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id),
    mode        TEXT NOT NULL,
    project_id  TEXT,
    task        TEXT NOT NULL,
    start_ns    INTEGER NOT NULL,
    end_ns      INTEGER,
    is_active   INTEGER NOT NULL DEFAULT 1
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS sessions;
DROP TABLE IF EXISTS users;
`

const migrationV2Up = `
CREATE TABLE IF NOT EXISTS screenshots (
    id           TEXT PRIMARY KEY,
    session_id   TEXT NOT NULL REFERENCES sessions(id),
    user_id      TEXT,
    captured_ns  INTEGER NOT NULL,
    local_path   TEXT,
    thumb_path   TEXT,
    mode         TEXT,
    notes        TEXT
);

CREATE TABLE IF NOT EXISTS activity_periods (
    id              TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL REFERENCES sessions(id),
    user_id         TEXT,
    start_ns        INTEGER NOT NULL,
    end_ns          INTEGER NOT NULL,
    mode            TEXT,
    activity_score  INTEGER NOT NULL,
    is_valid        INTEGER NOT NULL,
    classification  TEXT,
    breakdown       TEXT NOT NULL,
    spike           TEXT NOT NULL,
    screenshot_id   TEXT REFERENCES screenshots(id)
);
`

const migrationV2Down = `
DROP TABLE IF EXISTS activity_periods;
DROP TABLE IF EXISTS screenshots;
`

const migrationV3Up = `
CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(is_active, start_ns);
CREATE INDEX IF NOT EXISTS idx_periods_session ON activity_periods(session_id, start_ns);
CREATE INDEX IF NOT EXISTS idx_screenshots_session ON screenshots(session_id, captured_ns);
`

const migrationV3Down = `
DROP INDEX IF EXISTS idx_screenshots_session;
DROP INDEX IF EXISTS idx_periods_session;
DROP INDEX IF EXISTS idx_sessions_active;
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	currentVersion, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// RollbackMigration rolls back the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	currentVersion, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var target *Migration
	for i := range migrations {
		if migrations[i].Version == currentVersion {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown migration version %d", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin rollback transaction: %w", err)
	}

	if _, err := tx.Exec(target.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("rollback migration %d (%s): %w", target.Version, target.Description, err)
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", target.Version); err != nil {
		tx.Rollback()
		return fmt.Errorf("unrecord migration %d: %w", target.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollback: %w", err)
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}
