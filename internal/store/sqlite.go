// Package store persists sessions, activity periods, and screenshot
// records to SQLite. It implements session.Recorder; metric breakdowns
// and spike results are serialized as JSON at this boundary so the
// schema stays stable while the analyses evolve.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"monitord/internal/config"
	"monitord/internal/session"
	"monitord/internal/window"
)

var (
	// ErrNoIdentity means no local user row has been seeded yet.
	ErrNoIdentity = errors.New("store: no local identity")

	// ErrSessionNotFound means the session id matched no row.
	ErrSessionNotFound = errors.New("store: session not found")
)

// Store is the SQLite-backed recorder.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database described by cfg and runs all
// pending migrations. A "memory" store is a private in-process SQLite
// database, used by tests and the simulator.
func Open(cfg config.StorageConfig) (*Store, error) {
	var dsn string
	switch cfg.Type {
	case "memory":
		dsn = fmt.Sprintf("file::memory:?_foreign_keys=on&_busy_timeout=%d", cfg.BusyTimeoutMs)
	case "", "sqlite":
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", cfg.Path, cfg.BusyTimeoutMs)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one.
	if cfg.Type == "memory" {
		db.SetMaxOpenConns(1)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Type != "memory" {
		// Activity data is per-user; keep the file private.
		if err := os.Chmod(cfg.Path, 0o600); err != nil {
			db.Close()
			return nil, fmt.Errorf("restrict database permissions: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetIdentity upserts the local user row that sessions attribute to.
func (s *Store) SetIdentity(ctx context.Context, u session.User) error {
	if u.ID == "" {
		return ErrNoIdentity
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Email, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	return nil
}

// CurrentUser returns the most recently updated local identity.
func (s *Store) CurrentUser(ctx context.Context) (session.User, error) {
	var u session.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email FROM users ORDER BY updated_at DESC LIMIT 1",
	).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return session.User{}, ErrNoIdentity
	}
	if err != nil {
		return session.User{}, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

// CreateSession inserts a new active session row.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, mode, project_id, task, start_ns, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		sess.ID, sess.UserID, string(sess.Mode), sess.ProjectID, sess.Task, sess.StartTime.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// EndSession marks a session inactive with the given end time.
func (s *Store) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET end_ns = ?, is_active = 0 WHERE id = ?",
		at.UnixNano(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetActiveSession returns the open session, or nil when none exists.
// A crash can leave a stale active row behind; callers decide whether
// to resume or close it.
func (s *Store) GetActiveSession(ctx context.Context) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, mode, COALESCE(project_id, ''), task, start_ns
		FROM sessions WHERE is_active = 1 ORDER BY start_ns DESC LIMIT 1`)

	var sess session.Session
	var mode string
	var startNs int64
	err := row.Scan(&sess.ID, &sess.UserID, &mode, &sess.ProjectID, &sess.Task, &startNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	sess.Mode = session.Mode(mode)
	sess.StartTime = time.Unix(0, startNs).UTC()
	sess.IsActive = true
	return &sess, nil
}

// SaveWindow persists a completed window atomically: the screenshot
// record, if any, then every activity period.
func (s *Store) SaveWindow(ctx context.Context, sessionID string, w window.Completed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if w.Screenshot != nil {
		if err := insertScreenshot(ctx, tx, *w.Screenshot); err != nil {
			return err
		}
	}

	for _, p := range w.Periods {
		if err := insertPeriod(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit window: %w", err)
	}
	return nil
}

// SaveScreenshot inserts a standalone screenshot record.
func (s *Store) SaveScreenshot(ctx context.Context, shot window.Screenshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertScreenshot(ctx, tx, shot); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateActivityPeriod inserts a single period outside a window batch.
func (s *Store) CreateActivityPeriod(ctx context.Context, p window.ActivityPeriod) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPeriod(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// ListPeriods returns a session's periods ordered by start time.
func (s *Store) ListPeriods(ctx context.Context, sessionID string) ([]window.ActivityPeriod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, COALESCE(user_id, ''), start_ns, end_ns, COALESCE(mode, ''),
		       activity_score, is_valid, COALESCE(classification, ''), breakdown, spike,
		       COALESCE(screenshot_id, '')
		FROM activity_periods WHERE session_id = ? ORDER BY start_ns`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var periods []window.ActivityPeriod
	for rows.Next() {
		var p window.ActivityPeriod
		var startNs, endNs int64
		var valid int
		var breakdown, spikeJSON []byte
		if err := rows.Scan(
			&p.ID, &p.SessionID, &p.UserID, &startNs, &endNs, &p.Mode,
			&p.ActivityScore, &valid, &p.Classification, &breakdown, &spikeJSON,
			&p.ScreenshotID,
		); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		p.PeriodStart = time.Unix(0, startNs).UTC()
		p.PeriodEnd = time.Unix(0, endNs).UTC()
		p.IsValid = valid != 0
		if err := json.Unmarshal(breakdown, &p.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown for period %s: %w", p.ID, err)
		}
		if err := json.Unmarshal(spikeJSON, &p.Spike); err != nil {
			return nil, fmt.Errorf("decode spike result for period %s: %w", p.ID, err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

func insertScreenshot(ctx context.Context, tx *sql.Tx, shot window.Screenshot) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO screenshots (id, session_id, user_id, captured_ns, local_path, thumb_path, mode, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		shot.ID, shot.SessionID, shot.UserID, shot.CapturedAt.UnixNano(),
		shot.LocalPath, shot.ThumbPath, shot.Mode, shot.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert screenshot %s: %w", shot.ID, err)
	}
	return nil
}

func insertPeriod(ctx context.Context, tx *sql.Tx, p window.ActivityPeriod) error {
	breakdown, err := json.Marshal(p.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown for period %s: %w", p.ID, err)
	}
	spikeJSON, err := json.Marshal(p.Spike)
	if err != nil {
		return fmt.Errorf("encode spike result for period %s: %w", p.ID, err)
	}

	valid := 0
	if p.IsValid {
		valid = 1
	}
	var screenshotID interface{}
	if p.ScreenshotID != "" {
		screenshotID = p.ScreenshotID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO activity_periods
			(id, session_id, user_id, start_ns, end_ns, mode, activity_score, is_valid,
			 classification, breakdown, spike, screenshot_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.UserID, p.PeriodStart.UnixNano(), p.PeriodEnd.UnixNano(),
		p.Mode, p.ActivityScore, valid, p.Classification, string(breakdown), string(spikeJSON),
		screenshotID,
	)
	if err != nil {
		return fmt.Errorf("insert period %s: %w", p.ID, err)
	}
	return nil
}
