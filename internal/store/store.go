// Package store provides SQLite-backed local persistence for tasknet:
// an offline snapshot of the last fetched task graph, and the per-user
// dashboard-last-seen timestamps that gate the welcome overlay.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/tasknet/internal/models"
	_ "modernc.org/sqlite"
)

// DashboardInterval is how long a user can stay away before the welcome
// dashboard shows again.
const DashboardInterval = time.Hour

// Store provides access to the tasknet local cache database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode so a read during a snapshot write does not block
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_snapshot (
		id INTEGER PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dependency_snapshot (
		id INTEGER PRIMARY KEY,
		source_task INTEGER NOT NULL,
		target_task INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dashboard_seen (
		username TEXT PRIMARY KEY,
		last_seen DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Snapshot cache ---

// SaveSnapshot replaces the cached task graph wholesale. Tasks are
// stored as JSON payloads; the snapshot is a warm-start convenience, not
// a source of truth, so there is no incremental diffing.
func (s *Store) SaveSnapshot(tasks []models.Task, deps []models.Dependency) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_snapshot`); err != nil {
		return fmt.Errorf("clear task snapshot: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM dependency_snapshot`); err != nil {
		return fmt.Errorf("clear dependency snapshot: %w", err)
	}

	now := time.Now().UTC()
	for i := range tasks {
		payload, err := json.Marshal(&tasks[i])
		if err != nil {
			return fmt.Errorf("marshal task %d: %w", tasks[i].ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO task_snapshot (id, payload, updated_at) VALUES (?, ?, ?)`,
			tasks[i].ID, string(payload), now,
		); err != nil {
			return fmt.Errorf("insert task %d: %w", tasks[i].ID, err)
		}
	}
	for _, dep := range deps {
		if _, err := tx.Exec(
			`INSERT INTO dependency_snapshot (id, source_task, target_task) VALUES (?, ?, ?)`,
			dep.ID, dep.SourceTask, dep.TargetTask,
		); err != nil {
			return fmt.Errorf("insert dependency %d: %w", dep.ID, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the cached task graph, if any.
func (s *Store) LoadSnapshot() ([]models.Task, []models.Dependency, error) {
	rows, err := s.db.Query(`SELECT payload FROM task_snapshot ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query task snapshot: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("scan task snapshot: %w", err)
		}
		var task models.Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			return nil, nil, fmt.Errorf("unmarshal task snapshot: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	depRows, err := s.db.Query(`SELECT id, source_task, target_task FROM dependency_snapshot ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query dependency snapshot: %w", err)
	}
	defer depRows.Close()

	var deps []models.Dependency
	for depRows.Next() {
		var dep models.Dependency
		if err := depRows.Scan(&dep.ID, &dep.SourceTask, &dep.TargetTask); err != nil {
			return nil, nil, fmt.Errorf("scan dependency snapshot: %w", err)
		}
		deps = append(deps, dep)
	}
	return tasks, deps, depRows.Err()
}

// --- Dashboard gate ---

// ShouldShowDashboard reports whether the welcome overlay is due for a
// user: true when the user has never seen it or more than
// DashboardInterval has elapsed since they last did.
func (s *Store) ShouldShowDashboard(username string, now time.Time) (bool, error) {
	var lastSeen time.Time
	err := s.db.QueryRow(
		`SELECT last_seen FROM dashboard_seen WHERE username = ?`, username,
	).Scan(&lastSeen)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query dashboard seen: %w", err)
	}
	return now.Sub(lastSeen) > DashboardInterval, nil
}

// TouchDashboard records that the user saw the dashboard now.
func (s *Store) TouchDashboard(username string, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO dashboard_seen (username, last_seen) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET last_seen = excluded.last_seen`,
		username, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("touch dashboard: %w", err)
	}
	return nil
}
