// Package journal keeps a local SQLite record of sync runs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knyar/urconf"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	dry_run INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	contacts_created INTEGER NOT NULL DEFAULT 0,
	contacts_updated INTEGER NOT NULL DEFAULT 0,
	contacts_deleted INTEGER NOT NULL DEFAULT 0,
	monitors_created INTEGER NOT NULL DEFAULT 0,
	monitors_updated INTEGER NOT NULL DEFAULT 0,
	monitors_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`

// Run is one recorded sync run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Err        string
	Contacts   urconf.ActionCounts
	Monitors   urconf.ActionCounts
}

// Journal stores sync runs in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at the given path and
// applies recommended pragmas for WAL mode and performance.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// Recommended pragmas (modernc.org/sqlite requires SQL statements, not DSN params).
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores one sync run. A run id is assigned if missing.
func (j *Journal) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	dryRun := 0
	if run.DryRun {
		dryRun = 1
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sync_runs (
			id, started_at, finished_at, dry_run, error,
			contacts_created, contacts_updated, contacts_deleted,
			monitors_created, monitors_updated, monitors_deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		dryRun,
		run.Err,
		run.Contacts.Created, run.Contacts.Updated, run.Contacts.Deleted,
		run.Monitors.Created, run.Monitors.Updated, run.Monitors.Deleted,
	)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, error,
			contacts_created, contacts_updated, contacts_deleted,
			monitors_created, monitors_updated, monitors_deleted
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		var dryRun int
		if err := rows.Scan(&r.ID, &started, &finished, &dryRun, &r.Err,
			&r.Contacts.Created, &r.Contacts.Updated, &r.Contacts.Deleted,
			&r.Monitors.Created, &r.Monitors.Updated, &r.Monitors.Deleted,
		); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.DryRun = dryRun != 0
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
