package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/contre95/usbdeck/src/music"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteHistory is a SQLite implementation of the CopyHistory interface.
type SqliteHistory struct {
	db *sql.DB
}

// NewSqliteHistory opens (or creates) the history database at path.
func NewSqliteHistory(path string) (*SqliteHistory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SqliteHistory{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS copy_jobs (
			id TEXT PRIMARY KEY,
			name TEXT,
			usb_root TEXT NOT NULL,
			status TEXT NOT NULL,
			copied INTEGER,
			total INTEGER,
			error TEXT,
			started_at TEXT,
			finished_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_copy_jobs_finished ON copy_jobs(finished_at);
		CREATE INDEX IF NOT EXISTS idx_copy_jobs_status ON copy_jobs(status);
	`)
	return err
}

// Record inserts or replaces the row of a finished job.
func (d *SqliteHistory) Record(ctx context.Context, record music.CopyRecord) error {
	if err := record.Validate(); err != nil {
		slog.Error("Record: validation failed", "error", err, "jobID", record.ID)
		return err
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO copy_jobs (id, name, usb_root, status, copied, total, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Name, record.USBRoot, record.Status, record.Copied, record.Total, record.Error,
		record.StartedAt.Format(time.RFC3339), record.FinishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record copy job %s: %w", record.ID, err)
	}
	return nil
}

// List returns the most recently finished jobs first. A non-positive limit returns every row.
func (d *SqliteHistory) List(ctx context.Context, limit int) ([]music.CopyRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, usb_root, status, copied, total, error, started_at, finished_at
		FROM copy_jobs
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []music.CopyRecord
	for rows.Next() {
		var r music.CopyRecord
		var name, errMsg sql.NullString
		var startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &name, &r.USBRoot, &r.Status, &r.Copied, &r.Total, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.Name = name.String
		r.Error = errMsg.String
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		records = append(records, r)
	}

	return records, rows.Err()
}

// CountByStatus returns how many jobs finished in each status.
func (d *SqliteHistory) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM copy_jobs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (d *SqliteHistory) Close() error {
	return d.db.Close()
}
