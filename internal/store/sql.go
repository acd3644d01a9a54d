package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clipforge/api/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	current_step TEXT NOT NULL,
	progress INTEGER NOT NULL,
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// SQLiteStore keeps jobs in an embedded SQLite database. It backs the CLI and
// single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return storageErr(err, "marshal job")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, current_step, progress, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Status, job.CurrentStep, job.Progress, string(data), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return storageErr(err, "insert job %s", job.ID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var (
		data   string
		cancel bool
	)
	err := s.db.QueryRowContext(ctx, `SELECT data, cancel_requested FROM jobs WHERE id = ?`, id).Scan(&data, &cancel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, storageErr(err, "load job %s", id)
	}

	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, storageErr(err, "decode job %s", id)
	}
	job.CancelRequested = cancel
	return &job, nil
}

func (s *SQLiteStore) Update(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return storageErr(err, "marshal job")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, current_step = ?, progress = ?, data = ?, updated_at = ? WHERE id = ?`,
		job.Status, job.CurrentStep, job.Progress, string(data), job.UpdatedAt, job.ID)
	if err != nil {
		return storageErr(err, "update job %s", job.ID)
	}
	return affected(res, job.ID)
}

func (s *SQLiteStore) RequestCancel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return storageErr(err, "cancel job %s", id)
	}
	return affected(res, id)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func affected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err, "rows affected")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}
