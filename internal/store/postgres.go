package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipforge/api/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS clip_jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	current_step TEXT NOT NULL,
	progress INTEGER NOT NULL,
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clip_jobs_status ON clip_jobs(status);
`

// PostgresStore keeps job rows in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolConf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConf)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return storageErr(err, "marshal job")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO clip_jobs (id, status, current_step, progress, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, string(job.Status), string(job.CurrentStep), job.Progress, data, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return storageErr(err, "insert job %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var (
		data   []byte
		cancel bool
	)
	err := s.pool.QueryRow(ctx, `SELECT data, cancel_requested FROM clip_jobs WHERE id = $1`, id).Scan(&data, &cancel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, storageErr(err, "load job %s", id)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, storageErr(err, "decode job %s", id)
	}
	job.CancelRequested = cancel
	return &job, nil
}

func (s *PostgresStore) Update(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return storageErr(err, "marshal job")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE clip_jobs SET status = $1, current_step = $2, progress = $3, data = $4, updated_at = $5 WHERE id = $6`,
		string(job.Status), string(job.CurrentStep), job.Progress, data, job.UpdatedAt, job.ID)
	if err != nil {
		return storageErr(err, "update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(job.ID)
	}
	return nil
}

func (s *PostgresStore) RequestCancel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE clip_jobs SET cancel_requested = TRUE, updated_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return storageErr(err, "cancel job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
