// Package store persists job records. The record is the only channel between
// the pipeline and status readers.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/model"
)

// JobStore reads and writes job records. Update never clears a cancel request
// made through RequestCancel.
type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	RequestCancel(ctx context.Context, id string) error
	Close() error
}

// Open builds the store selected by cfg.Driver. The redis client is reused
// for the redis driver.
func Open(ctx context.Context, cfg *config.StoreConfig, rdb *redis.Client) (JobStore, error) {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis store needs a redis client")
		}
		return NewRedisStore(rdb, ttl), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "clipforge.db"
		}
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func notFound(id string) error {
	return apperr.NotFound("job %s not found", id)
}

func storageErr(err error, format string, args ...any) error {
	return apperr.Wrap(apperr.KindStorage, err, format, args...)
}
