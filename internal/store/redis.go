package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/model"
)

// RedisStore keeps each job as JSON under job:<id> with a TTL. The cancel
// flag lives in its own key so a pipeline write cannot overwrite it.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{redis: rdb, ttl: ttl}
}

func jobKey(id string) string    { return fmt.Sprintf("job:%s", id) }
func cancelKey(id string) string { return fmt.Sprintf("job:%s:cancel", id) }

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return storageErr(err, "marshal job")
	}
	ok, err := s.redis.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return storageErr(err, "save job %s", job.ID)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, notFound(id)
		}
		return nil, storageErr(err, "load job %s", id)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, storageErr(err, "decode job %s", id)
	}

	n, err := s.redis.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return nil, storageErr(err, "load cancel flag %s", id)
	}
	job.CancelRequested = n > 0
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return storageErr(err, "marshal job")
	}
	ok, err := s.redis.SetXX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return storageErr(err, "save job %s", job.ID)
	}
	if !ok {
		return notFound(job.ID)
	}
	return nil
}

func (s *RedisStore) RequestCancel(ctx context.Context, id string) error {
	n, err := s.redis.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return storageErr(err, "load job %s", id)
	}
	if n == 0 {
		return notFound(id)
	}
	if err := s.redis.Set(ctx, cancelKey(id), 1, s.ttl).Err(); err != nil {
		return storageErr(err, "set cancel flag %s", id)
	}
	return nil
}

// Close is a no-op; the redis client is shared and closed by its owner.
func (s *RedisStore) Close() error { return nil }
