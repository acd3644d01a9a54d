package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeProcessJob = "clip_job:process"
	TaskTypeCleanup    = "workdir:cleanup"

	QueueJobs    = "jobs"
	QueueCleanup = "cleanup"

	// MaxRetry bounds how often an interrupted job is resumed.
	MaxRetry = 3
)

// JobPayload identifies the job a task operates on.
type JobPayload struct {
	JobID string `json:"jobId"`
}

func NewProcessJobTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(JobPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProcessJob, data), nil
}

func NewCleanupTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(JobPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCleanup, data), nil
}

func parsePayload(t *asynq.Task) (JobPayload, error) {
	var p JobPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.JobID == "" {
		return p, fmt.Errorf("task payload has no job id")
	}
	return p, nil
}

// Queue hands jobs and delayed cleanups to asynq. Cleanups survive restarts
// because they are stored in Redis until due.
type Queue struct {
	client     *asynq.Client
	jobTimeout time.Duration
}

func NewQueue(client *asynq.Client, jobTimeout time.Duration) *Queue {
	return &Queue{client: client, jobTimeout: jobTimeout}
}

// EnqueueJob schedules the job's pipeline. The task id is the job id, so a job
// is never queued twice.
func (q *Queue) EnqueueJob(ctx context.Context, jobID string) error {
	task, err := NewProcessJobTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueJobs),
		asynq.TaskID("job:" + jobID),
		asynq.MaxRetry(MaxRetry),
		asynq.Retention(24 * time.Hour),
	}
	if q.jobTimeout > 0 {
		opts = append(opts, asynq.Timeout(q.jobTimeout))
	}
	if _, err := q.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// ScheduleRelease enqueues a cleanup task that becomes due after delay.
func (q *Queue) ScheduleRelease(ctx context.Context, jobID string, delay time.Duration) error {
	task, err := NewCleanupTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCleanup),
		asynq.ProcessIn(delay),
		asynq.TaskID("cleanup:"+jobID),
		asynq.MaxRetry(5),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue cleanup: %w", err)
	}
	return nil
}
