package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/clipforge/api/internal/pipeline"
	"github.com/clipforge/api/internal/workspace"
)

// JobWorker runs clip jobs pulled from the queue.
type JobWorker struct {
	orchestrator *pipeline.Orchestrator
}

func NewJobWorker(o *pipeline.Orchestrator) *JobWorker {
	return &JobWorker{orchestrator: o}
}

// ProcessTask drives the job to a terminal state. Stage failures are recorded
// on the job and the task succeeds; an interrupted run returns an error so
// asynq resumes it from the pending stage. After the last retry the job is
// marked failed.
func (w *JobWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := parsePayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log.Printf("[job %s] worker picked up job", p.JobID)

	job, err := w.orchestrator.Run(ctx, p.JobID)
	if err == nil {
		log.Printf("[job %s] finished with status %s", p.JobID, job.Status)
		return nil
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried >= maxRetry {
		log.Printf("[job %s] giving up after %d retries: %v", p.JobID, retried, err)
		if _, ferr := w.orchestrator.Fail(context.WithoutCancel(ctx), p.JobID, fmt.Errorf("job did not finish: %w", err)); ferr != nil {
			log.Printf("Warning: [job %s] record failure: %v", p.JobID, ferr)
		}
	}
	return err
}

// CleanupWorker removes a finished job's working directory when its delayed
// cleanup task comes due.
type CleanupWorker struct {
	workspace *workspace.Manager
}

func NewCleanupWorker(m *workspace.Manager) *CleanupWorker {
	return &CleanupWorker{workspace: m}
}

func (w *CleanupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := parsePayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.workspace.Release(p.JobID)
}

// NewServeMux routes task types to their workers.
func NewServeMux(jobs *JobWorker, cleanup *CleanupWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeProcessJob, jobs.ProcessTask)
	mux.HandleFunc(TaskTypeCleanup, cleanup.ProcessTask)
	return mux
}
