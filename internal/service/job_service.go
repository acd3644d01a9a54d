package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/pipeline"
)

var (
	ErrJobNotReady = errors.New("job not completed")
	ErrJobFailed   = errors.New("job failed")
)

// Enqueuer hands a created job to the worker queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobID string) error
}

// JobService is the API-facing side of clip jobs.
type JobService struct {
	orchestrator *pipeline.Orchestrator
	queue        Enqueuer
}

func NewJobService(o *pipeline.Orchestrator, queue Enqueuer) *JobService {
	return &JobService{
		orchestrator: o,
		queue:        queue,
	}
}

// Create records a job for a URL source and queues it.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest, requestedBy string) (*model.CreateJobResponse, error) {
	job, err := s.orchestrator.Create(ctx, req.URL, req.Params(), requestedBy)
	if err != nil {
		return nil, err
	}
	return s.enqueue(ctx, job)
}

// CreateUpload records a job for an uploaded video and queues it.
func (s *JobService) CreateUpload(ctx context.Context, fileName string, size int64, r io.Reader, req *model.CreateJobRequest, requestedBy string) (*model.CreateJobResponse, error) {
	job, err := s.orchestrator.CreateUpload(ctx, fileName, size, r, req.Params(), requestedBy)
	if err != nil {
		return nil, err
	}
	return s.enqueue(ctx, job)
}

func (s *JobService) enqueue(ctx context.Context, job *model.Job) (*model.CreateJobResponse, error) {
	if err := s.queue.EnqueueJob(ctx, job.ID); err != nil {
		if _, ferr := s.orchestrator.Fail(context.WithoutCancel(ctx), job.ID, err); ferr != nil {
			log.Printf("Warning: [job %s] record enqueue failure: %v", job.ID, ferr)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return &model.CreateJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// Status returns the current state of a job.
func (s *JobService) Status(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.orchestrator.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return model.NewJobStatusResponse(job), nil
}

// Result returns the rendered clips of a completed job.
func (s *JobService) Result(ctx context.Context, jobID string) (*model.JobResultResponse, error) {
	job, err := s.orchestrator.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status == model.JobStatusFailed:
		return nil, ErrJobFailed
	case job.Status != model.JobStatusCompleted || job.Result == nil:
		return nil, ErrJobNotReady
	}
	return &model.JobResultResponse{
		JobID:       job.ID,
		Clips:       job.Result.Clips,
		Archive:     job.Result.Archive,
		Skipped:     job.Result.Skipped,
		CompletedAt: job.CompletedAt,
	}, nil
}

// Cancel asks a running job to stop at its next stage boundary. A job that
// already finished is returned unchanged.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.CancelJobResponse, error) {
	job, err := s.orchestrator.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.CancelJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	}, nil
}
