// Package pipeline drives clip jobs through their stages and records every
// transition on the job record.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/api/internal/acquire"
	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/highlight"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/render"
	"github.com/clipforge/api/internal/source"
	"github.com/clipforge/api/internal/store"
	"github.com/clipforge/api/internal/transcribe"
	"github.com/clipforge/api/internal/workspace"
)

const canceledMessage = "canceled by client"

type Acquirer interface {
	AcquireAudio(ctx context.Context, jobID string, src model.SourceRef, workDir string) (*acquire.Media, error)
	AcquireVideo(ctx context.Context, jobID string, src model.SourceRef, workDir string) (*acquire.Media, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, jobID, audioPath, workDir string) (*transcribe.Result, error)
}

type Renderer interface {
	Render(ctx context.Context, req render.Request, progress render.ProgressFunc) (*model.JobResult, error)
}

// Notifier receives job updates as they are persisted, e.g. to push them over WebSocket.
type Notifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step model.Step)
	BroadcastComplete(jobID string, result *model.JobResult)
	BroadcastError(jobID string, code, message string)
}

// Deps are the collaborators of an Orchestrator. Notifier and Scheduler are optional.
type Deps struct {
	Store       store.JobStore
	Workspace   *workspace.Manager
	Scheduler   workspace.Scheduler
	Acquirer    Acquirer
	Transcriber Transcriber
	Renderer    Renderer
	Notifier    Notifier
}

type Options struct {
	Highlight      highlight.Options
	CleanupDelay   time.Duration
	MaxUploadBytes int64
}

// Orchestrator owns job state. Stages for one job never run concurrently;
// different jobs proceed independently.
type Orchestrator struct {
	deps  Deps
	opts  Options
	locks *keyedMutex
	now   func() time.Time
}

func New(deps Deps, opts Options) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// Create parses the source reference and records a queued job.
func (o *Orchestrator) Create(ctx context.Context, rawSource string, params model.JobParams, requestedBy string) (*model.Job, error) {
	src, err := source.Parse(rawSource)
	if err != nil {
		return nil, err
	}
	job, err := o.newJob(src, params, requestedBy)
	if err != nil {
		return nil, err
	}
	if err := o.deps.Store.Create(ctx, job); err != nil {
		return nil, err
	}
	log.Printf("[job %s] created from %s source", job.ID, src.Kind)
	return job, nil
}

// CreateUpload stores an uploaded video in a new job's working directory and
// records the job.
func (o *Orchestrator) CreateUpload(ctx context.Context, fileName string, size int64, r io.Reader, params model.JobParams, requestedBy string) (*model.Job, error) {
	src, err := source.Upload(fileName, size, o.opts.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	job, err := o.newJob(src, params, requestedBy)
	if err != nil {
		return nil, err
	}

	dir, err := o.deps.Workspace.Acquire(job.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "create workdir")
	}
	if err := writeUpload(filepath.Join(dir, src.FileName), r); err != nil {
		o.deps.Workspace.Release(job.ID)
		return nil, apperr.Wrap(apperr.KindStorage, err, "store upload")
	}
	if err := o.deps.Store.Create(ctx, job); err != nil {
		o.deps.Workspace.Release(job.ID)
		return nil, err
	}
	log.Printf("[job %s] created from upload %s (%d bytes)", job.ID, fileName, size)
	return job, nil
}

func writeUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (o *Orchestrator) newJob(src model.SourceRef, params model.JobParams, requestedBy string) (*model.Job, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	now := o.now()
	return &model.Job{
		ID:          uuid.New().String(),
		Status:      model.JobStatusQueued,
		CurrentStep: model.StepQueued,
		Progress:    model.StepProgress[model.StepQueued],
		Source:      src,
		Params:      params,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateParams checks clip options independently of how they arrived.
func ValidateParams(p model.JobParams) error {
	if p.ClipDuration < 5 || p.ClipDuration > 600 {
		return apperr.Validation("clipDuration must be between 5 and 600 seconds")
	}
	if p.MaxClips < 1 || p.MaxClips > 20 {
		return apperr.Validation("maxClips must be between 1 and 20")
	}
	switch p.AspectRatio {
	case model.AspectVertical, model.AspectSquare, model.AspectLandscape:
	default:
		return apperr.Validation("unsupported aspect ratio %q", p.AspectRatio)
	}
	switch p.CaptionStyle {
	case model.CaptionClassic, model.CaptionBold, model.CaptionOutline, model.CaptionGlow:
	default:
		return apperr.Validation("unsupported caption style %q", p.CaptionStyle)
	}
	return nil
}

// Status returns the persisted job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*model.Job, error) {
	return o.deps.Store.Get(ctx, id)
}

// Cancel asks a running job to stop at its next stage boundary. Terminal jobs
// are returned unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*model.Job, error) {
	job, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}
	if err := o.deps.Store.RequestCancel(ctx, id); err != nil {
		return nil, err
	}
	job.CancelRequested = true
	log.Printf("[job %s] cancel requested", id)
	return job, nil
}

// Run advances the job until it is terminal. It returns an error only when the
// job could not be moved forward, e.g. ctx ended mid-stage or the store failed;
// stage failures are recorded on the job instead.
func (o *Orchestrator) Run(ctx context.Context, id string) (*model.Job, error) {
	for {
		job, err := o.Advance(ctx, id)
		if err != nil {
			return job, err
		}
		if job.IsTerminal() {
			return job, nil
		}
		if err := ctx.Err(); err != nil {
			return job, err
		}
	}
}

// Advance runs the next pending stage and persists the result. It is a no-op
// on terminal jobs.
func (o *Orchestrator) Advance(ctx context.Context, id string) (*model.Job, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	job, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}
	if job.CancelRequested {
		return o.fail(ctx, job, apperr.New(apperr.KindCanceled, canceledMessage))
	}

	if err := o.runStage(ctx, job); err != nil {
		if ctx.Err() != nil {
			log.Printf("[job %s] interrupted during %s: %v", id, job.CurrentStep, err)
			return job, err
		}
		return o.fail(ctx, job, err)
	}
	return job, nil
}

// Fail records err on a job that could not finish, unless it is already terminal.
// It runs detached from ctx: the caller's context has often expired by the
// time a job is given up on.
func (o *Orchestrator) Fail(ctx context.Context, id string, cause error) (*model.Job, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	unlock := o.locks.Lock(id)
	defer unlock()

	job, err := o.deps.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}
	return o.fail(ctx, job, cause)
}

func (o *Orchestrator) runStage(ctx context.Context, job *model.Job) error {
	switch job.CurrentStep {
	case model.StepQueued:
		now := o.now()
		job.Status = model.JobStatusProcessing
		job.StartedAt = &now
		return o.enter(ctx, job, model.StepDownloadingAudio)

	case model.StepDownloadingAudio:
		dir, err := o.workDir(job.ID)
		if err != nil {
			return err
		}
		m, err := o.deps.Acquirer.AcquireAudio(ctx, job.ID, job.Source, dir)
		if err != nil {
			return err
		}
		job.AudioFile = filepath.Base(m.Path)
		log.Printf("[job %s] audio acquired via %s (%d bytes)", job.ID, m.Provider, m.Size)
		return o.enter(ctx, job, model.StepTranscribing)

	case model.StepTranscribing:
		dir, err := o.workDir(job.ID)
		if err != nil {
			return err
		}
		res, err := o.deps.Transcriber.Transcribe(ctx, job.ID, filepath.Join(dir, job.AudioFile), dir)
		if err != nil {
			return err
		}
		job.Transcript = res.Segments
		job.TranscriptDegraded = res.Degraded
		if res.Degraded {
			log.Printf("Warning: [job %s] transcript has no timings, using estimated segments", job.ID)
		}
		log.Printf("[job %s] transcribed %d segments", job.ID, len(res.Segments))
		return o.enter(ctx, job, model.StepFindingClips)

	case model.StepFindingClips:
		clips, err := highlight.Select(job.Transcript, float64(job.Params.ClipDuration), job.Params.MaxClips, o.opts.Highlight)
		if err != nil {
			return err
		}
		job.Clips = clips
		log.Printf("[job %s] selected %d clips", job.ID, len(clips))
		return o.enter(ctx, job, model.StepDownloadingVideo)

	case model.StepDownloadingVideo:
		dir, err := o.workDir(job.ID)
		if err != nil {
			return err
		}
		m, err := o.deps.Acquirer.AcquireVideo(ctx, job.ID, job.Source, dir)
		if err != nil {
			return err
		}
		job.VideoFile = filepath.Base(m.Path)
		log.Printf("[job %s] video acquired via %s (%d bytes)", job.ID, m.Provider, m.Size)
		return o.enter(ctx, job, model.StepCuttingClips)

	case model.StepCuttingClips:
		return o.cut(ctx, job)

	default:
		return fmt.Errorf("job %s is at unknown step %q", job.ID, job.CurrentStep)
	}
}

func (o *Orchestrator) cut(ctx context.Context, job *model.Job) error {
	dir, err := o.workDir(job.ID)
	if err != nil {
		return err
	}
	req := render.Request{
		JobID:     job.ID,
		VideoPath: filepath.Join(dir, job.VideoFile),
		WorkDir:   dir,
		Segments:  job.Transcript,
		Clips:     job.Clips,
		Params:    job.Params,
	}
	progress := func(done, total int) {
		p := model.CuttingProgressStart + (model.CuttingProgressEnd-model.CuttingProgressStart)*done/total
		if p <= job.Progress {
			return
		}
		job.Progress = p
		if err := o.save(ctx, job); err != nil {
			log.Printf("Warning: [job %s] save progress: %v", job.ID, err)
		}
	}

	result, err := o.deps.Renderer.Render(ctx, req, progress)
	if err != nil {
		return err
	}

	now := o.now()
	job.Result = result
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	if err := o.enter(ctx, job, model.StepDone); err != nil {
		return err
	}
	log.Printf("[job %s] completed with %d clips (%d skipped)", job.ID, len(result.Clips), len(result.Skipped))

	if o.deps.Notifier != nil {
		o.deps.Notifier.BroadcastComplete(job.ID, result)
	}
	o.scheduleRelease(ctx, job.ID)
	return nil
}

// enter moves the job to step and persists it.
func (o *Orchestrator) enter(ctx context.Context, job *model.Job, step model.Step) error {
	job.CurrentStep = step
	if p := model.StepProgress[step]; p > job.Progress {
		job.Progress = p
	}
	return o.save(ctx, job)
}

func (o *Orchestrator) save(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = o.now()
	if err := o.deps.Store.Update(ctx, job); err != nil {
		return err
	}
	if o.deps.Notifier != nil {
		o.deps.Notifier.BroadcastProgress(job.ID, job.Progress, job.Status, job.CurrentStep)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *model.Job, cause error) (*model.Job, error) {
	kind := apperr.KindOf(cause)
	code := apperr.Code(kind)
	msg := cause.Error()
	if kind == apperr.KindCanceled {
		msg = canceledMessage
	}
	log.Printf("[job %s] failed at %s: %v", job.ID, job.CurrentStep, cause)

	now := o.now()
	job.Status = model.JobStatusFailed
	job.CurrentStep = model.StepError
	job.ErrorCode = code
	job.ErrorMessage = &msg
	job.CompletedAt = &now
	job.UpdatedAt = now

	// the failure must be recorded even when the stage ran out of time
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := o.deps.Store.Update(saveCtx, job); err != nil {
		return job, fmt.Errorf("record failure of job %s: %w", job.ID, err)
	}
	if o.deps.Notifier != nil {
		o.deps.Notifier.BroadcastError(job.ID, code, msg)
	}
	if err := o.deps.Workspace.Release(job.ID); err != nil {
		log.Printf("Warning: [job %s] release workdir: %v", job.ID, err)
	}
	return job, nil
}

func (o *Orchestrator) workDir(jobID string) (string, error) {
	dir, err := o.deps.Workspace.Acquire(jobID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, err, "workdir")
	}
	return dir, nil
}

func (o *Orchestrator) scheduleRelease(ctx context.Context, jobID string) {
	if o.deps.Scheduler == nil {
		return
	}
	if err := o.deps.Scheduler.ScheduleRelease(ctx, jobID, o.opts.CleanupDelay); err != nil {
		log.Printf("Warning: [job %s] schedule cleanup: %v", jobID, err)
	}
}
