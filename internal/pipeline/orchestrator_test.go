package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/api/internal/acquire"
	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/render"
	"github.com/clipforge/api/internal/store"
	"github.com/clipforge/api/internal/transcribe"
	"github.com/clipforge/api/internal/workspace"
)

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fakeAcquirer struct {
	audioErr error
	calls    int
}

func (f *fakeAcquirer) write(dir, name string) (*acquire.Media, error) {
	f.calls++
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, make([]byte, 20000), 0o644); err != nil {
		return nil, err
	}
	return &acquire.Media{Path: p, Size: 20000, Provider: "fake"}, nil
}

func (f *fakeAcquirer) AcquireAudio(ctx context.Context, jobID string, src model.SourceRef, workDir string) (*acquire.Media, error) {
	if f.audioErr != nil {
		f.calls++
		return nil, f.audioErr
	}
	return f.write(workDir, "audio.mp3")
}

func (f *fakeAcquirer) AcquireVideo(ctx context.Context, jobID string, src model.SourceRef, workDir string) (*acquire.Media, error) {
	return f.write(workDir, "video.mp4")
}

type fakeTranscriber struct {
	segments []model.TranscriptSegment
	err      error
	before   func()
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, jobID, audioPath, workDir string) (*transcribe.Result, error) {
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, err
	}
	return &transcribe.Result{Segments: f.segments, Chunks: 1}, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, req render.Request, progress render.ProgressFunc) (*model.JobResult, error) {
	res := &model.JobResult{}
	for i, c := range req.Clips {
		c.Filename = render.ClipFilename(c)
		res.Clips = append(res.Clips, c)
		progress(i+1, len(req.Clips))
	}
	return res, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	progress []int
	complete int
	errors   []string
}

func (n *recordingNotifier) BroadcastProgress(jobID string, progress int, status model.JobStatus, step model.Step) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, progress)
}

func (n *recordingNotifier) BroadcastComplete(jobID string, result *model.JobResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.complete++
}

func (n *recordingNotifier) BroadcastError(jobID string, code, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, code)
}

type recordingScheduler struct {
	jobs   []string
	delays []time.Duration
}

func (s *recordingScheduler) ScheduleRelease(ctx context.Context, jobID string, delay time.Duration) error {
	s.jobs = append(s.jobs, jobID)
	s.delays = append(s.delays, delay)
	return nil
}

type harness struct {
	orch      *Orchestrator
	store     *store.SQLiteStore
	ws        *workspace.Manager
	acquirer  *fakeAcquirer
	trans     *fakeTranscriber
	notifier  *recordingNotifier
	scheduler *recordingScheduler
}

func transcript(seconds int) []model.TranscriptSegment {
	var segs []model.TranscriptSegment
	for i := 0; i*5 < seconds; i++ {
		segs = append(segs, model.TranscriptSegment{Index: i, Start: float64(i * 5), End: float64(i*5 + 5), Text: fmt.Sprintf("why is this segment %d amazing?", i)})
	}
	return segs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	h := &harness{
		store:     st,
		ws:        workspace.NewManager(t.TempDir()),
		acquirer:  &fakeAcquirer{},
		trans:     &fakeTranscriber{segments: transcript(120)},
		notifier:  &recordingNotifier{},
		scheduler: &recordingScheduler{},
	}
	h.orch = New(Deps{
		Store:       st,
		Workspace:   h.ws,
		Scheduler:   h.scheduler,
		Acquirer:    h.acquirer,
		Transcriber: h.trans,
		Renderer:    fakeRenderer{},
		Notifier:    h.notifier,
	}, Options{CleanupDelay: 10 * time.Minute, MaxUploadBytes: 1 << 20})
	return h
}

func defaultParams() model.JobParams {
	return model.JobParams{ClipDuration: 30, MaxClips: 2, AspectRatio: model.AspectVertical, AddCaptions: true, CaptionStyle: model.CaptionBold}
}

func TestRun_CompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.orch.Create(ctx, watchURL, defaultParams(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != model.JobStatusQueued || job.Progress != 5 {
		t.Fatalf("unexpected new job %+v", job)
	}

	job, err = h.orch.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != model.JobStatusCompleted || job.CurrentStep != model.StepDone || job.Progress != 100 {
		t.Fatalf("unexpected final job %+v", job)
	}

	stored, err := h.orch.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if stored.Result == nil || len(stored.Result.Clips) != 2 || len(stored.Transcript) != 24 {
		t.Fatalf("result not persisted: %+v", stored)
	}
	if stored.StartedAt == nil || stored.CompletedAt == nil {
		t.Fatal("timestamps not recorded")
	}

	want := []int{10, 30, 50, 60, 70, 82, 95, 100}
	if fmt.Sprint(h.notifier.progress) != fmt.Sprint(want) {
		t.Fatalf("progress %v, want %v", h.notifier.progress, want)
	}
	if h.notifier.complete != 1 {
		t.Fatal("completion not broadcast")
	}
	if len(h.scheduler.jobs) != 1 || h.scheduler.jobs[0] != job.ID || h.scheduler.delays[0] != 10*time.Minute {
		t.Fatalf("cleanup not scheduled: %+v", h.scheduler)
	}
}

func TestAdvance_TerminalIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.orch.Create(ctx, watchURL, defaultParams(), "")
	done, err := h.orch.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	calls := h.acquirer.calls
	events := len(h.notifier.progress)

	again, err := h.orch.Advance(ctx, job.ID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if again.Status != done.Status || again.Progress != done.Progress || !again.UpdatedAt.Equal(done.UpdatedAt) {
		t.Fatalf("terminal advance changed the job: %+v", again)
	}
	if h.acquirer.calls != calls || len(h.notifier.progress) != events {
		t.Fatal("terminal advance re-ran a stage")
	}
}

func TestAdvance_StageFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.acquirer.audioErr = apperr.New(apperr.KindAcquisitionExhausted, "all providers failed:\nytdlp: 403")
	ctx := context.Background()
	job, _ := h.orch.Create(ctx, watchURL, defaultParams(), "")

	job, err := h.orch.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("stage failures must not surface as errors: %v", err)
	}
	if job.Status != model.JobStatusFailed || job.CurrentStep != model.StepError || job.ErrorCode != "ACQUISITION_EXHAUSTED" {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "ytdlp: 403") {
		t.Fatalf("diagnostics missing: %v", job.ErrorMessage)
	}
	dir, _ := h.ws.Path(job.ID)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("workdir must be released immediately on failure")
	}
	if len(h.notifier.errors) != 1 || h.notifier.errors[0] != "ACQUISITION_EXHAUSTED" {
		t.Fatalf("error not broadcast: %v", h.notifier.errors)
	}
	if h.acquirer.calls != 1 {
		t.Fatal("failed stages must not be retried")
	}
}

func TestAdvance_NoHighlights(t *testing.T) {
	h := newHarness(t)
	h.trans.segments = nil
	ctx := context.Background()
	job, _ := h.orch.Create(ctx, watchURL, defaultParams(), "")

	job, _ = h.orch.Run(ctx, job.ID)
	if job.ErrorCode != "NO_HIGHLIGHTS_FOUND" {
		t.Fatalf("expected no highlights failure, got %+v", job)
	}
}

func TestCancel_StopsAtNextStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.orch.Create(ctx, watchURL, defaultParams(), "")

	if _, err := h.orch.Advance(ctx, job.ID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := h.orch.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	job, err := h.orch.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != model.JobStatusFailed || job.ErrorCode != "CANCELED" || *job.ErrorMessage != "canceled by client" {
		t.Fatalf("unexpected job %+v", job)
	}
	if h.acquirer.calls != 0 {
		t.Fatal("no stage may run after cancel")
	}

	// canceling a terminal job changes nothing
	again, err := h.orch.Cancel(ctx, job.ID)
	if err != nil || again.Status != model.JobStatusFailed {
		t.Fatalf("cancel terminal: %v %+v", err, again)
	}
}

func TestAdvance_InterruptedStageIsResumable(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	job, _ := h.orch.Create(ctx, watchURL, defaultParams(), "")
	h.orch.Advance(ctx, job.ID)
	h.orch.Advance(ctx, job.ID)

	h.trans.before = cancel
	h.trans.err = context.Canceled
	_, err := h.orch.Advance(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interruption error, got %v", err)
	}
	stored, _ := h.orch.Status(context.Background(), job.ID)
	if stored.IsTerminal() || stored.CurrentStep != model.StepTranscribing {
		t.Fatalf("interrupted job must stay at its pending stage: %+v", stored)
	}

	h.trans.err = nil
	h.trans.before = nil
	done, err := h.orch.Run(context.Background(), job.ID)
	if err != nil || done.Status != model.JobStatusCompleted {
		t.Fatalf("resume: %v %+v", err, done)
	}
}

func TestFail_MarksStuckJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job, _ := h.orch.Create(ctx, watchURL, defaultParams(), "")
	h.orch.Advance(ctx, job.ID)

	job, err := h.orch.Fail(ctx, job.ID, fmt.Errorf("task retries exhausted: %w", context.DeadlineExceeded))
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if job.Status != model.JobStatusFailed || job.ErrorCode != "SERVICE_ERROR" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestFail_RecordsFailureWhenContextExpired(t *testing.T) {
	h := newHarness(t)
	job, _ := h.orch.Create(context.Background(), watchURL, defaultParams(), "")
	h.orch.Advance(context.Background(), job.ID)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := h.orch.Fail(expired, job.ID, fmt.Errorf("job did not finish: %w", context.DeadlineExceeded)); err != nil {
		t.Fatalf("fail: %v", err)
	}
	stored, err := h.orch.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if stored.Status != model.JobStatusFailed || stored.CurrentStep != model.StepError {
		t.Fatalf("job must not stay in processing: status=%s step=%s", stored.Status, stored.CurrentStep)
	}
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.orch.Create(ctx, "not a source", defaultParams(), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	p := defaultParams()
	p.MaxClips = 0
	if _, err := h.orch.Create(ctx, watchURL, p, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for params, got %v", err)
	}
	if _, err := h.orch.Status(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateUpload_StoresFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.orch.CreateUpload(ctx, "talk.MP4", 5, strings.NewReader("video"), defaultParams(), "svc")
	if err != nil {
		t.Fatalf("create upload: %v", err)
	}
	p, _ := h.ws.File(job.ID, job.Source.FileName)
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "video" {
		t.Fatalf("upload not stored: %v %q", err, data)
	}
	if job.Source.Kind != model.SourceUpload || job.RequestedBy != "svc" {
		t.Fatalf("unexpected source %+v", job)
	}

	if _, err := h.orch.CreateUpload(ctx, "notes.txt", 5, strings.NewReader("x"), defaultParams(), ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
