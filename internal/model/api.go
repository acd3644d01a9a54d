package model

import "time"

// CreateJobRequest represents the request to create a clip job from a URL
type CreateJobRequest struct {
	URL          string `json:"url" validate:"required,max=2048"`
	ClipDuration *int   `json:"clipDuration" validate:"omitempty,min=5,max=600"`
	MaxClips     *int   `json:"maxClips" validate:"omitempty,min=1,max=20"`
	AspectRatio  string `json:"aspectRatio" validate:"omitempty,oneof=9:16 16:9 1:1"`
	AddCaptions  *bool  `json:"addCaptions"`
	CaptionStyle string `json:"captionStyle" validate:"omitempty,oneof=classic bold outline glow"`
}

// Params applies defaults to the optional fields.
func (r *CreateJobRequest) Params() JobParams {
	p := JobParams{
		ClipDuration: DefaultClipDuration,
		MaxClips:     DefaultMaxClips,
		AspectRatio:  DefaultAspectRatio,
		AddCaptions:  true,
		CaptionStyle: DefaultCaptionStyle,
	}
	if r.ClipDuration != nil {
		p.ClipDuration = *r.ClipDuration
	}
	if r.MaxClips != nil {
		p.MaxClips = *r.MaxClips
	}
	if r.AspectRatio != "" {
		p.AspectRatio = AspectRatio(r.AspectRatio)
	}
	if r.AddCaptions != nil {
		p.AddCaptions = *r.AddCaptions
	}
	if r.CaptionStyle != "" {
		p.CaptionStyle = CaptionStyle(r.CaptionStyle)
	}
	return p
}

// CreateJobResponse represents the response after creating a job
type CreateJobResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse represents a job status read
type JobStatusResponse struct {
	JobID        string              `json:"jobId"`
	Status       JobStatus           `json:"status"`
	CurrentStep  Step                `json:"currentStep"`
	Progress     int                 `json:"progress"`
	Transcript   []TranscriptSegment `json:"transcript,omitempty"`
	Clips        []SelectedClip      `json:"clips,omitempty"`
	ErrorCode    string              `json:"errorCode,omitempty"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// NewJobStatusResponse projects a job onto the status payload.
func NewJobStatusResponse(job *Job) *JobStatusResponse {
	clips := job.Clips
	if job.Result != nil {
		clips = job.Result.Clips
	}
	return &JobStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		CurrentStep:  job.CurrentStep,
		Progress:     job.Progress,
		Transcript:   job.Transcript,
		Clips:        clips,
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// JobResultResponse represents the rendered result of a completed job
type JobResultResponse struct {
	JobID       string         `json:"jobId"`
	Clips       []SelectedClip `json:"clips"`
	Archive     *Artifact      `json:"archive,omitempty"`
	Skipped     []SkippedClip  `json:"skipped,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// CancelJobResponse represents the response after requesting cancellation
type CancelJobResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}
