package model

import "time"

// Job is one end-to-end request to turn a source video into ranked clips.
// It is persisted after every state transition. AudioFile and VideoFile are
// basenames of acquired media inside the job's working directory.
type Job struct {
	ID                 string              `json:"id"`
	Status             JobStatus           `json:"status"`
	CurrentStep        Step                `json:"currentStep"`
	Progress           int                 `json:"progress"`
	Source             SourceRef           `json:"source"`
	Params             JobParams           `json:"params"`
	Transcript         []TranscriptSegment `json:"transcript,omitempty"`
	TranscriptDegraded bool                `json:"transcriptDegraded,omitempty"`
	Clips              []SelectedClip      `json:"clips,omitempty"`
	AudioFile          string              `json:"audioFile,omitempty"`
	VideoFile          string              `json:"videoFile,omitempty"`
	Result             *JobResult          `json:"result,omitempty"`
	ErrorCode          string              `json:"errorCode,omitempty"`
	ErrorMessage       *string             `json:"errorMessage,omitempty"`
	CancelRequested    bool                `json:"cancelRequested,omitempty"`
	RequestedBy        string              `json:"requestedBy,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	StartedAt          *time.Time          `json:"startedAt,omitempty"`
	CompletedAt        *time.Time          `json:"completedAt,omitempty"`
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SourceRef points at the media a job was created from.
type SourceRef struct {
	Kind    SourceKind `json:"kind"`
	URL     string     `json:"url,omitempty"`
	VideoID string     `json:"videoId,omitempty"`
	// FileName is the basename of an uploaded file inside the job's working directory.
	FileName string `json:"fileName,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// JobParams are the clip options requested at creation time.
type JobParams struct {
	ClipDuration int          `json:"clipDuration"`
	MaxClips     int          `json:"maxClips"`
	AspectRatio  AspectRatio  `json:"aspectRatio"`
	AddCaptions  bool         `json:"addCaptions"`
	CaptionStyle CaptionStyle `json:"captionStyle"`
}

// Defaults
const (
	DefaultClipDuration = 60
	DefaultMaxClips     = 5
	DefaultAspectRatio  = AspectVertical
	DefaultCaptionStyle = CaptionBold
)

// JobResult is the rendered output of a completed job.
type JobResult struct {
	Clips   []SelectedClip `json:"clips"`
	Archive *Artifact      `json:"archive,omitempty"`
	Skipped []SkippedClip  `json:"skipped,omitempty"`
}

// Artifact is a file produced by the render pipeline.
type Artifact struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// SkippedClip records a clip whose render failed while others succeeded.
type SkippedClip struct {
	ID    int    `json:"id"`
	Error string `json:"error"`
}
