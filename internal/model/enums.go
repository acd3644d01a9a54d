package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Pipeline steps, in execution order.
type Step string

const (
	StepQueued           Step = "queued"
	StepDownloadingAudio Step = "downloading_audio"
	StepTranscribing     Step = "transcribing"
	StepFindingClips     Step = "finding_clips"
	StepDownloadingVideo Step = "downloading_video"
	StepCuttingClips     Step = "cutting_clips"
	StepDone             Step = "done"
	StepError            Step = "error"
)

// StepProgress is the progress percentage recorded when a step is entered.
// Cutting clips moves from 70 to 95 as clips finish.
var StepProgress = map[Step]int{
	StepQueued:           5,
	StepDownloadingAudio: 10,
	StepTranscribing:     30,
	StepFindingClips:     50,
	StepDownloadingVideo: 60,
	StepCuttingClips:     70,
	StepDone:             100,
}

const (
	CuttingProgressStart = 70
	CuttingProgressEnd   = 95
)

// Aspect ratios
type AspectRatio string

const (
	AspectVertical  AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
	AspectSquare    AspectRatio = "1:1"
)

var ValidAspectRatios = []AspectRatio{AspectVertical, AspectLandscape, AspectSquare}

// Caption styles. Classic burns plain timed text, the rest are styled presets.
type CaptionStyle string

const (
	CaptionClassic CaptionStyle = "classic"
	CaptionBold    CaptionStyle = "bold"
	CaptionOutline CaptionStyle = "outline"
	CaptionGlow    CaptionStyle = "glow"
)

var ValidCaptionStyles = []CaptionStyle{CaptionClassic, CaptionBold, CaptionOutline, CaptionGlow}

// Source kinds
type SourceKind string

const (
	SourceYouTube SourceKind = "youtube"
	SourceURL     SourceKind = "url"
	SourceUpload  SourceKind = "upload"
)

// Media kinds requested from acquisition providers
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)
