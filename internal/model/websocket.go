package model

// Message types pushed to /ws/jobs/:jobId subscribers. Clients may send ping
// and get pong back; everything else flows server to client.
const (
	WSTypeSnapshot = "snapshot"
	WSTypeProgress = "progress"
	WSTypeComplete = "complete"
	WSTypeError    = "error"
	WSTypePing     = "ping"
	WSTypePong     = "pong"
)

// WSEnvelope is the header shared by every message.
type WSEnvelope struct {
	Type  string `json:"type"`
	JobID string `json:"jobId,omitempty"`
}

// WSSnapshot is sent once on connect so late subscribers start from the
// persisted state instead of waiting for the next stage.
type WSSnapshot struct {
	WSEnvelope
	Job *JobStatusResponse `json:"job"`
}

type WSProgress struct {
	WSEnvelope
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep Step      `json:"currentStep"`
}

// WSComplete carries the rendered clips, ordered by start time.
type WSComplete struct {
	WSEnvelope
	Clips   []SelectedClip `json:"clips"`
	Archive *Artifact      `json:"archive,omitempty"`
	Skipped []SkippedClip  `json:"skipped,omitempty"`
}

// WSFailure reports a terminal failure, or an unknown job on connect.
type WSFailure struct {
	WSEnvelope
	Code    string `json:"code"`
	Message string `json:"message"`
}
