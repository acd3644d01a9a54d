package model

// TranscriptSegment is one time-stamped unit of recognized speech.
type TranscriptSegment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptDuration returns the largest segment end, which is the end of the timeline.
func TranscriptDuration(segments []TranscriptSegment) float64 {
	var d float64
	for _, s := range segments {
		if s.End > d {
			d = s.End
		}
	}
	return d
}
