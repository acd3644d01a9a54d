package model

// SelectedClip is a highlight window promoted into a job's result set.
// Filename and URL are filled once the clip has been rendered.
type SelectedClip struct {
	ID           int     `json:"id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Duration     float64 `json:"duration"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	Filename     string  `json:"filename,omitempty"`
	URL          string  `json:"url,omitempty"`
	Thumbnail    string  `json:"thumbnail,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
}

// Overlaps reports whether the half-open windows [Start,End) intersect.
func (c SelectedClip) Overlaps(o SelectedClip) bool {
	return c.Start < o.End && o.Start < c.End
}
