package workspace

import (
	"path/filepath"
	"strings"
)

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".zip":  "application/zip",
	".srt":  "text/plain; charset=utf-8",
	".ass":  "text/plain; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".json": "application/json",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// ContentType infers a file's media type from its extension. Inline is true
// for video, which browsers should play rather than download.
func ContentType(name string) (contentType string, inline bool) {
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "application/octet-stream", false
	}
	return ct, strings.HasPrefix(ct, "video/")
}
