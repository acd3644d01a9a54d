// Package source turns a caller-supplied reference into a typed source.
package source

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/model"
)

var (
	youtubeURLPattern = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|youtube\.com/shorts/|youtube\.com/live/)([a-zA-Z0-9_-]{11})`)
	youtubeIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// UploadExtensions are the container formats accepted for uploads.
var UploadExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Parse classifies a URL or bare video id.
func Parse(raw string) (model.SourceRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.SourceRef{}, apperr.Validation("source url is required")
	}

	if youtubeIDPattern.MatchString(raw) {
		return youtubeRef(raw), nil
	}
	if m := youtubeURLPattern.FindStringSubmatch(raw); m != nil {
		return youtubeRef(m[1]), nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return model.SourceRef{}, apperr.Validation("unrecognized source %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.SourceRef{}, apperr.Validation("unsupported url scheme %q", u.Scheme)
	}
	if isYouTubeHost(u.Host) {
		return model.SourceRef{}, apperr.Validation("could not find a video id in %q", raw)
	}
	return model.SourceRef{Kind: model.SourceURL, URL: u.String()}, nil
}

// Upload validates an uploaded file name and size.
func Upload(fileName string, size, maxBytes int64) (model.SourceRef, error) {
	base := filepath.Base(fileName)
	ext := strings.ToLower(filepath.Ext(base))
	if !UploadExtensions[ext] {
		return model.SourceRef{}, apperr.Validation("unsupported file type %q, expected mp4, mov, mkv or webm", ext)
	}
	if size <= 0 {
		return model.SourceRef{}, apperr.Validation("uploaded file is empty")
	}
	if maxBytes > 0 && size > maxBytes {
		return model.SourceRef{}, apperr.Validation("file too large: %d bytes, limit is %d", size, maxBytes)
	}
	return model.SourceRef{Kind: model.SourceUpload, FileName: "source" + ext, Size: size}, nil
}

// WatchURL returns the canonical watch page of a YouTube source.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func youtubeRef(id string) model.SourceRef {
	return model.SourceRef{Kind: model.SourceYouTube, VideoID: id, URL: WatchURL(id)}
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}
