package acquire

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/clipforge/api/internal/model"
)

// Fetcher downloads provider URLs with a browser-like identity.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Fetcher{client: client, userAgent: userAgent, maxBytes: 4 << 30}
}

// Download writes the body of rawURL to dest plus an extension derived from
// the response, and returns the final path.
func (f *Fetcher) Download(ctx context.Context, rawURL string, header http.Header, dest string, kind model.MediaKind) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	f.identify(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("media url returned status %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/json") {
		return "", fmt.Errorf("media url returned %s instead of media", ct)
	}

	out := dest + extensionFor(ct, rawURL, kind)
	tmp := out + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	n, err := io.Copy(file, io.LimitReader(resp.Body, f.maxBytes+1))
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write media: %w", err)
	}
	if n > f.maxBytes {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("media exceeds %d bytes", f.maxBytes)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize media: %w", err)
	}
	return out, nil
}

func (f *Fetcher) identify(req *http.Request) {
	if f.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
}

var mimeExtensions = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

func extensionFor(contentType, rawURL string, kind model.MediaKind) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := mimeExtensions[mt]; ok {
			return ext
		}
	}
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	switch ext := strings.ToLower(path.Ext(rawURL)); ext {
	case ".mp3", ".m4a", ".webm", ".ogg", ".wav", ".mp4", ".mov", ".mkv":
		return ext
	}
	if kind == model.MediaAudio {
		return ".mp3"
	}
	return ".mp4"
}
