package acquire

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

// YtDlpProvider downloads through the yt-dlp class downloader. The cookies
// variant only runs when a cookies file was configured.
type YtDlpProvider struct {
	name           string
	downloader     media.Downloader
	cookiesFile    string
	requireCookies bool
	userAgent      string
}

func NewYtDlpProvider(d media.Downloader, userAgent string) *YtDlpProvider {
	return &YtDlpProvider{name: "ytdlp", downloader: d, userAgent: userAgent}
}

func NewYtDlpCookiesProvider(d media.Downloader, cookiesFile, userAgent string) *YtDlpProvider {
	return &YtDlpProvider{name: "ytdlp-cookies", downloader: d, cookiesFile: cookiesFile, requireCookies: true, userAgent: userAgent}
}

func (p *YtDlpProvider) Name() string { return p.name }

func (p *YtDlpProvider) Supports(req Request) bool {
	if p.requireCookies && p.cookiesFile == "" {
		return false
	}
	return (req.Source.Kind == model.SourceYouTube || req.Source.Kind == model.SourceURL) && req.Source.URL != ""
}

func (p *YtDlpProvider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	files, err := p.downloader.Download(ctx, media.DownloadRequest{
		URL:            req.Source.URL,
		OutputTemplate: filepath.Join(req.WorkDir, fmt.Sprintf("%s-%s", req.Kind, p.name)),
		AudioOnly:      req.Kind == model.MediaAudio,
		CookiesFile:    p.cookiesFile,
		UserAgent:      p.userAgent,
	})
	if err != nil {
		if tail := media.DiagnosticTail(err); tail != "" {
			return nil, fmt.Errorf("%w: %s", err, tail)
		}
		return nil, err
	}
	return &Resolved{Path: files[0]}, nil
}
