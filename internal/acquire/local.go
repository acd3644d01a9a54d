package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

// UploadProvider serves files uploaded into the job's working directory.
// Audio is extracted from the uploaded video with the transcoder.
type UploadProvider struct {
	transcoder media.Transcoder
}

func NewUploadProvider(t media.Transcoder) *UploadProvider {
	return &UploadProvider{transcoder: t}
}

func (p *UploadProvider) Name() string { return "upload" }

func (p *UploadProvider) Supports(req Request) bool {
	return req.Source.Kind == model.SourceUpload && req.Source.FileName != ""
}

func (p *UploadProvider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	in := filepath.Join(req.WorkDir, filepath.Base(req.Source.FileName))
	if _, err := os.Stat(in); err != nil {
		return nil, fmt.Errorf("uploaded file missing: %w", err)
	}
	if req.Kind == model.MediaVideo {
		return &Resolved{Path: in}, nil
	}
	out := filepath.Join(req.WorkDir, "audio-upload.mp3")
	if err := p.transcoder.ExtractAudio(ctx, in, out, 0, 0); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	return &Resolved{Path: out}, nil
}

// DirectProvider serves plain media URLs. The file is downloaded once through
// the fetcher and audio is extracted from the local copy, so every transfer
// carries the browser identity and passes the error-page checks.
type DirectProvider struct {
	transcoder media.Transcoder
	fetcher    *Fetcher
}

func NewDirectProvider(t media.Transcoder, f *Fetcher) *DirectProvider {
	if f == nil {
		f = NewFetcher(nil, "")
	}
	return &DirectProvider{transcoder: t, fetcher: f}
}

func (p *DirectProvider) Name() string { return "direct" }

func (p *DirectProvider) Supports(req Request) bool {
	return req.Source.Kind == model.SourceURL && req.Source.URL != ""
}

func (p *DirectProvider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	if req.Kind == model.MediaVideo {
		if prev := p.downloaded(req.WorkDir); prev != "" {
			return &Resolved{Path: prev}, nil
		}
		return &Resolved{URL: req.Source.URL}, nil
	}

	in, err := p.fetcher.Download(ctx, req.Source.URL, nil, filepath.Join(req.WorkDir, directSourceName), model.MediaVideo)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(req.WorkDir, "audio-direct.mp3")
	if err := p.transcoder.ExtractAudio(ctx, in, out, 0, 0); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	return &Resolved{Path: out}, nil
}

const directSourceName = "source-direct"

// downloaded returns the file fetched for an earlier audio request, if any.
func (p *DirectProvider) downloaded(workDir string) string {
	matches, _ := filepath.Glob(filepath.Join(workDir, directSourceName+".*"))
	for _, m := range matches {
		if filepath.Ext(m) == ".part" {
			continue
		}
		return m
	}
	return ""
}
