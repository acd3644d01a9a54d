// Package acquire obtains media bytes for a source by walking an ordered
// list of providers until one of them yields a usable file.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/model"
)

// DefaultMinBytes is the size under which a payload is treated as an error page.
const DefaultMinBytes = 10000

// Request asks for one kind of media for a source.
type Request struct {
	JobID   string
	Source  model.SourceRef
	Kind    model.MediaKind
	WorkDir string
}

// Resolved is a provider's answer: either a URL the chain should fetch or a
// file the provider already wrote.
type Resolved struct {
	URL    string
	Header http.Header
	Path   string
}

// Provider is one way of getting media for a source.
type Provider interface {
	Name() string
	// Supports reports whether the provider can serve the request. Providers
	// that need a token they were not given return false.
	Supports(req Request) bool
	Resolve(ctx context.Context, req Request) (*Resolved, error)
}

// Media is an acquired file on local disk.
type Media struct {
	Path     string
	Size     int64
	Provider string
}

// Bytes reads the whole file.
func (m *Media) Bytes() ([]byte, error) {
	return os.ReadFile(m.Path)
}

// Chain tries providers in order and stops at the first success.
type Chain struct {
	providers []Provider
	fetcher   *Fetcher
	minBytes  int64
}

func NewChain(providers []Provider, fetcher *Fetcher, minBytes int64) *Chain {
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}
	return &Chain{providers: providers, fetcher: fetcher, minBytes: minBytes}
}

// Providers returns the provider names in order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// AcquireAudio returns the audio track of the source.
func (c *Chain) AcquireAudio(ctx context.Context, jobID string, src model.SourceRef, workDir string) (*Media, error) {
	return c.Fetch(ctx, Request{JobID: jobID, Source: src, Kind: model.MediaAudio, WorkDir: workDir})
}

// AcquireVideo returns a local path to the source video.
func (c *Chain) AcquireVideo(ctx context.Context, jobID string, src model.SourceRef, workDir string) (*Media, error) {
	return c.Fetch(ctx, Request{JobID: jobID, Source: src, Kind: model.MediaVideo, WorkDir: workDir})
}

// Fetch walks the chain. Any provider error, non-2xx response, malformed
// payload or undersized result moves on to the next provider.
func (c *Chain) Fetch(ctx context.Context, req Request) (*Media, error) {
	var attempts []string
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.Supports(req) {
			continue
		}
		log.Printf("[job %s] acquire %s: trying %s", req.JobID, req.Kind, p.Name())
		m, err := c.try(ctx, p, req)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil, err
			}
			log.Printf("[job %s] acquire %s: %s failed: %v", req.JobID, req.Kind, p.Name(), err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		log.Printf("[job %s] acquire %s: %s returned %d bytes", req.JobID, req.Kind, p.Name(), m.Size)
		return m, nil
	}

	if len(attempts) == 0 {
		return nil, &apperr.Error{
			Kind:    apperr.KindAcquisitionExhausted,
			Message: fmt.Sprintf("no provider can fetch %s for a %s source", req.Kind, req.Source.Kind),
		}
	}
	return nil, &apperr.Error{
		Kind:    apperr.KindAcquisitionExhausted,
		Message: fmt.Sprintf("all %d providers failed to fetch %s", len(attempts), req.Kind),
		Detail:  strings.Join(attempts, "\n"),
	}
}

func (c *Chain) try(ctx context.Context, p Provider, req Request) (*Media, error) {
	res, err := p.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil || (res.URL == "" && res.Path == "") {
		return nil, fmt.Errorf("provider returned nothing")
	}

	path := res.Path
	if path == "" {
		dest := filepath.Join(req.WorkDir, fmt.Sprintf("%s-%s", req.Kind, sanitizeName(p.Name())))
		path, err = c.fetcher.Download(ctx, res.URL, res.Header, dest, req.Kind)
		if err != nil {
			return nil, err
		}
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat result: %w", err)
	}
	if fi.Size() < c.minBytes {
		_ = os.Remove(path)
		return nil, fmt.Errorf("undersized payload: %d bytes (minimum %d)", fi.Size(), c.minBytes)
	}
	return &Media{Path: path, Size: fi.Size(), Provider: p.Name()}, nil
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
