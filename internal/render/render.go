// Package render cuts selected clips out of a source video, burns in captions,
// grabs thumbnails and bundles the clips into an archive.
package render

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/subtitle"
	"github.com/clipforge/api/internal/workspace"
)

// Publisher copies a finished artifact somewhere clients can fetch it and
// returns its URL.
type Publisher interface {
	Publish(ctx context.Context, jobID, path, filename, contentType string) (string, error)
}

// Locator builds the URL of an artifact served from the job's working directory.
type Locator func(jobID, filename string) string

// FilesLocator serves artifacts through the files endpoint.
func FilesLocator(jobID, filename string) string {
	return fmt.Sprintf("/api/files/%s/%s", jobID, filename)
}

// Request is one job's render input.
type Request struct {
	JobID     string
	VideoPath string
	WorkDir   string
	Segments  []model.TranscriptSegment
	Clips     []model.SelectedClip
	Params    model.JobParams
}

// ProgressFunc is called after each clip with the number of clips handled so far.
type ProgressFunc func(done, total int)

// Pipeline renders clips with a transcoder. A failed clip is skipped and
// recorded; the render fails only when no clip could be produced.
type Pipeline struct {
	transcoder media.Transcoder
	styles     subtitle.Styles
	publisher  Publisher
	locator    Locator
}

type Option func(*Pipeline)

func WithStyles(s subtitle.Styles) Option {
	return func(p *Pipeline) { p.styles = s }
}

// WithPublisher uploads artifacts after rendering. A nil publisher keeps
// artifacts local.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

func WithLocator(l Locator) Option {
	return func(p *Pipeline) { p.locator = l }
}

func NewPipeline(t media.Transcoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		transcoder: t,
		styles:     subtitle.DefaultStyles(),
		locator:    FilesLocator,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Render produces one file per clip plus the archive. The returned clips keep
// their selection ids.
func (p *Pipeline) Render(ctx context.Context, req Request, progress ProgressFunc) (*model.JobResult, error) {
	if len(req.Clips) == 0 {
		return nil, apperr.New(apperr.KindRender, "nothing to render")
	}
	width, height := Dimensions(req.Params.AspectRatio)

	result := &model.JobResult{}
	var lastErr error
	for i, clip := range req.Clips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rendered, err := p.renderClip(ctx, req, clip, width, height)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Warning: [job %s] clip %d skipped: %v", req.JobID, clip.ID, err)
			result.Skipped = append(result.Skipped, model.SkippedClip{ID: clip.ID, Error: err.Error()})
			lastErr = err
		} else {
			result.Clips = append(result.Clips, *rendered)
		}
		if progress != nil {
			progress(i+1, len(req.Clips))
		}
	}

	if len(result.Clips) == 0 {
		var ae *apperr.Error
		if errors.As(lastErr, &ae) {
			return nil, apperr.Render(ae.Err, ae.Detail, "all %d clips failed to render", len(req.Clips))
		}
		return nil, apperr.Wrap(apperr.KindRender, lastErr, "all %d clips failed to render", len(req.Clips))
	}

	archive, err := p.archive(ctx, req, result.Clips)
	if err != nil {
		log.Printf("Warning: [job %s] archive not created: %v", req.JobID, err)
	} else {
		result.Archive = archive
	}
	return result, nil
}

func (p *Pipeline) renderClip(ctx context.Context, req Request, clip model.SelectedClip, width, height int) (*model.SelectedClip, error) {
	name := ClipFilename(clip)
	out := filepath.Join(req.WorkDir, name)

	var filters []string
	if width > 0 {
		filters = append(filters, AspectFilter(width, height))
	}
	if req.Params.AddCaptions {
		f, err := p.captions(req, clip, width, height)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindRender, err, "write captions for clip %d", clip.ID)
		}
		if f != "" {
			filters = append(filters, f)
		}
	}

	err := p.transcoder.Cut(ctx, media.CutRequest{
		Input:    req.VideoPath,
		Start:    clip.Start,
		Duration: clip.End - clip.Start,
		Filter:   strings.Join(filters, ","),
		Output:   out,
	})
	if err != nil {
		return nil, apperr.Render(err, media.DiagnosticTail(err), "cut clip %d", clip.ID)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return nil, apperr.New(apperr.KindRender, "clip %d produced no output", clip.ID)
	}

	clip.Filename = name
	clip.URL = p.locate(ctx, req.JobID, out, name)

	thumb := strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	thumbPath := filepath.Join(req.WorkDir, thumb)
	if err := p.transcoder.Thumbnail(ctx, out, (clip.End-clip.Start)/2, thumbPath); err != nil {
		log.Printf("Warning: [job %s] thumbnail for clip %d: %v", req.JobID, clip.ID, apperr.Wrap(apperr.KindStorage, err, "thumbnail"))
	} else {
		clip.Thumbnail = thumb
		clip.ThumbnailURL = p.locate(ctx, req.JobID, thumbPath, thumb)
	}
	return &clip, nil
}

// captions writes the clip's subtitle file and returns the burn-in filter, or
// "" when no segment falls inside the clip.
func (p *Pipeline) captions(req Request, clip model.SelectedClip, width, height int) (string, error) {
	cues := subtitle.Cues(req.Segments, clip.Start, clip.End)
	if len(cues) == 0 {
		return "", nil
	}
	base := filepath.Join(req.WorkDir, fmt.Sprintf("clip_%d", clip.ID))

	if req.Params.CaptionStyle == model.CaptionClassic {
		path := base + ".srt"
		if err := subtitle.WriteSRT(path, cues); err != nil {
			return "", err
		}
		return fmt.Sprintf("subtitles='%s'", media.EscapeFilterPath(path)), nil
	}

	if width == 0 {
		width, height = 1920, 1080
	}
	path := base + ".ass"
	if err := subtitle.WriteASS(path, cues, p.styles.Get(req.Params.CaptionStyle), width, height); err != nil {
		return "", err
	}
	return fmt.Sprintf("ass='%s'", media.EscapeFilterPath(path)), nil
}

// locate publishes the artifact when a publisher is set and falls back to the
// files endpoint when publishing fails.
func (p *Pipeline) locate(ctx context.Context, jobID, path, name string) string {
	if p.publisher != nil {
		ct, _ := workspace.ContentType(name)
		url, err := p.publisher.Publish(ctx, jobID, path, name, ct)
		if err == nil {
			return url
		}
		log.Printf("Warning: [job %s] publish %s: %v", jobID, name, apperr.Wrap(apperr.KindStorage, err, "publish"))
	}
	return p.locator(jobID, name)
}

func (p *Pipeline) archive(ctx context.Context, req Request, clips []model.SelectedClip) (*model.Artifact, error) {
	name := ArchiveFilename(req.JobID)
	path := filepath.Join(req.WorkDir, name)

	if err := writeZip(path, req.WorkDir, clips); err != nil {
		os.Remove(path)
		return nil, apperr.Wrap(apperr.KindStorage, err, "write archive")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "stat archive")
	}
	return &model.Artifact{
		Filename: name,
		URL:      p.locate(ctx, req.JobID, path, name),
		Size:     info.Size(),
	}, nil
}

// writeZip stores the clip files, and nothing else, in a zip at path.
func writeZip(path, dir string, clips []model.SelectedClip) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	for _, c := range clips {
		if err := addFile(zw, filepath.Join(dir, c.Filename), c.Filename); err != nil {
			zw.Close()
			f.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	// mp4 is already compressed
	hdr.Method = zip.Store
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// Dimensions returns the output frame for an aspect ratio, or 0,0 to keep the source frame.
func Dimensions(ar model.AspectRatio) (int, int) {
	switch ar {
	case model.AspectVertical:
		return 1080, 1920
	case model.AspectSquare:
		return 1080, 1080
	case model.AspectLandscape:
		return 1920, 1080
	default:
		return 0, 0
	}
}

// AspectFilter scales the source to fit inside width x height and pads the rest.
func AspectFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height, width, height)
}

func ClipFilename(c model.SelectedClip) string {
	return fmt.Sprintf("clip_%d_%ds-%ds.mp4", c.ID, int(math.Floor(c.Start)), int(math.Floor(c.End)))
}

func ArchiveFilename(jobID string) string {
	return fmt.Sprintf("clips_%s.zip", jobID)
}
