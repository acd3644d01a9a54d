// Package transcribe turns an audio file into ordered transcript segments.
package transcribe

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

const (
	// WordsPerSegment is the size of synthesized segments when the service
	// returns text without timings.
	WordsPerSegment = 20
	// WordsPerSecond estimates speech rate when no duration is known.
	WordsPerSecond = 2.5
)

// Service is the speech-to-text backend.
type Service interface {
	Transcribe(ctx context.Context, audioPath string) (*client.TranscriptionResponse, error)
}

type Options struct {
	MaxBytes     int64
	ChunkSeconds float64
}

// Result is a normalized transcript. Degraded is set when any part of it was
// synthesized from untimed text.
type Result struct {
	Segments []model.TranscriptSegment
	Degraded bool
	Chunks   int
}

// Adapter sends audio to the service, chunking it when it is over the upload ceiling.
type Adapter struct {
	service    Service
	transcoder media.Transcoder
	opts       Options
}

func NewAdapter(service Service, transcoder media.Transcoder, opts Options) *Adapter {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 25 << 20
	}
	if opts.ChunkSeconds <= 0 {
		opts.ChunkSeconds = 300
	}
	return &Adapter{service: service, transcoder: transcoder, opts: opts}
}

// Transcribe returns segments on the audio's global timeline.
func (a *Adapter) Transcribe(ctx context.Context, jobID, audioPath, workDir string) (*Result, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranscription, err, "audio not readable")
	}

	if info.Size() <= a.opts.MaxBytes {
		resp, err := a.call(ctx, audioPath)
		if err != nil {
			return nil, err
		}
		segs, degraded := a.segments(ctx, resp, audioPath, 0)
		return &Result{Segments: Normalize(segs), Degraded: degraded, Chunks: 1}, nil
	}

	total, err := a.transcoder.ProbeDuration(ctx, audioPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTranscription, err, "probe audio duration")
	}
	if total <= 0 {
		return nil, apperr.New(apperr.KindTranscription, "audio has no duration")
	}

	n := int(math.Ceil(total / a.opts.ChunkSeconds))
	log.Printf("[job %s] audio is %d bytes, transcribing in %d chunks of %.0fs", jobID, info.Size(), n, a.opts.ChunkSeconds)

	var (
		all      []model.TranscriptSegment
		degraded bool
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := float64(i) * a.opts.ChunkSeconds
		length := math.Min(a.opts.ChunkSeconds, total-start)
		chunk := filepath.Join(workDir, fmt.Sprintf("chunk_%03d.mp3", i))

		if err := a.transcoder.ExtractAudio(ctx, audioPath, chunk, start, length); err != nil {
			return nil, apperr.Wrap(apperr.KindTranscription, err, "split audio chunk %d", i)
		}
		resp, err := a.call(ctx, chunk)
		os.Remove(chunk)
		if err != nil {
			return nil, err
		}
		if resp.Duration <= 0 {
			resp.Duration = length
		}
		segs, d := a.segments(ctx, resp, "", start)
		degraded = degraded || d
		all = append(all, segs...)
	}

	return &Result{Segments: Normalize(all), Degraded: degraded, Chunks: n}, nil
}

func (a *Adapter) call(ctx context.Context, path string) (*client.TranscriptionResponse, error) {
	resp, err := a.service.Transcribe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Wrap(apperr.KindTranscription, err, "transcription service failed")
	}
	if resp == nil {
		return nil, apperr.New(apperr.KindTranscription, "transcription service returned no payload")
	}
	return resp, nil
}

// segments converts a response and shifts it by offset seconds. probePath,
// when set, is used to estimate duration for untimed text.
func (a *Adapter) segments(ctx context.Context, resp *client.TranscriptionResponse, probePath string, offset float64) ([]model.TranscriptSegment, bool) {
	if len(resp.Segments) > 0 {
		out := make([]model.TranscriptSegment, 0, len(resp.Segments))
		for _, s := range resp.Segments {
			out = append(out, model.TranscriptSegment{
				Start: s.Start + offset,
				End:   s.End + offset,
				Text:  s.Text,
			})
		}
		return out, false
	}

	duration := resp.Duration
	if duration <= 0 && probePath != "" && a.transcoder != nil {
		if d, err := a.transcoder.ProbeDuration(ctx, probePath); err == nil {
			duration = d
		}
	}
	return Synthesize(resp.Text, duration, offset), true
}

// Synthesize splits untimed text into WordsPerSegment-word segments spread
// evenly over duration. A non-positive duration is estimated from word count.
func Synthesize(text string, duration, offset float64) []model.TranscriptSegment {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if duration <= 0 {
		duration = float64(len(words)) / WordsPerSecond
	}
	perWord := duration / float64(len(words))

	var out []model.TranscriptSegment
	for i := 0; i < len(words); i += WordsPerSegment {
		j := i + WordsPerSegment
		if j > len(words) {
			j = len(words)
		}
		out = append(out, model.TranscriptSegment{
			Start: offset + float64(i)*perWord,
			End:   offset + float64(j)*perWord,
			Text:  strings.Join(words[i:j], " "),
		})
	}
	return out
}

// Normalize trims text, drops empty segments, enforces start <= end, orders by
// start and renumbers from zero.
func Normalize(segs []model.TranscriptSegment) []model.TranscriptSegment {
	out := make([]model.TranscriptSegment, 0, len(segs))
	for _, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		out[i].Index = i
	}
	return out
}
