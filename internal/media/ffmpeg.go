package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CutRequest describes one transcoder invocation: a time range of the input,
// an optional filter chain and an output path.
type CutRequest struct {
	Input    string
	Start    float64
	Duration float64
	Filter   string
	Output   string
}

// Transcoder is the ffmpeg-class contract used by the pipeline.
type Transcoder interface {
	Cut(ctx context.Context, req CutRequest) error
	ExtractAudio(ctx context.Context, input, output string, start, duration float64) error
	Thumbnail(ctx context.Context, input string, at float64, output string) error
	ProbeDuration(ctx context.Context, input string) (float64, error)
}

// FFmpeg runs ffmpeg and ffprobe.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	preset  string
	crf     int
	timeout time.Duration
	runner  Runner
}

type FFmpegOption func(*FFmpeg)

func WithEncoder(preset string, crf int) FFmpegOption {
	return func(f *FFmpeg) {
		if preset != "" {
			f.preset = preset
		}
		if crf > 0 {
			f.crf = crf
		}
	}
}

func WithRunner(r Runner) FFmpegOption {
	return func(f *FFmpeg) { f.runner = r }
}

func NewFFmpeg(ffmpegPath, ffprobePath string, timeout time.Duration, opts ...FFmpegOption) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	f := &FFmpeg{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		preset:  "fast",
		crf:     23,
		timeout: timeout,
		runner:  ExecRunner,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *FFmpeg) Cut(ctx context.Context, req CutRequest) error {
	if req.Duration <= 0 {
		return fmt.Errorf("ffmpeg cut: non-positive duration %.3f", req.Duration)
	}
	args := []string{
		"-y",
		"-ss", fmtSeconds(req.Start),
		"-i", req.Input,
		"-t", fmtSeconds(req.Duration),
	}
	if req.Filter != "" {
		args = append(args, "-vf", req.Filter)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		req.Output,
	)
	_, err := run(ctx, f.runner, f.timeout, f.ffmpeg, args...)
	return err
}

// ExtractAudio writes a mono 16 kHz mp3 of [start, start+duration). A zero
// duration extracts to the end of the input.
func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string, start, duration float64) error {
	args := []string{"-y"}
	if start > 0 {
		args = append(args, "-ss", fmtSeconds(start))
	}
	args = append(args, "-i", input)
	if duration > 0 {
		args = append(args, "-t", fmtSeconds(duration))
	}
	args = append(args,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		output,
	)
	_, err := run(ctx, f.runner, f.timeout, f.ffmpeg, args...)
	return err
}

func (f *FFmpeg) Thumbnail(ctx context.Context, input string, at float64, output string) error {
	_, err := run(ctx, f.runner, f.timeout, f.ffmpeg,
		"-y",
		"-ss", fmtSeconds(at),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	)
	return err
}

func (f *FFmpeg) ProbeDuration(ctx context.Context, input string) (float64, error) {
	b, err := run(ctx, f.runner, f.timeout, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func fmtSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// EscapeFilterPath quotes a path for use inside an ffmpeg filter argument.
func EscapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}
