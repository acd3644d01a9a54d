package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DownloadRequest describes one downloader invocation.
type DownloadRequest struct {
	URL string
	// OutputTemplate is a path without extension; the tool appends one.
	OutputTemplate string
	AudioOnly      bool
	// Section limits the download to [Start, End) seconds when End > Start.
	Section     *TimeRange
	CookiesFile string
	UserAgent   string
}

type TimeRange struct {
	Start float64
	End   float64
}

// Downloader is the yt-dlp-class contract: a URL in, matching files out.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest) ([]string, error)
}

// YtDlp runs yt-dlp.
type YtDlp struct {
	bin     string
	timeout time.Duration
	runner  Runner
}

func NewYtDlp(bin string, timeout time.Duration, runner Runner) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	if runner == nil {
		runner = ExecRunner
	}
	return &YtDlp{bin: bin, timeout: timeout, runner: runner}
}

func (y *YtDlp) Download(ctx context.Context, req DownloadRequest) ([]string, error) {
	if req.URL == "" || req.OutputTemplate == "" {
		return nil, fmt.Errorf("yt-dlp: url and output template are required")
	}
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-o", req.OutputTemplate + ".%(ext)s",
	}
	if req.AudioOnly {
		args = append(args, "-f", "bestaudio[ext=m4a]/bestaudio")
	} else {
		args = append(args,
			"-f", "bv*[height<=1080][ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b",
			"--merge-output-format", "mp4",
		)
	}
	if req.Section != nil && req.Section.End > req.Section.Start {
		args = append(args,
			"--download-sections", fmt.Sprintf("*%s-%s", fmtSeconds(req.Section.Start), fmtSeconds(req.Section.End)),
			"--force-keyframes-at-cuts",
		)
	}
	if req.CookiesFile != "" {
		args = append(args, "--cookies", req.CookiesFile)
	}
	if req.UserAgent != "" {
		args = append(args, "--user-agent", req.UserAgent)
	}
	args = append(args, req.URL)

	if _, err := run(ctx, y.runner, y.timeout, y.bin, args...); err != nil {
		return nil, err
	}
	files, err := producedFiles(req.OutputTemplate)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("yt-dlp finished but produced no file for %s", req.OutputTemplate)
	}
	return files, nil
}

func producedFiles(template string) ([]string, error) {
	matches, err := filepath.Glob(template + ".*")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if fi, err := os.Stat(m); err == nil && !fi.IsDir() {
			out = append(out, m)
		}
	}
	return out, nil
}
