package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clipforge/api/internal/app"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/highlight"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/source"
	"github.com/clipforge/api/internal/transcribe"
	"github.com/clipforge/api/internal/workspace"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url|file>",
		Short: "Run a clip job to completion and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Store.Driver, _ = cmd.Flags().GetString("store")
			cfg.Store.DSN, _ = cmd.Flags().GetString("dsn")
			if err := cfg.Validate(); err != nil {
				return err
			}

			params := paramsFromFlags(cmd)

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
			defer cancel()

			components, err := app.Build(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			// Without --cleanup the working directory is kept so the clips can be used.
			var sched workspace.Scheduler
			cleanup, _ := cmd.Flags().GetBool("cleanup")
			if cleanup {
				local := workspace.NewLocalScheduler(components.Workspace)
				defer local.Flush()
				sched = local
			}
			orch := components.Orchestrator(sched, nil)

			var job *model.Job
			input := args[0]
			if info, statErr := os.Stat(input); statErr == nil && !info.IsDir() {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				job, err = orch.CreateUpload(ctx, filepath.Base(input), info.Size(), f, params, "clipctl")
				f.Close()
				if err != nil {
					return err
				}
			} else {
				job, err = orch.Create(ctx, input, params, "clipctl")
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "job %s queued\n", job.ID)

			job, err = orch.Run(ctx, job.ID)
			if err != nil {
				return err
			}
			if job.Status == model.JobStatusFailed {
				msg := ""
				if job.ErrorMessage != nil {
					msg = *job.ErrorMessage
				}
				return fmt.Errorf("job %s failed (%s): %s", job.ID, job.ErrorCode, msg)
			}
			if out, _ := cmd.Flags().GetString("out"); out != "" {
				if err := exportArtifacts(components.Workspace, job, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "clips copied to %s\n", out)
			} else if !cleanup {
				dir, _ := components.Workspace.Path(job.ID)
				fmt.Fprintf(cmd.ErrOrStderr(), "clips written to %s\n", dir)
			}
			return printJSON(cmd, model.NewJobStatusResponse(job))
		},
	}
	cmd.Flags().Int("duration", model.DefaultClipDuration, "Target clip length in seconds")
	cmd.Flags().Int("clips", model.DefaultMaxClips, "Maximum number of clips")
	cmd.Flags().String("aspect", string(model.DefaultAspectRatio), "Aspect ratio: 9:16, 16:9 or 1:1")
	cmd.Flags().String("style", string(model.DefaultCaptionStyle), "Caption style: classic, bold, outline or glow")
	cmd.Flags().Bool("no-captions", false, "Do not burn captions into clips")
	cmd.Flags().Bool("cleanup", false, "Remove the working directory when done")
	cmd.Flags().String("out", "", "Copy clips, thumbnails and the archive to this directory")
	cmd.Flags().String("store", "sqlite", "Job store driver: sqlite, redis or postgres")
	cmd.Flags().String("dsn", "", "Job store DSN")
	return cmd
}

// exportArtifacts copies a completed job's files out of its working directory
// before the directory is released.
func exportArtifacts(ws *workspace.Manager, job *model.Job, out string) error {
	if job.Result == nil {
		return nil
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	var names []string
	for _, c := range job.Result.Clips {
		names = append(names, c.Filename)
		if c.Thumbnail != "" {
			names = append(names, c.Thumbnail)
		}
	}
	if job.Result.Archive != nil {
		names = append(names, job.Result.Archive.Filename)
	}
	for _, name := range names {
		src, err := ws.File(job.ID, name)
		if err != nil {
			return err
		}
		if err := copyFile(src, filepath.Join(out, name)); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func paramsFromFlags(cmd *cobra.Command) model.JobParams {
	duration, _ := cmd.Flags().GetInt("duration")
	clips, _ := cmd.Flags().GetInt("clips")
	aspect, _ := cmd.Flags().GetString("aspect")
	style, _ := cmd.Flags().GetString("style")
	noCaptions, _ := cmd.Flags().GetBool("no-captions")

	return model.JobParams{
		ClipDuration: duration,
		MaxClips:     clips,
		AspectRatio:  model.AspectRatio(aspect),
		AddCaptions:  !noCaptions,
		CaptionStyle: model.CaptionStyle(style),
	}
}

func selectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <transcript.json>",
		Short: "Pick highlight clips from a transcript file",
		Long:  "Reads a JSON array of transcript segments ({\"start\",\"end\",\"text\"}) and prints the selected clips.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var segments []model.TranscriptSegment
			if err := json.Unmarshal(data, &segments); err != nil {
				return fmt.Errorf("parse transcript: %w", err)
			}

			duration, _ := cmd.Flags().GetInt("duration")
			clips, _ := cmd.Flags().GetInt("clips")
			step, _ := cmd.Flags().GetFloat64("step")

			opts := highlight.DefaultOptions()
			opts.StepFraction = step
			selected, err := highlight.Select(transcribe.Normalize(segments), float64(duration), clips, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, selected)
		},
	}
	cmd.Flags().Int("duration", model.DefaultClipDuration, "Target clip length in seconds")
	cmd.Flags().Int("clips", model.DefaultMaxClips, "Maximum number of clips")
	cmd.Flags().Float64("step", highlight.DefaultOptions().StepFraction, "Window step as a fraction of the clip length")
	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a source's audio or video through the provider chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := sectionFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Store.Driver = "sqlite"
			cfg.Store.DSN = ":memory:"

			src, err := source.Parse(args[0])
			if err != nil {
				return err
			}

			components, err := app.Build(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out, err = components.Workspace.Acquire("fetch-" + uuid.New().String()[:8])
				if err != nil {
					return err
				}
			} else if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}

			video, _ := cmd.Flags().GetBool("video")
			if section != nil {
				return fetchSection(cmd, cfg, src, out, video, *section)
			}

			fetch := components.Acquirer.AcquireAudio
			if video {
				fetch = components.Acquirer.AcquireVideo
			}
			m, err := fetch(cmd.Context(), "fetch", src, out)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"path":     m.Path,
				"size":     m.Size,
				"provider": m.Provider,
			})
		},
	}
	cmd.Flags().Bool("video", false, "Fetch video instead of audio")
	cmd.Flags().String("out", "", "Output directory (default: a new directory under the workspace)")
	cmd.Flags().Float64("from", 0, "Section start in seconds (yt-dlp only)")
	cmd.Flags().Float64("to", 0, "Section end in seconds; enables section download")
	return cmd
}

// sectionFromFlags maps --from/--to onto a time range. Without --to the whole
// source is fetched and the result is nil.
func sectionFromFlags(cmd *cobra.Command) (*media.TimeRange, error) {
	from, _ := cmd.Flags().GetFloat64("from")
	to, _ := cmd.Flags().GetFloat64("to")
	if from < 0 {
		return nil, fmt.Errorf("--from must not be negative")
	}
	if to <= 0 {
		return nil, nil
	}
	if to <= from {
		return nil, fmt.Errorf("--to must be after --from")
	}
	return &media.TimeRange{Start: from, End: to}, nil
}

// fetchSection downloads part of a source straight through yt-dlp. The
// provider chain always fetches whole files.
func fetchSection(cmd *cobra.Command, cfg *config.Config, src model.SourceRef, out string, video bool, section media.TimeRange) error {
	if src.URL == "" {
		return fmt.Errorf("section downloads need a url source")
	}
	ytdlp := media.NewYtDlp(cfg.Tools.YtDlp, time.Duration(cfg.Tools.TimeoutSeconds)*time.Second, nil)
	kind := model.MediaAudio
	if video {
		kind = model.MediaVideo
	}
	files, err := ytdlp.Download(cmd.Context(), media.DownloadRequest{
		URL:            src.URL,
		OutputTemplate: filepath.Join(out, fmt.Sprintf("%s-%.0f-%.0f", kind, section.Start, section.End)),
		AudioOnly:      !video,
		Section:        &section,
		CookiesFile:    cfg.Acquire.CookiesFile,
		UserAgent:      cfg.Acquire.UserAgent,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{
		"files":    files,
		"provider": "ytdlp",
		"section":  []float64{section.Start, section.End},
	})
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove working directories older than the configured maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			maxAge := time.Duration(cfg.Workspace.MaxAgeHours) * time.Hour
			if v, _ := cmd.Flags().GetDuration("max-age"); v > 0 {
				maxAge = v
			}
			n, err := workspace.NewManager(cfg.Workspace.BaseDir).Sweep(maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d directories\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("max-age", 0, "Override the maximum age, e.g. 2h")
	return cmd
}
