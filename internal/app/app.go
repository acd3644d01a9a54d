// Package app assembles the clip pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/acquire"
	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/highlight"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/pipeline"
	"github.com/clipforge/api/internal/render"
	"github.com/clipforge/api/internal/store"
	"github.com/clipforge/api/internal/subtitle"
	"github.com/clipforge/api/internal/transcribe"
	"github.com/clipforge/api/internal/workspace"
)

// Components are the long-lived collaborators of a running pipeline.
type Components struct {
	Config      *config.Config
	Store       store.JobStore
	Workspace   *workspace.Manager
	FFmpeg      *media.FFmpeg
	Acquirer    *acquire.Chain
	Groq        *client.GroqClient
	Transcriber *transcribe.Adapter
	Renderer    *render.Pipeline
	R2          *client.R2Client
}

// Build wires every component. rdb may be nil unless the redis store is selected.
func Build(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Components, error) {
	toolTimeout := time.Duration(cfg.Tools.TimeoutSeconds) * time.Second
	ffmpeg := media.NewFFmpeg(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, toolTimeout,
		media.WithEncoder(cfg.Render.Preset, cfg.Render.CRF))
	ytdlp := media.NewYtDlp(cfg.Tools.YtDlp, toolTimeout, nil)

	chain, err := acquire.NewChainFromConfig(&cfg.Acquire, acquire.Deps{
		Transcoder: ffmpeg,
		Downloader: ytdlp,
	})
	if err != nil {
		return nil, err
	}

	groq := client.NewGroqClient(&cfg.Groq)
	if !groq.IsConfigured() {
		log.Println("Warning: GROQ_API_KEY not set, transcription will fail")
	}
	adapter := transcribe.NewAdapter(groq, ffmpeg, transcribe.Options{
		MaxBytes:     int64(cfg.Groq.MaxUploadMB) << 20,
		ChunkSeconds: float64(cfg.Groq.ChunkSeconds),
	})

	styles := subtitle.DefaultStyles()
	if cfg.Render.StylesFile != "" {
		styles, err = subtitle.LoadStyles(cfg.Render.StylesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load caption styles: %w", err)
		}
	}

	renderOpts := []render.Option{render.WithStyles(styles)}
	var r2 *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
			r2 = nil
		} else {
			renderOpts = append(renderOpts, render.WithPublisher(client.NewArtifactPublisher(r2, 24*time.Hour)))
		}
	} else {
		log.Println("Info: R2 storage not configured, serving artifacts from the working directory")
	}

	st, err := store.Open(ctx, &cfg.Store, rdb)
	if err != nil {
		return nil, err
	}

	return &Components{
		Config:      cfg,
		Store:       st,
		Workspace:   workspace.NewManager(cfg.Workspace.BaseDir),
		FFmpeg:      ffmpeg,
		Acquirer:    chain,
		Groq:        groq,
		Transcriber: adapter,
		Renderer:    render.NewPipeline(ffmpeg, renderOpts...),
		R2:          r2,
	}, nil
}

// Orchestrator returns an orchestrator over the components. The scheduler
// decides how finished workdirs are released; notifier may be nil.
func (c *Components) Orchestrator(sched workspace.Scheduler, notifier pipeline.Notifier) *pipeline.Orchestrator {
	cfg := c.Config
	deps := pipeline.Deps{
		Store:       c.Store,
		Workspace:   c.Workspace,
		Scheduler:   sched,
		Acquirer:    c.Acquirer,
		Transcriber: c.Transcriber,
		Renderer:    c.Renderer,
	}
	if notifier != nil {
		deps.Notifier = notifier
	}
	return pipeline.New(deps, pipeline.Options{
		Highlight:      HighlightOptions(&cfg.Highlight),
		CleanupDelay:   time.Duration(cfg.Workspace.CleanupDelayMinutes) * time.Minute,
		MaxUploadBytes: int64(cfg.Render.MaxUploadMB) << 20,
	})
}

func HighlightOptions(cfg *config.HighlightConfig) highlight.Options {
	return highlight.Options{
		StepFraction: cfg.StepFraction,
		MinWords:     cfg.MinWords,
		MaxWords:     cfg.MaxWords,
	}
}

func (c *Components) Close() error {
	return c.Store.Close()
}
