package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/clipforge/api/internal/model"
)

// CobaltProvider asks public cobalt instances for a direct media URL,
// trying each configured instance in turn.
type CobaltProvider struct {
	client    *http.Client
	instances []string
	userAgent string
}

func NewCobaltProvider(client *http.Client, instances []string, userAgent string) *CobaltProvider {
	return &CobaltProvider{client: client, instances: instances, userAgent: userAgent}
}

func (p *CobaltProvider) Name() string { return "cobalt" }

func (p *CobaltProvider) Supports(req Request) bool {
	return len(p.instances) > 0 && req.Source.Kind == model.SourceYouTube && req.Source.URL != ""
}

type cobaltRequest struct {
	URL             string `json:"url"`
	VCodec          string `json:"vCodec"`
	VQuality        string `json:"vQuality"`
	AFormat         string `json:"aFormat"`
	IsAudioOnly     bool   `json:"isAudioOnly"`
	IsNoTTWatermark bool   `json:"isNoTTWatermark"`
	DisableMetadata bool   `json:"disableMetadata"`
}

type cobaltResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Text   string `json:"text"`
}

func (p *CobaltProvider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	body, err := json.Marshal(cobaltRequest{
		URL:             req.Source.URL,
		VCodec:          "h264",
		VQuality:        "1080",
		AFormat:         "mp3",
		IsAudioOnly:     req.Kind == model.MediaAudio,
		IsNoTTWatermark: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var errs []error
	for _, instance := range p.instances {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		u, err := p.ask(ctx, strings.TrimRight(instance, "/")+"/api/json", body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", instance, err))
			continue
		}
		return &Resolved{URL: u}, nil
	}
	return nil, errors.Join(errs...)
}

func (p *CobaltProvider) ask(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var data cobaltResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("malformed payload: %w", err)
	}
	if data.Status == "error" || data.Status == "rate-limit" {
		return "", fmt.Errorf("cobalt %s: %s", data.Status, data.Text)
	}
	if data.URL == "" {
		return "", fmt.Errorf("cobalt returned no url (status %q)", data.Status)
	}
	return data.URL, nil
}
