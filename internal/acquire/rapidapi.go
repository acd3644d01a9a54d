package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/clipforge/api/internal/model"
)

// RapidAPI hosts of the download services.
const (
	HostMP36     = "youtube-mp36.p.rapidapi.com"
	HostYTStream = "ytstream-download-youtube-videos.p.rapidapi.com"
	HostYTAPI    = "yt-api.p.rapidapi.com"
)

// rapidAPI is the shared transport of the RapidAPI-hosted download services.
type rapidAPI struct {
	client    *http.Client
	apiKey    string
	host      string
	baseURL   string
	userAgent string
}

func newRapidAPI(client *http.Client, apiKey, host, baseURL, userAgent string) rapidAPI {
	if baseURL == "" {
		baseURL = "https://" + host
	}
	return rapidAPI{client: client, apiKey: apiKey, host: host, baseURL: strings.TrimRight(baseURL, "/"), userAgent: userAgent}
}

func (r rapidAPI) get(ctx context.Context, videoID string, out any) error {
	endpoint := fmt.Sprintf("%s/dl?id=%s", r.baseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", r.apiKey)
	req.Header.Set("x-rapidapi-host", r.host)
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", r.host, resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed %s payload: %w", r.host, err)
	}
	return nil
}

func (r rapidAPI) supports(req Request) bool {
	return r.apiKey != "" && req.Source.Kind == model.SourceYouTube && req.Source.VideoID != ""
}

// MP36Provider converts a video to an mp3 link. Audio only.
type MP36Provider struct{ api rapidAPI }

func NewMP36Provider(client *http.Client, apiKey, baseURL, userAgent string) *MP36Provider {
	return &MP36Provider{api: newRapidAPI(client, apiKey, HostMP36, baseURL, userAgent)}
}

func (p *MP36Provider) Name() string { return "rapidapi-mp36" }

func (p *MP36Provider) Supports(req Request) bool {
	return req.Kind == model.MediaAudio && p.api.supports(req)
}

func (p *MP36Provider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	var data struct {
		Status string `json:"status"`
		Link   string `json:"link"`
		Msg    string `json:"msg"`
	}
	if err := p.api.get(ctx, req.Source.VideoID, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" || data.Link == "" {
		return nil, fmt.Errorf("mp36 status %q: %s", data.Status, data.Msg)
	}
	return &Resolved{URL: data.Link}, nil
}

// streamFormat is one entry of a player-response style format list.
type streamFormat struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Bitrate  int    `json:"bitrate"`
	Height   int    `json:"height"`
}

type streamPayload struct {
	Status          string         `json:"status"`
	Formats         []streamFormat `json:"formats"`
	AdaptiveFormats []streamFormat `json:"adaptiveFormats"`
}

// pickFormat chooses an audio-only adaptive stream for audio and a muxed
// mp4 stream for video. Ties keep the earlier entry.
func pickFormat(p streamPayload, kind model.MediaKind) (streamFormat, bool) {
	var best streamFormat
	found := false
	if kind == model.MediaAudio {
		for _, f := range p.AdaptiveFormats {
			if f.URL == "" || !strings.HasPrefix(f.MimeType, "audio/") {
				continue
			}
			if !found || f.Bitrate > best.Bitrate {
				best, found = f, true
			}
		}
		return best, found
	}
	for _, f := range p.Formats {
		if f.URL == "" || !strings.HasPrefix(f.MimeType, "video/mp4") {
			continue
		}
		if !found || f.Height > best.Height {
			best, found = f, true
		}
	}
	return best, found
}

// StreamProvider reads a player-response style format list from a RapidAPI
// service (ytstream or yt-api).
type StreamProvider struct {
	name         string
	api          rapidAPI
	expectStatus string
}

func NewYTStreamProvider(client *http.Client, apiKey, baseURL, userAgent string) *StreamProvider {
	return &StreamProvider{name: "rapidapi-ytstream", api: newRapidAPI(client, apiKey, HostYTStream, baseURL, userAgent), expectStatus: "OK"}
}

func NewYTAPIProvider(client *http.Client, apiKey, baseURL, userAgent string) *StreamProvider {
	return &StreamProvider{name: "rapidapi-ytapi", api: newRapidAPI(client, apiKey, HostYTAPI, baseURL, userAgent)}
}

func (p *StreamProvider) Name() string { return p.name }

func (p *StreamProvider) Supports(req Request) bool { return p.api.supports(req) }

func (p *StreamProvider) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	var data streamPayload
	if err := p.api.get(ctx, req.Source.VideoID, &data); err != nil {
		return nil, err
	}
	if p.expectStatus != "" && data.Status != p.expectStatus {
		return nil, fmt.Errorf("%s status %q", p.name, data.Status)
	}
	f, ok := pickFormat(data, req.Kind)
	if !ok {
		return nil, fmt.Errorf("%s returned no direct %s stream", p.name, req.Kind)
	}
	return &Resolved{URL: f.URL}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
