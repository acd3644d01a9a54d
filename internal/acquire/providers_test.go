package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

func TestMP36Provider(t *testing.T) {
	var gotKey, gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-rapidapi-key")
		gotHost = r.Header.Get("x-rapidapi-host")
		if r.URL.Path != "/dl" || r.URL.Query().Get("id") != "dQw4w9WgXcQ" {
			t.Errorf("unexpected request %s", r.URL)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "link": "https://cdn.example/a.mp3"})
	}))
	defer srv.Close()

	p := NewMP36Provider(srv.Client(), "secret", srv.URL, "ua")
	req := youtubeRequest(t)

	res, err := p.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.URL != "https://cdn.example/a.mp3" {
		t.Fatalf("unexpected url %q", res.URL)
	}
	if gotKey != "secret" || gotHost != HostMP36 {
		t.Fatalf("missing rapidapi headers: key=%q host=%q", gotKey, gotHost)
	}

	req.Kind = model.MediaVideo
	if p.Supports(req) {
		t.Fatal("mp36 is audio only")
	}
}

func TestRapidAPIProviders_RequireKey(t *testing.T) {
	req := youtubeRequest(t)
	providers := []Provider{
		NewMP36Provider(http.DefaultClient, "", "", ""),
		NewYTStreamProvider(http.DefaultClient, "", "", ""),
		NewYTAPIProvider(http.DefaultClient, "", "", ""),
	}
	for _, p := range providers {
		if p.Supports(req) {
			t.Errorf("%s must be skipped without an api key", p.Name())
		}
	}
}

func TestStreamProvider_PicksFormats(t *testing.T) {
	payload := streamPayload{
		Status: "OK",
		Formats: []streamFormat{
			{URL: "https://v/360", MimeType: "video/mp4; codecs=\"avc1\"", Height: 360},
			{URL: "https://v/720", MimeType: "video/mp4; codecs=\"avc1\"", Height: 720},
			{MimeType: "video/mp4", Height: 1080},
		},
		AdaptiveFormats: []streamFormat{
			{URL: "https://a/low", MimeType: "audio/webm", Bitrate: 64000},
			{URL: "https://a/high", MimeType: "audio/mp4", Bitrate: 128000},
			{URL: "https://v/only", MimeType: "video/webm", Bitrate: 900000},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	p := NewYTStreamProvider(srv.Client(), "k", srv.URL, "")
	req := youtubeRequest(t)

	res, err := p.Resolve(context.Background(), req)
	if err != nil || res.URL != "https://a/high" {
		t.Fatalf("audio: got %+v, %v", res, err)
	}
	req.Kind = model.MediaVideo
	res, err = p.Resolve(context.Background(), req)
	if err != nil || res.URL != "https://v/720" {
		t.Fatalf("video: got %+v, %v", res, err)
	}
}

func TestStreamProvider_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","adaptiveFormats":[]}`))
	}))
	defer srv.Close()

	p := NewYTStreamProvider(srv.Client(), "k", srv.URL, "")
	if _, err := p.Resolve(context.Background(), youtubeRequest(t)); err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

func TestCobaltProvider_TriesInstancesInOrder(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","text":"youtube is blocked"}`))
	}))
	defer bad.Close()

	var gotAudioOnly bool
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/json" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body cobaltRequest
		json.NewDecoder(r.Body).Decode(&body)
		gotAudioOnly = body.IsAudioOnly
		w.Write([]byte(`{"status":"stream","url":"https://cobalt/tunnel?id=1"}`))
	}))
	defer good.Close()

	p := NewCobaltProvider(http.DefaultClient, []string{bad.URL, good.URL + "/"}, "")
	res, err := p.Resolve(context.Background(), youtubeRequest(t))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.URL != "https://cobalt/tunnel?id=1" || !gotAudioOnly {
		t.Fatalf("unexpected result %+v audioOnly=%v", res, gotAudioOnly)
	}
}

func TestCobaltProvider_AllInstancesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewCobaltProvider(http.DefaultClient, []string{srv.URL, srv.URL}, "")
	_, err := p.Resolve(context.Background(), youtubeRequest(t))
	if err == nil || strings.Count(err.Error(), "status 502") != 2 {
		t.Fatalf("expected both instance errors, got %v", err)
	}
}

type fakeDownloader struct {
	req  media.DownloadRequest
	err  error
	size int
}

func (f *fakeDownloader) Download(ctx context.Context, req media.DownloadRequest) ([]string, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	p := req.OutputTemplate + ".m4a"
	if err := os.WriteFile(p, make([]byte, f.size), 0o644); err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func TestYtDlpProviders(t *testing.T) {
	req := youtubeRequest(t)

	withoutCookies := NewYtDlpCookiesProvider(&fakeDownloader{}, "", "")
	if withoutCookies.Supports(req) {
		t.Fatal("cookies provider must be skipped without a cookies file")
	}

	d := &fakeDownloader{size: 11000}
	p := NewYtDlpCookiesProvider(d, "/run/secrets/cookies.txt", "ua")
	if !p.Supports(req) {
		t.Fatal("expected cookies provider to support youtube when configured")
	}
	res, err := p.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !d.req.AudioOnly || d.req.CookiesFile != "/run/secrets/cookies.txt" {
		t.Fatalf("unexpected download request %+v", d.req)
	}
	if filepath.Dir(res.Path) != req.WorkDir {
		t.Fatalf("expected output inside workdir, got %s", res.Path)
	}

	failing := NewYtDlpProvider(&fakeDownloader{err: &media.ExecError{Tool: "yt-dlp", Err: errors.New("exit status 1"), Output: "ERROR: Sign in to confirm you're not a bot"}}, "")
	_, err = failing.Resolve(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "not a bot") {
		t.Fatalf("expected diagnostic tail in error, got %v", err)
	}
}

type fakeTranscoder struct {
	media.Transcoder
	extracted []string
}

func (f *fakeTranscoder) ExtractAudio(ctx context.Context, input, output string, start, duration float64) error {
	f.extracted = append(f.extracted, input)
	return os.WriteFile(output, make([]byte, 20000), 0o644)
}

func TestUploadProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "source.mp4"), make([]byte, 30000), 0o644); err != nil {
		t.Fatal(err)
	}
	tr := &fakeTranscoder{}
	p := NewUploadProvider(tr)
	req := Request{Source: model.SourceRef{Kind: model.SourceUpload, FileName: "source.mp4"}, Kind: model.MediaVideo, WorkDir: dir}

	res, err := p.Resolve(context.Background(), req)
	if err != nil || res.Path != filepath.Join(dir, "source.mp4") {
		t.Fatalf("video: %+v, %v", res, err)
	}

	req.Kind = model.MediaAudio
	res, err = p.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	if len(tr.extracted) != 1 || tr.extracted[0] != filepath.Join(dir, "source.mp4") {
		t.Fatalf("expected audio to be extracted from the upload, got %v", tr.extracted)
	}
	if filepath.Base(res.Path) != "audio-upload.mp3" {
		t.Fatalf("unexpected audio path %s", res.Path)
	}
}

func TestDirectProvider_FetchesWithBrowserAgentAndExtractsLocally(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(make([]byte, 30000))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tr := &fakeTranscoder{}
	fetcher := NewFetcher(srv.Client(), "Mozilla/5.0 test")
	chain := NewChain([]Provider{NewDirectProvider(tr, fetcher)}, fetcher, 10000)
	src := model.SourceRef{Kind: model.SourceURL, URL: srv.URL + "/talk.mp4"}

	audio, err := chain.AcquireAudio(context.Background(), "job-1", src, dir)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	if len(agents) != 1 || agents[0] != "Mozilla/5.0 test" {
		t.Fatalf("expected one request with the browser user agent, got %q", agents)
	}
	if len(tr.extracted) != 1 || filepath.Dir(tr.extracted[0]) != dir {
		t.Fatalf("expected audio to be extracted from a local file, got %v", tr.extracted)
	}
	if filepath.Base(audio.Path) != "audio-direct.mp3" {
		t.Fatalf("unexpected audio path %s", audio.Path)
	}

	video, err := chain.AcquireVideo(context.Background(), "job-1", src, dir)
	if err != nil {
		t.Fatalf("video: %v", err)
	}
	if video.Path != tr.extracted[0] || len(agents) != 1 {
		t.Fatalf("expected the earlier download to be reused, got %s after %d requests", video.Path, len(agents))
	}
}

func TestDirectProvider_RejectsErrorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login required</html>"))
	}))
	defer srv.Close()

	tr := &fakeTranscoder{}
	p := NewDirectProvider(tr, NewFetcher(srv.Client(), ""))
	req := Request{Source: model.SourceRef{Kind: model.SourceURL, URL: srv.URL + "/talk.mp4"}, Kind: model.MediaAudio, WorkDir: t.TempDir()}
	if _, err := p.Resolve(context.Background(), req); err == nil {
		t.Fatal("expected html response to be rejected")
	}
	if len(tr.extracted) != 0 {
		t.Fatal("transcoder must not run on a rejected download")
	}
}

func TestNewChainFromConfig_UnknownProvider(t *testing.T) {
	_, err := NewChainFromConfig(&config.AcquireConfig{Providers: []string{"upload", "magic"}}, Deps{})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}

	chain, err := NewChainFromConfig(&config.AcquireConfig{Providers: config.DefaultProviders, TimeoutSeconds: 30}, Deps{})
	if err != nil {
		t.Fatalf("default providers: %v", err)
	}
	if got := strings.Join(chain.Providers(), ","); got != strings.Join(config.DefaultProviders, ",") {
		t.Fatalf("unexpected order %s", got)
	}
}
