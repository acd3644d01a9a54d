package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/acquire"
	"github.com/clipforge/api/internal/auth"
	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/handler"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/pipeline"
	"github.com/clipforge/api/internal/render"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/store"
	"github.com/clipforge/api/internal/transcribe"
	"github.com/clipforge/api/internal/websocket"
	"github.com/clipforge/api/internal/workspace"
)

const (
	testJWTSecret   = "test-secret-for-e2e"
	testUploadLimit = 1 << 20
)

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	media *httptest.Server
}

// videoURL is a direct media link served by the fake origin.
func (ta *testApp) videoURL() string {
	return ta.media.URL + "/talk.mp4"
}

// fakeTranscoder stands in for ffmpeg. Every output is a small non-empty file.
type fakeTranscoder struct{}

func (fakeTranscoder) Cut(ctx context.Context, req media.CutRequest) error {
	return os.WriteFile(req.Output, bytes.Repeat([]byte{0x01}, 2048), 0o644)
}

func (fakeTranscoder) ExtractAudio(ctx context.Context, input, output string, start, duration float64) error {
	return os.WriteFile(output, bytes.Repeat([]byte{0x02}, 20000), 0o644)
}

func (fakeTranscoder) Thumbnail(ctx context.Context, input string, at float64, output string) error {
	return os.WriteFile(output, []byte("jpg"), 0o644)
}

func (fakeTranscoder) ProbeDuration(ctx context.Context, input string) (float64, error) {
	return 600, nil
}

// inlineQueue runs jobs in-process instead of handing them to asynq.
type inlineQueue struct {
	orch *pipeline.Orchestrator
	wg   sync.WaitGroup
}

func (q *inlineQueue) EnqueueJob(ctx context.Context, jobID string) error {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if _, err := q.orch.Run(context.Background(), jobID); err != nil {
			log.Printf("job %s: %v", jobID, err)
		}
	}()
	return nil
}

// whisperTranscript is a ten minute talk in five second segments. Every
// seventh segment carries hook words.
func whisperTranscript() client.TranscriptionResponse {
	var resp client.TranscriptionResponse
	for i := 0; i < 120; i++ {
		text := "and then we kept talking about the plan for a while"
		if i%7 == 3 {
			text = "this is the secret, why does it work? amazing!"
		}
		resp.Segments = append(resp.Segments, client.WhisperSegment{
			ID:    i,
			Start: float64(i * 5),
			End:   float64(i*5 + 5),
			Text:  text,
		})
	}
	resp.Duration = 600
	resp.Language = "en"
	return resp
}

// setupApp creates a Fiber app routed like main.go. Media, transcription and
// ffmpeg are faked at their process and network boundaries; everything in
// between is the real pipeline.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Fake media origin for direct URL sources
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(bytes.Repeat([]byte{0x00}, 4096))
	}))
	t.Cleanup(origin.Close)

	// Fake Whisper endpoint
	whisper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(whisperTranscript())
	}))
	t.Cleanup(whisper.Close)

	// Redis (localhost, optional). The rate limiter lets requests through
	// when it is unreachable.
	redisClient := redis.NewClient(&redis.Options{
		Addr:        "localhost:6379",
		DB:          15, // use DB 15 for tests to avoid collision
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { redisClient.Close() })

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ws := workspace.NewManager(t.TempDir())
	sched := workspace.NewLocalScheduler(ws)

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	go hub.Run(ctx)

	tc := fakeTranscoder{}
	fetcher := acquire.NewFetcher(origin.Client(), "")
	chain := acquire.NewChain(
		[]acquire.Provider{acquire.NewUploadProvider(tc), acquire.NewDirectProvider(tc, fetcher)},
		fetcher,
		1024,
	)
	groq := client.NewGroqClient(&config.GroqConfig{
		APIKey:  "test-key",
		BaseURL: whisper.URL,
		Model:   "whisper-large-v3",
	})

	orch := pipeline.New(pipeline.Deps{
		Store:       st,
		Workspace:   ws,
		Scheduler:   sched,
		Acquirer:    chain,
		Transcriber: transcribe.NewAdapter(groq, tc, transcribe.Options{}),
		Renderer:    render.NewPipeline(tc),
		Notifier:    hub,
	}, pipeline.Options{
		CleanupDelay:   time.Hour,
		MaxUploadBytes: testUploadLimit,
	})

	queue := &inlineQueue{orch: orch}
	t.Cleanup(func() {
		queue.wg.Wait()
		sched.Flush()
		cancel()
	})

	validate := validator.New()
	verifier := auth.NewHMACVerifier(testJWTSecret, "")

	jobService := service.NewJobService(orch, queue)
	jobHandler := handler.NewJobHandler(jobService, validate, testUploadLimit)
	fileHandler := handler.NewFileHandler(ws)
	authHandler := handler.NewAuthHandler(verifier)

	authMiddleware := middleware.NewAuthMiddleware(verifier)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 4 * testUploadLimit,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":       groq.IsConfigured(),
				"r2":         false,
				"auth":       true,
				"providers":  chain.Providers(),
				"activeJobs": ws.Active(),
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes (authenticated)
	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobLimit(10000), jobHandler.Create)
	jobs.Post("/upload", rateLimiter.JobLimit(10000), jobHandler.Upload)
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)

	api.Get("/files/:jobId/:filename", rateLimiter.FilesLimit(10000), fileHandler.Serve)

	return &testApp{app: app, media: origin}
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.NewHMACVerifier(testJWTSecret, "").Sign("test-user-123", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doUpload posts a multipart video upload with the given form fields.
func doUpload(t *testing.T, app *fiber.App, filename string, content []byte, fields map[string]string) (*http.Response, error) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/jobs/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))
	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitForStatus polls the job until it reaches want or a terminal state.
func waitForStatus(t *testing.T, app *fiber.App, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := doAuthRequest(t, app, http.MethodGet, "/api/jobs/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		body := parseJSON(t, resp)
		status, _ := body["status"].(string)
		if status == want {
			return body
		}
		if status == "completed" || status == "failed" {
			t.Fatalf("job %s ended %s, wanted %s: %v", jobID, status, want, body)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still %s after 10s", jobID, status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
