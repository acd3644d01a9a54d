package e2e

import (
	"fmt"
	"net/http"
	"testing"
)

func createJob(t *testing.T, ta *testApp, body string) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/jobs", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	location := resp.Header.Get("Location")
	created := parseJSON(t, resp)
	jobID, _ := created["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected jobId in response, got %v", created)
	}
	if location != "/api/jobs/"+jobID {
		t.Errorf("expected Location /api/jobs/%s, got %q", jobID, location)
	}
	if created["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", created["status"])
	}
	return jobID
}

func TestJobs_DirectURLFlow(t *testing.T) {
	ta := setupApp(t)

	jobID := createJob(t, ta, fmt.Sprintf(`{"url":%q,"clipDuration":30,"maxClips":3,"captionStyle":"bold"}`, ta.videoURL()))

	status := waitForStatus(t, ta.app, jobID, "completed")
	if status["currentStep"] != "done" {
		t.Errorf("expected currentStep 'done', got %v", status["currentStep"])
	}
	if status["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", status["progress"])
	}
	if transcript, _ := status["transcript"].([]interface{}); len(transcript) != 120 {
		t.Errorf("expected 120 transcript segments, got %d", len(transcript))
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/result", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)

	clips, _ := result["clips"].([]interface{})
	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d: %v", len(clips), result)
	}
	var lastStart float64 = -1
	for i, c := range clips {
		clip := c.(map[string]interface{})
		if clip["id"] != float64(i+1) {
			t.Errorf("clip %d: expected id %d, got %v", i, i+1, clip["id"])
		}
		start := clip["start"].(float64)
		if start <= lastStart {
			t.Errorf("clips not ordered by start: %v after %v", start, lastStart)
		}
		lastStart = start
		if name, _ := clip["filename"].(string); name == "" {
			t.Errorf("clip %d missing filename: %v", i, clip)
		}
		if url, _ := clip["url"].(string); url != fmt.Sprintf("/api/files/%s/%s", jobID, clip["filename"]) {
			t.Errorf("clip %d: unexpected url %q", i, url)
		}
	}

	archive, ok := result["archive"].(map[string]interface{})
	if !ok {
		t.Fatal("expected 'archive' in result")
	}

	first := clips[0].(map[string]interface{})
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, fmt.Sprintf("/api/files/%s/%s", jobID, first["filename"]), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("expected video/mp4, got %q", ct)
	}
	if body := readBody(t, resp); len(body) != 2048 {
		t.Errorf("expected 2048 bytes of clip, got %d", len(body))
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, fmt.Sprintf("/api/files/%s/%s", jobID, archive["filename"]), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestJobs_CancelCompletedIsNoop(t *testing.T) {
	ta := setupApp(t)

	jobID := createJob(t, ta, fmt.Sprintf(`{"url":%q,"maxClips":1,"addCaptions":false}`, ta.videoURL()))
	waitForStatus(t, ta.app, jobID, "completed")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/jobs/"+jobID+"/cancel", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["status"] != "completed" {
		t.Errorf("expected status 'completed' after cancel, got %v", body["status"])
	}
}

func TestJobs_Unauthorized(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/jobs", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestJobs_Validation(t *testing.T) {
	ta := setupApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"not a url", `{"url":"just some words"}`},
		{"max clips too high", `{"url":"https://youtu.be/dQw4w9WgXcQ","maxClips":50}`},
		{"bad caption style", `{"url":"https://youtu.be/dQw4w9WgXcQ","captionStyle":"comic"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/jobs", tt.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
			body := parseJSON(t, resp)
			errObj, _ := body["error"].(map[string]interface{})
			if errObj["code"] != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %v", body)
			}
		})
	}
}

func TestJobs_UnknownJob(t *testing.T) {
	ta := setupApp(t)

	for _, path := range []string{"/api/jobs/nope", "/api/jobs/nope/result"} {
		resp, err := doAuthRequest(t, ta.app, http.MethodGet, path, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusNotFound)
		resp.Body.Close()
	}
}

func TestJobs_UnreachableSourceFails(t *testing.T) {
	ta := setupApp(t)
	url := ta.media.URL + "/talk.mp4"
	ta.media.Close()

	jobID := createJob(t, ta, fmt.Sprintf(`{"url":%q}`, url))
	status := waitForStatus(t, ta.app, jobID, "failed")
	if status["errorCode"] != "ACQUISITION_EXHAUSTED" {
		t.Errorf("expected ACQUISITION_EXHAUSTED, got %v", status["errorCode"])
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/jobs/"+jobID+"/result", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}
