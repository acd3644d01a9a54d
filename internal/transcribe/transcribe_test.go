package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/media"
)

type fakeService struct {
	byFile map[string]*client.TranscriptionResponse
	err    error
	calls  []string
}

func (f *fakeService) Transcribe(ctx context.Context, audioPath string) (*client.TranscriptionResponse, error) {
	name := filepath.Base(audioPath)
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	return f.byFile[name], nil
}

type fakeTranscoder struct {
	duration float64
	extracts [][2]float64
}

func (f *fakeTranscoder) Cut(ctx context.Context, req media.CutRequest) error { return nil }

func (f *fakeTranscoder) ExtractAudio(ctx context.Context, input, output string, start, duration float64) error {
	f.extracts = append(f.extracts, [2]float64{start, duration})
	return os.WriteFile(output, []byte("chunk"), 0o644)
}

func (f *fakeTranscoder) Thumbnail(ctx context.Context, input string, at float64, output string) error {
	return nil
}

func (f *fakeTranscoder) ProbeDuration(ctx context.Context, input string) (float64, error) {
	return f.duration, nil
}

func writeAudio(t *testing.T, size int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return p, dir
}

func TestTranscribe_ChunksAreReoffset(t *testing.T) {
	audio, dir := writeAudio(t, 2048)
	svc := &fakeService{byFile: map[string]*client.TranscriptionResponse{
		"chunk_000.mp3": {Segments: []client.WhisperSegment{{Start: 0, End: 4, Text: " first chunk"}}},
		"chunk_001.mp3": {Segments: []client.WhisperSegment{{Start: 10, End: 14, Text: " second chunk"}}},
	}}
	tc := &fakeTranscoder{duration: 420}

	res, err := NewAdapter(svc, tc, Options{MaxBytes: 1024, ChunkSeconds: 300}).Transcribe(context.Background(), "job-1", audio, dir)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Chunks != 2 || len(res.Segments) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	second := res.Segments[1]
	if second.Start != 310 || second.End != 314 || second.Index != 1 {
		t.Fatalf("expected segment at 310s, got %+v", second)
	}
	if tc.extracts[1] != [2]float64{300, 120} {
		t.Fatalf("unexpected second chunk window %v", tc.extracts[1])
	}
	if _, err := os.Stat(filepath.Join(dir, "chunk_000.mp3")); !os.IsNotExist(err) {
		t.Fatal("chunk files should be removed after use")
	}
}

func TestTranscribe_SmallFileIsSentWhole(t *testing.T) {
	audio, dir := writeAudio(t, 100)
	svc := &fakeService{byFile: map[string]*client.TranscriptionResponse{
		"audio.mp3": {Segments: []client.WhisperSegment{
			{Start: 5, End: 7, Text: " later"},
			{Start: 0, End: 2, Text: " earlier"},
			{Start: 2, End: 3, Text: "   "},
		}},
	}}

	res, err := NewAdapter(svc, &fakeTranscoder{}, Options{MaxBytes: 1024}).Transcribe(context.Background(), "job-1", audio, dir)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(svc.calls) != 1 || res.Degraded {
		t.Fatalf("expected one timed call, got %v degraded=%v", svc.calls, res.Degraded)
	}
	if len(res.Segments) != 2 || res.Segments[0].Text != "earlier" || res.Segments[1].Index != 1 {
		t.Fatalf("segments not normalized: %+v", res.Segments)
	}
}

func TestTranscribe_DegradedMode(t *testing.T) {
	audio, dir := writeAudio(t, 100)
	text := strings.TrimSpace(strings.Repeat("word ", 50))
	svc := &fakeService{byFile: map[string]*client.TranscriptionResponse{
		"audio.mp3": {Text: text},
	}}

	res, err := NewAdapter(svc, &fakeTranscoder{duration: 100}, Options{MaxBytes: 1024}).Transcribe(context.Background(), "job-1", audio, dir)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if !res.Degraded {
		t.Fatal("expected degraded transcript")
	}
	if len(res.Segments) != 3 {
		t.Fatalf("expected 3 synthesized segments, got %d", len(res.Segments))
	}
	if res.Segments[1].Start != 40 || res.Segments[2].End != 100 {
		t.Fatalf("duration not spread evenly: %+v", res.Segments)
	}
}

func TestSynthesize_EstimatesDuration(t *testing.T) {
	segs := Synthesize(strings.Repeat("a ", 25), 0, 60)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Start != 60 || segs[1].End != 70 {
		t.Fatalf("expected 25 words at 2.5 w/s from 60s, got %+v", segs)
	}
	if Synthesize("  ", 10, 0) != nil {
		t.Fatal("empty text must yield no segments")
	}
}

func TestTranscribe_ServiceFailure(t *testing.T) {
	audio, dir := writeAudio(t, 100)
	svc := &fakeService{err: errors.New("groq API error (status 500)")}

	_, err := NewAdapter(svc, &fakeTranscoder{}, Options{MaxBytes: 1024}).Transcribe(context.Background(), "job-1", audio, dir)
	if !errors.Is(err, apperr.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}
