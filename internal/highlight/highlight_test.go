package highlight

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/model"
)

// uniformTranscript builds 5-second segments covering total seconds.
func uniformTranscript(total int, text func(i int) string) []model.TranscriptSegment {
	var segs []model.TranscriptSegment
	for i := 0; i*5 < total; i++ {
		segs = append(segs, model.TranscriptSegment{
			Index: i,
			Start: float64(i * 5),
			End:   float64(i*5 + 5),
			Text:  text(i),
		})
	}
	return segs
}

func TestCandidates_Windows(t *testing.T) {
	segs := uniformTranscript(120, func(i int) string { return fmt.Sprintf("segment %d", i) })
	cands := Candidates(segs, 30, 0.5)

	if len(cands) != 8 {
		t.Fatalf("expected 8 windows, got %d", len(cands))
	}
	if cands[0].Start != 0 || cands[0].End != 30 || cands[1].Start != 15 || cands[1].End != 45 || cands[2].Start != 30 {
		t.Fatalf("unexpected windows %+v", cands[:3])
	}
	last := cands[len(cands)-1]
	if last.Start != 105 || last.End != 120 || last.Duration != 15 {
		t.Fatalf("last window must be clamped to the timeline, got %+v", last)
	}
	// [15,45) touches segments 3..8
	if cands[1].Text != "segment 3 segment 4 segment 5 segment 6 segment 7 segment 8" {
		t.Fatalf("unexpected text %q", cands[1].Text)
	}
}

func TestSelect_EndToEndScenario(t *testing.T) {
	segs := uniformTranscript(120, func(i int) string {
		if i == 13 || i == 22 {
			return "this is the secret, why does it work? amazing!"
		}
		return "plain words"
	})

	clips, err := Select(segs, 30, 2, Options{StepFraction: 0.5})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(clips))
	}

	cands := Candidates(segs, 30, 0.5)
	for i, c := range clips {
		if c.ID != i+1 {
			t.Errorf("clip %d has id %d", i, c.ID)
		}
		found := false
		for _, cand := range cands {
			if cand.Start == c.Start && cand.End == c.End {
				found = true
			}
		}
		if !found {
			t.Errorf("clip %+v is not a candidate window", c)
		}
	}
	if clips[0].Start >= clips[1].Start {
		t.Fatal("clips must be ordered by start")
	}
	if clips[0].Overlaps(clips[1]) {
		t.Fatal("clips overlap")
	}
	if clips[0].Start != 45 || clips[1].Start != 90 {
		t.Fatalf("expected the keyword windows [45,75) and [90,120), got %+v", clips)
	}
}

func TestSelect_BoundAndNonOverlap(t *testing.T) {
	segs := uniformTranscript(600, func(i int) string {
		if i%7 == 0 {
			return "you must watch this, it's incredible"
		}
		return "some ordinary sentence about things"
	})
	for _, maxClips := range []int{1, 3, 5, 20} {
		for _, dur := range []float64{10, 30, 60} {
			clips, err := Select(segs, dur, maxClips, DefaultOptions())
			if err != nil {
				t.Fatalf("select(%v, %d): %v", dur, maxClips, err)
			}
			if len(clips) > maxClips {
				t.Fatalf("got %d clips for maxClips=%d", len(clips), maxClips)
			}
			for i := range clips {
				for j := range clips {
					if i != j && !(clips[i].End <= clips[j].Start || clips[j].End <= clips[i].Start) {
						t.Fatalf("clips %+v and %+v overlap", clips[i], clips[j])
					}
				}
			}
		}
	}
}

func TestSelect_Deterministic(t *testing.T) {
	segs := uniformTranscript(300, func(i int) string {
		return []string{"what if", "never give up", "love it", "fast and easy!", "hmm"}[i%5]
	})
	first, err := Select(segs, 45, 4, DefaultOptions())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := Select(segs, 45, 4, DefaultOptions())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestSelect_ZeroSegments(t *testing.T) {
	clips, err := Select(nil, 30, 3, DefaultOptions())
	if !errors.Is(err, apperr.ErrNoHighlights) {
		t.Fatalf("expected no highlights, got %v", err)
	}
	if clips != nil {
		t.Fatal("expected no clips")
	}
}

func TestKeywordScorer(t *testing.T) {
	score := KeywordScorer(10, 50)
	tests := []struct {
		text string
		want float64
	}{
		{"plain", 0},
		{"The SECRET is key", 4},
		{"why?", 2 + 1.5 + 1.5},
		{"I love this!", 1.5},
		{"keyboard monkey", 0},
		{"one two three four five six seven eight nine ten", 1},
	}
	for _, tt := range tests {
		if got := score(tt.text); got != tt.want {
			t.Errorf("score(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
