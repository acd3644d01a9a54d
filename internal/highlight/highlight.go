// Package highlight picks non-overlapping, engagement-scored windows from a transcript.
//
// Scoring is a keyword heuristic and can be replaced by passing a different
// Scorer in Options.
package highlight

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/model"
)

// Candidate is a scored window. Candidates never leave the selector.
type Candidate struct {
	Start    float64
	End      float64
	Duration float64
	Text     string
	Score    float64
}

// Scorer rates a candidate's text.
type Scorer func(text string) float64

type Options struct {
	// StepFraction is how far the window advances, as a fraction of its length.
	StepFraction float64
	MinWords     int
	MaxWords     int
	Scorer       Scorer
}

func DefaultOptions() Options {
	return Options{StepFraction: 0.75, MinWords: 10, MaxWords: 50}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.StepFraction <= 0 || o.StepFraction > 1 {
		o.StepFraction = d.StepFraction
	}
	if o.MinWords <= 0 {
		o.MinWords = d.MinWords
	}
	if o.MaxWords <= 0 {
		o.MaxWords = d.MaxWords
	}
	if o.Scorer == nil {
		o.Scorer = KeywordScorer(o.MinWords, o.MaxWords)
	}
	return o
}

// Select returns at most maxClips non-overlapping clips ordered by start time
// with ids 1..N. The result is deterministic for identical input.
func Select(segments []model.TranscriptSegment, targetDuration float64, maxClips int, opts Options) ([]model.SelectedClip, error) {
	if targetDuration <= 0 {
		return nil, apperr.Validation("clip duration must be positive")
	}
	if maxClips <= 0 {
		return nil, apperr.Validation("max clips must be positive")
	}
	opts = opts.withDefaults()

	candidates := Candidates(segments, targetDuration, opts.StepFraction)
	if len(candidates) == 0 {
		return nil, apperr.New(apperr.KindNoHighlights, "transcript produced no clip candidates")
	}
	for i := range candidates {
		candidates[i].Score = opts.Scorer(candidates[i].Text)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Start < candidates[j].Start
	})

	var picked []model.SelectedClip
	for _, c := range candidates {
		if len(picked) == maxClips {
			break
		}
		clip := model.SelectedClip{
			Start:    c.Start,
			End:      c.End,
			Duration: c.Duration,
			Text:     c.Text,
			Score:    c.Score,
		}
		if overlapsAny(clip, picked) {
			continue
		}
		picked = append(picked, clip)
	}
	if len(picked) == 0 {
		return nil, apperr.New(apperr.KindNoHighlights, "no non-overlapping highlights found")
	}

	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Start < picked[j].Start })
	for i := range picked {
		picked[i].ID = i + 1
	}
	return picked, nil
}

func overlapsAny(c model.SelectedClip, set []model.SelectedClip) bool {
	for _, s := range set {
		if c.Overlaps(s) {
			return true
		}
	}
	return false
}

// Candidates slides a window of length duration over the transcript, advancing
// by duration*step, from 0 until the last segment's end. Windows are clamped
// to the timeline and carry the text of every segment they touch.
func Candidates(segments []model.TranscriptSegment, duration, step float64) []Candidate {
	total := model.TranscriptDuration(segments)
	if total <= 0 || duration <= 0 || step <= 0 {
		return nil
	}
	advance := duration * step

	var out []Candidate
	for i := 0; ; i++ {
		start := float64(i) * advance
		if start >= total {
			break
		}
		end := start + duration
		if end > total {
			end = total
		}

		var parts []string
		for _, s := range segments {
			if s.End > start && s.Start < end {
				parts = append(parts, strings.TrimSpace(s.Text))
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, Candidate{
			Start:    start,
			End:      end,
			Duration: end - start,
			Text:     strings.Join(parts, " "),
		})
	}
	return out
}

var (
	engagementTerms = []string{
		"secret", "amazing", "incredible", "shocking", "important", "key", "tip", "trick", "hack",
		"must", "need", "should", "best", "worst", "never", "always", "mistake", "success", "fail",
		"win", "lose", "money", "free", "easy", "hard", "simple", "quick", "fast", "how to", "why",
		"what if", "imagine", "think about", "listen", "watch", "look", "here's", "this is",
		"the truth", "actually", "believe", "crazy", "insane", "mind", "blow", "game changer",
		"life changing",
	}
	questionTerms  = []string{"how", "why", "what", "when", "where", "who", "which"}
	emotionalTerms = []string{"love", "hate", "fear", "hope", "dream", "angry", "happy", "sad", "excited"}

	engagementRe = termsRegexp(engagementTerms)
	questionRe   = termsRegexp(questionTerms)
	emotionalRe  = termsRegexp(emotionalTerms)
)

func termsRegexp(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\b`, regexp.QuoteMeta(t)))
	}
	return out
}

func countAll(res []*regexp.Regexp, text string) int {
	n := 0
	for _, re := range res {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

// KeywordScorer scores text by keyword hits:
// +2 per engagement term, +1.5 per question indicator (including "?"),
// +1 per emotional term, +0.5 if it contains "!", and +1 when the word
// count falls within [minWords, maxWords].
func KeywordScorer(minWords, maxWords int) Scorer {
	return func(text string) float64 {
		score := 2 * float64(countAll(engagementRe, text))
		score += 1.5 * float64(strings.Count(text, "?")+countAll(questionRe, text))
		score += float64(countAll(emotionalRe, text))
		if strings.Contains(text, "!") {
			score += 0.5
		}
		if n := len(strings.Fields(text)); n >= minWords && n <= maxWords {
			score++
		}
		return score
	}
}
