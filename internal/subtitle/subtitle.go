// Package subtitle writes clip-local caption tracks in SRT and ASS form.
package subtitle

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/clipforge/api/internal/model"
)

// Cue is one caption line on the clip's own timeline.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// Cues maps segments that touch [start,end) onto a timeline beginning at start.
// Segments are clamped to the window; anything outside it is dropped.
func Cues(segments []model.TranscriptSegment, start, end float64) []Cue {
	var out []Cue
	for _, s := range segments {
		if s.End <= start || s.Start >= end {
			continue
		}
		from := math.Max(s.Start, start) - start
		to := math.Min(s.End, end) - start
		text := strings.TrimSpace(s.Text)
		if to <= from || text == "" {
			continue
		}
		out = append(out, Cue{Start: from, End: to, Text: text})
	}
	return out
}

// SRT renders cues as SubRip text.
func SRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.Start), srtTime(c.End), c.Text)
	}
	return b.String()
}

func srtTime(sec float64) string {
	ms := int64(math.Round(sec * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ASS renders cues as an Advanced SubStation script sized for a width x height frame.
func ASS(cues []Cue, st Style, width, height int) string {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\nPlayResY: %d\n", width, height)
	b.WriteString("WrapStyle: 0\nScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	bold := 0
	if st.Bold {
		bold = -1
	}
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%s,%s,5,40,40,0,1\n\n",
		st.Font, st.Size,
		HexToASS(st.Color), HexToASS(st.Color), HexToASS(st.OutlineColor), HexToASS(st.BackColor),
		bold, trimFloat(st.Outline), trimFloat(st.Shadow))

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	x, y := width/2, st.positionY(height)
	override := fmt.Sprintf(`{\pos(%d,%d)`, x, y)
	if st.Blur > 0 {
		override += fmt.Sprintf(`\blur%s`, trimFloat(st.Blur))
	}
	override += "}"
	for _, c := range cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s%s\n", assTime(c.Start), assTime(c.End), override, assText(c.Text))
	}
	return b.String()
}

func assTime(sec float64) string {
	cs := int64(math.Round(sec * 100))
	if cs < 0 {
		cs = 0
	}
	h := cs / 360000
	m := cs % 360000 / 6000
	s := cs % 6000 / 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

func assText(s string) string {
	s = strings.NewReplacer("{", "(", "}", ")", "\r\n", `\N`, "\n", `\N`).Replace(s)
	return s
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

// HexToASS converts #RRGGBB or #RRGGBBAA into ASS &HAABBGGRR. ASS alpha is
// inverted: 00 is opaque.
func HexToASS(hex string) string {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 && len(h) != 8 {
		return "&H00FFFFFF"
	}
	alpha := "00"
	if len(h) == 8 {
		var a int
		if _, err := fmt.Sscanf(h[6:8], "%02x", &a); err != nil {
			return "&H00FFFFFF"
		}
		alpha = fmt.Sprintf("%02X", 255-a)
	}
	r, g, bl := h[0:2], h[2:4], h[4:6]
	return strings.ToUpper("&H" + alpha + bl + g + r)
}

// WriteSRT writes cues to path as SubRip.
func WriteSRT(path string, cues []Cue) error {
	return os.WriteFile(path, []byte(SRT(cues)), 0o644)
}

// WriteASS writes cues to path as a styled ASS script.
func WriteASS(path string, cues []Cue, st Style, width, height int) error {
	return os.WriteFile(path, []byte(ASS(cues, st, width, height)), 0o644)
}
