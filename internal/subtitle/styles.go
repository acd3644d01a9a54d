package subtitle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clipforge/api/internal/model"
)

// Style is the look of a burned-in caption.
type Style struct {
	Font         string  `yaml:"font"`
	Size         int     `yaml:"size"`
	Color        string  `yaml:"color"`
	OutlineColor string  `yaml:"outlineColor"`
	BackColor    string  `yaml:"backColor"`
	Bold         bool    `yaml:"bold"`
	Outline      float64 `yaml:"outline"`
	Shadow       float64 `yaml:"shadow"`
	Blur         float64 `yaml:"blur"`
	Position     string  `yaml:"position"` // bottom, top, center
}

func (s Style) positionY(height int) int {
	switch s.Position {
	case "top":
		return 150
	case "center":
		return height / 2
	default:
		return height - 150
	}
}

// Styles maps caption style names to their look.
type Styles map[model.CaptionStyle]Style

// DefaultStyles are the built-in presets. Classic captions are burned from SRT
// with the renderer's defaults; its entry only applies when a caller renders
// classic as ASS.
func DefaultStyles() Styles {
	return Styles{
		model.CaptionClassic: {
			Font: "Arial", Size: 48, Color: "#FFFFFF", OutlineColor: "#000000", BackColor: "#00000080",
			Outline: 2, Shadow: 1, Position: "bottom",
		},
		model.CaptionBold: {
			Font: "Arial", Size: 64, Color: "#FFFFFF", OutlineColor: "#000000", BackColor: "#00000080",
			Bold: true, Outline: 3, Shadow: 1, Position: "bottom",
		},
		model.CaptionOutline: {
			Font: "Arial", Size: 56, Color: "#FFFFFF", OutlineColor: "#000000", BackColor: "#00000000",
			Bold: true, Outline: 5, Shadow: 0, Position: "bottom",
		},
		model.CaptionGlow: {
			Font: "Arial", Size: 56, Color: "#FFFFFF", OutlineColor: "#FFD700", BackColor: "#00000000",
			Bold: true, Outline: 3, Shadow: 2, Blur: 4, Position: "bottom",
		},
	}
}

// Get returns the named style, falling back to bold.
func (s Styles) Get(name model.CaptionStyle) Style {
	if st, ok := s[name]; ok {
		return st
	}
	return s[model.CaptionBold]
}

// LoadStyles reads a YAML preset file on top of the defaults. Fields left out
// of a preset keep their default value. An empty path returns the defaults.
func LoadStyles(path string) (Styles, error) {
	styles := DefaultStyles()
	if path == "" {
		return styles, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read caption styles: %w", err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse caption styles: %w", err)
	}
	for name, node := range raw {
		key := model.CaptionStyle(name)
		st, ok := styles[key]
		if !ok {
			return nil, fmt.Errorf("unknown caption style %q", name)
		}
		if err := node.Decode(&st); err != nil {
			return nil, fmt.Errorf("caption style %s: %w", name, err)
		}
		styles[key] = st
	}
	return styles, nil
}
