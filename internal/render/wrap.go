package render

import (
	"strings"

	"github.com/fogleman/gg"
)

// MeasureFunc returns the rendered width of s in pixels.
type MeasureFunc func(s string) float64

// WrapText greedily wraps text into lines no wider than maxWidth. A word
// wider than maxWidth on its own is placed alone on its line, unsplit.
// Non-empty input always yields at least one line.
func WrapText(text string, maxWidth float64, measure MeasureFunc) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	lines := make([]string, 0, 2)
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

// DrawWrappedText draws lines top-down starting with the top of the first
// line at y and returns the consumed height.
func DrawWrappedText(dc *gg.Context, lines []string, x, y, lineHeight float64) float64 {
	for i, line := range lines {
		dc.DrawStringAnchored(line, x, y+float64(i)*lineHeight, 0, 1)
	}
	return float64(len(lines)) * lineHeight
}
