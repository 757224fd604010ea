// Package validate normalizes generated slide components against the
// registry schemas and fits text to its container through adaptive font
// sizing.
package validate

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextMeasurer reports rendered text width at a font size. The production
// implementation rasterizes real font metrics; tests may substitute a
// proportional approximation.
type TextMeasurer interface {
	// LineWidth returns the advance width of a single line in canvas units.
	LineWidth(text string, size float64) float64
}

// EstimateMeasurer approximates line width proportionally to character
// count. Used when the embedded typeface cannot be parsed.
type EstimateMeasurer struct{}

// LineWidth implements TextMeasurer.
func (EstimateMeasurer) LineWidth(text string, size float64) float64 {
	return float64(len(text)) * size * 0.55
}

// FontMetrics measures text with a real typeface. The renderer's fonts are
// not available server-side, so a regular sans-serif face stands in; widths
// track closely enough for fit decisions, and the 2·pad margins absorb the
// residual difference.
type FontMetrics struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// NewFontMetrics parses the embedded typeface.
func NewFontMetrics() (*FontMetrics, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	return &FontMetrics{font: f, faces: make(map[int]font.Face)}, nil
}

// LineWidth implements TextMeasurer.
func (m *FontMetrics) LineWidth(text string, size float64) float64 {
	face, err := m.face(int(size))
	if err != nil {
		// Degrade to a proportional estimate rather than failing the fit.
		return float64(len(text)) * size * 0.55
	}
	return fromFixed(font.MeasureString(face, text))
}

func (m *FontMetrics) face(size int) (font.Face, error) {
	if size < 1 {
		size = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(m.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	m.faces[size] = f
	return f, nil
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// wrap greedily breaks text into lines no wider than maxWidth at the given
// size. A single word wider than maxWidth occupies its own overflowing
// line; the caller treats that as a failed fit.
func wrap(m TextMeasurer, text string, size, maxWidth float64) (lines []string, maxLineWidth float64) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, 0
	}

	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if m.LineWidth(candidate, size) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)

	for _, line := range lines {
		if w := m.LineWidth(line, size); w > maxLineWidth {
			maxLineWidth = w
		}
	}
	return lines, maxLineWidth
}
