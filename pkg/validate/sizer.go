package validate

import "math"

// Default container insets, in canvas units per side.
const (
	DefaultPadX = 8.0
	DefaultPadY = 6.0
)

// FitResult is the outcome of sizing text into a container.
type FitResult struct {
	// FontSize is the largest size that fits, or the floor size when even
	// that overflows.
	FontSize float64
	// Lines is the wrapped line count at FontSize.
	Lines int
	// Iterations is the number of bisection probes spent.
	Iterations int
	// Adjusted is true when the fitted size differs from the generator's
	// requested size, in either direction.
	Adjusted bool
	// Confidence is in (0,1]. A clean fit stays in the top band; well below
	// that, the text overflows even at the floor size and the layout likely
	// needs redesign.
	Confidence float64
}

// AdaptiveFontSizer finds the largest font size at which a component's text
// fits its container, by binary search over integer sizes in
// [1, max(width, height)].
//
// A size fits when wrapped lines stacked at lineHeight stay within the
// padded height and the widest line stays within the padded width. Fit is
// monotone in size, which makes the search sound; it is also monotone in
// container dimensions, so growing a box never shrinks its text.
type AdaptiveFontSizer struct {
	measurer   TextMeasurer
	padX, padY float64
}

// NewAdaptiveFontSizer builds a sizer with the default insets.
func NewAdaptiveFontSizer(m TextMeasurer) *AdaptiveFontSizer {
	return &AdaptiveFontSizer{measurer: m, padX: DefaultPadX, padY: DefaultPadY}
}

// Fit sizes text into a width×height container. requested is the generator's
// font size; it does not bound the search, only marks the result as adjusted
// when the optimum differs. lineHeight is the multiplier applied per line
// (values below 1 are lifted to 1).
func (s *AdaptiveFontSizer) Fit(text string, width, height, requested, lineHeight float64) FitResult {
	if lineHeight < 1 {
		lineHeight = 1
	}
	maxW := width - 2*s.padX
	maxH := height - 2*s.padY

	hi := int(math.Max(width, height))
	if hi < 1 {
		hi = 1
	}

	if text == "" || maxW <= 0 || maxH <= 0 {
		return FitResult{
			FontSize:   1,
			Iterations: 1,
			Adjusted:   requested != 1,
			Confidence: fitConfidence(false, 1),
		}
	}

	fits := func(size int) (ok bool, lines int) {
		wrapped, widest := wrap(s.measurer, text, float64(size), maxW)
		if widest > maxW {
			return false, len(wrapped)
		}
		if float64(len(wrapped))*float64(size)*lineHeight > maxH {
			return false, len(wrapped)
		}
		return true, len(wrapped)
	}

	// Largest fitting size in [1, hi]. If nothing fits the floor size is
	// used anyway; the confidence score tells the renderer how bad it is.
	lo, best, iterations := 1, 0, 0
	for lo <= hi {
		iterations++
		mid := (lo + hi) / 2
		if ok, _ := fits(mid); ok {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	fitted := best > 0
	if best == 0 {
		best = 1
	}

	_, lines := fits(best)
	return FitResult{
		FontSize:   float64(best),
		Lines:      lines,
		Iterations: iterations,
		Adjusted:   float64(best) != requested,
		Confidence: fitConfidence(fitted, iterations),
	}
}

// fitConfidence scores the search outcome. Integer bisection always ends
// with the largest fitting and smallest overflowing sizes adjacent, so a
// successful fit lands in the top band, discounted by the probes spent;
// when even the floor size overflows, confidence collapses with the effort
// spent proving it.
func fitConfidence(fitted bool, iterations int) float64 {
	if iterations < 1 {
		iterations = 1
	}
	if !fitted {
		return 0.05 / float64(iterations)
	}
	c := 1 - 0.02*float64(iterations-1)
	if c < 0.75 {
		c = 0.75
	}
	return c
}
