package validate

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/registry"
)

func newValidator(t *testing.T, strict bool) *ComponentValidator {
	t.Helper()
	return NewComponentValidator(
		registry.Builtin(),
		NewAdaptiveFontSizer(charMeasurer{}),
		strict,
		slog.New(slog.DiscardHandler),
	)
}

func title(text string) models.Component {
	return models.Component{
		Type:     models.ComponentTitle,
		Position: models.Position{X: 100, Y: 80},
		Width:    1200,
		Height:   160,
		Props:    map[string]any{"text": text},
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	v := newValidator(t, false)

	out, warnings, err := v.ValidateComponents([]models.Component{title("Welcome")})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, warnings)

	props := out[0].Props
	assert.Equal(t, "left", props["align"])
	assert.Equal(t, "bold", props["fontWeight"])
	// The schema default seeds the fit pass, which then grows "Welcome" to
	// the largest size the 1200×160 box holds.
	assert.Equal(t, 123.0, props["fontSize"])
}

func TestValidate_UnknownTypeStrictVsLenient(t *testing.T) {
	unknown := models.Component{Type: "Hologram", Width: 100, Height: 100}

	out, warnings, err := newValidator(t, false).ValidateComponents(
		[]models.Component{title("Kept"), unknown})
	require.NoError(t, err)
	assert.Len(t, out, 1, "unknown component dropped, rest kept")
	assert.NotEmpty(t, warnings)

	_, _, err = newValidator(t, true).ValidateComponents([]models.Component{unknown})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownComponentType)
}

func TestValidate_UnknownPropDroppedInBothModes(t *testing.T) {
	c := title("Hello")
	c.Props["blinkRate"] = 7

	for _, strict := range []bool{false, true} {
		out, warnings, err := newValidator(t, strict).ValidateComponents([]models.Component{c})
		require.NoError(t, err, "strict=%v", strict)
		assert.NotContains(t, out[0].Props, "blinkRate")
		assert.NotEmpty(t, warnings)
	}
}

func TestValidate_MissingRequiredProp(t *testing.T) {
	c := models.Component{Type: models.ComponentImage, Width: 400, Height: 300}

	_, _, err := newValidator(t, false).ValidateComponents([]models.Component{c})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredProp)
}

func TestValidate_NumericCoercionAndClamping(t *testing.T) {
	bg := models.Component{
		Type:   models.ComponentBackground,
		Width:  models.CanvasWidth,
		Height: models.CanvasHeight,
		Props:  map[string]any{"opacity": "0.5"},
	}
	out, _, err := newValidator(t, false).ValidateComponents([]models.Component{bg})
	require.NoError(t, err)
	assert.Equal(t, 0.5, out[0].Props["opacity"], "numeric strings coerce")

	bg.Props = map[string]any{"opacity": 5}
	out, warnings, err := newValidator(t, false).ValidateComponents([]models.Component{bg})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[0].Props["opacity"], "clamped to schema max")
	assert.NotEmpty(t, warnings)

	c := title("Huge")
	c.Height = 400
	c.Props["fontSize"] = 10000
	out, _, err = newValidator(t, false).ValidateComponents([]models.Component{c})
	require.NoError(t, err)
	assert.Equal(t, 323.0, out[0].Props["fontSize"],
		"the fit pass, not a schema cap, bounds text size")
}

func TestValidate_EnumViolationResetsToDefault(t *testing.T) {
	c := title("Aligned")
	c.Props["align"] = "diagonal"

	out, warnings, err := newValidator(t, false).ValidateComponents([]models.Component{c})
	require.NoError(t, err)
	assert.Equal(t, "left", out[0].Props["align"])
	assert.NotEmpty(t, warnings)
}

func TestValidate_InvalidColorFallsBack(t *testing.T) {
	c := models.Component{
		Type:   models.ComponentBackground,
		Width:  models.CanvasWidth,
		Height: models.CanvasHeight,
		Props:  map[string]any{"color": "blueish"},
	}

	out, warnings, err := newValidator(t, false).ValidateComponents([]models.Component{c})
	require.NoError(t, err)
	assert.Equal(t, "#FFFFFF", out[0].Props["color"])
	assert.NotEmpty(t, warnings)
}

func TestValidate_ClampsOffCanvasComponents(t *testing.T) {
	c := title("Runaway")
	c.Position = models.Position{X: 1800, Y: -50}
	c.Width = 400
	c.Height = 200

	out, warnings, err := newValidator(t, false).ValidateComponents([]models.Component{c})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, float64(models.CanvasWidth-400), got.Position.X)
	assert.Equal(t, 0.0, got.Position.Y)
	assert.Equal(t, true, got.Metadata[MetaClamped])
	assert.NotEmpty(t, warnings)
}

func TestValidate_OversizedComponentShrinksToCanvas(t *testing.T) {
	c := models.Component{
		Type:   models.ComponentShape,
		Width:  5000,
		Height: 3000,
	}

	out, _, err := newValidator(t, false).ValidateComponents([]models.Component{c})
	require.NoError(t, err)
	assert.Equal(t, float64(models.CanvasWidth), out[0].Width)
	assert.Equal(t, float64(models.CanvasHeight), out[0].Height)
}

func TestValidate_AdaptiveSizingAnnotatesTextComponents(t *testing.T) {
	long := title("A very long headline that cannot possibly fit at the requested ninety six point size in a narrow box")
	long.Width = 300
	long.Height = 80

	out, _, err := newValidator(t, false).ValidateComponents([]models.Component{long})
	require.NoError(t, err)

	got := out[0]
	assert.Equal(t, true, got.Metadata[MetaAdaptiveSizing])
	conf, ok := got.Metadata[MetaFitConfidence].(float64)
	require.True(t, ok)
	assert.Less(t, conf, 1.0)
	fitted, ok := got.Props["fontSize"].(float64)
	require.True(t, ok)
	assert.Less(t, fitted, 96.0)

	// Non-text components carry no sizing metadata.
	shape := models.Component{Type: models.ComponentShape, Width: 100, Height: 100}
	out, _, err = newValidator(t, false).ValidateComponents([]models.Component{shape})
	require.NoError(t, err)
	assert.NotContains(t, out[0].Metadata, MetaAdaptiveSizing)
}

func TestValidate_InputNotMutated(t *testing.T) {
	c := title("Immutable")
	c.Props["align"] = "diagonal"
	in := []models.Component{c}

	_, _, err := newValidator(t, false).ValidateComponents(in)
	require.NoError(t, err)
	assert.Equal(t, "diagonal", in[0].Props["align"], "validator works on copies")
}
