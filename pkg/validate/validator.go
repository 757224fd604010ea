package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/registry"
)

// ErrUnknownComponentType indicates a component type absent from the
// registry. In strict mode the slide fails on it; otherwise the component
// is dropped with a warning.
var ErrUnknownComponentType = errors.New("unknown component type")

// ErrMissingRequiredProp indicates a required prop that is absent and has
// no usable value after coercion.
var ErrMissingRequiredProp = errors.New("missing required prop")

// Metadata keys written by the validator.
const (
	MetaAdaptiveSizing = "adaptiveSizing"
	MetaFitConfidence  = "fitConfidence"
	MetaClamped        = "clamped"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ComponentValidator normalizes generated components: registry membership,
// prop defaults and coercion, canvas clamping, and adaptive text sizing.
type ComponentValidator struct {
	registry *registry.Registry
	sizer    *AdaptiveFontSizer
	strict   bool
	logger   *slog.Logger
}

// NewComponentValidator builds a validator. strict controls whether unknown
// component types fail the slide or are dropped.
func NewComponentValidator(reg *registry.Registry, sizer *AdaptiveFontSizer, strict bool, logger *slog.Logger) *ComponentValidator {
	return &ComponentValidator{registry: reg, sizer: sizer, strict: strict, logger: logger}
}

// ValidateComponents normalizes a slide's components in generation order.
// The returned slice may be shorter than the input (dropped components);
// warnings describe every repair made. A non-nil error means the slide as a
// whole is invalid.
func (v *ComponentValidator) ValidateComponents(components []models.Component) ([]models.Component, []string, error) {
	out := make([]models.Component, 0, len(components))
	var warnings []string

	for i := range components {
		c := components[i].Clone()

		schema, ok := v.registry.Lookup(c.Type)
		if !ok {
			if v.strict {
				return nil, warnings, fmt.Errorf("component %d: %w: %q", i, ErrUnknownComponentType, c.Type)
			}
			warnings = append(warnings, fmt.Sprintf("component %d: dropped unknown type %q", i, c.Type))
			continue
		}

		propWarnings, err := v.normalizeProps(&c, schema, i)
		warnings = append(warnings, propWarnings...)
		if err != nil {
			return nil, warnings, err
		}

		if w := clampToCanvas(&c); w != "" {
			warnings = append(warnings, fmt.Sprintf("component %d: %s", i, w))
		}

		if schema.TextBearing {
			v.applyAdaptiveSizing(&c, schema)
		}

		out = append(out, c)
	}
	return out, warnings, nil
}

// normalizeProps applies schema defaults, drops unknown props, coerces
// numerics, and enforces enums and bounds.
func (v *ComponentValidator) normalizeProps(c *models.Component, schema *registry.Schema, idx int) ([]string, error) {
	var warnings []string
	if c.Props == nil {
		c.Props = make(map[string]any)
	}

	// Unknown props are dropped in every mode; only unknown types are a
	// strict-mode failure.
	for name := range c.Props {
		if schema.Field(name) == nil {
			warnings = append(warnings, fmt.Sprintf("component %d (%s): dropped unknown prop %q", idx, c.Type, name))
			delete(c.Props, name)
		}
	}

	for _, field := range schema.Fields {
		raw, present := c.Props[field.Name]

		if !present || raw == nil {
			if field.Required {
				return nil, fmt.Errorf("component %d (%s): %w: %q", idx, c.Type, ErrMissingRequiredProp, field.Name)
			}
			if field.Default != nil {
				c.Props[field.Name] = field.Default
			}
			continue
		}

		val, warning := coerce(&field, raw)
		if warning != "" {
			warnings = append(warnings, fmt.Sprintf("component %d (%s): prop %q: %s", idx, c.Type, field.Name, warning))
		}
		if val == nil {
			if field.Required {
				return nil, fmt.Errorf("component %d (%s): %w: %q has unusable value", idx, c.Type, ErrMissingRequiredProp, field.Name)
			}
			if field.Default != nil {
				c.Props[field.Name] = field.Default
			} else {
				delete(c.Props, field.Name)
			}
			continue
		}
		c.Props[field.Name] = val
	}
	return warnings, nil
}

// coerce normalizes raw to the field's kind. A nil result means the value
// is unusable; a non-empty warning records a repair.
func coerce(field *registry.Field, raw any) (any, string) {
	switch field.Kind {
	case registry.KindNumber:
		n, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Sprintf("expected number, got %T", raw)
		}
		if field.Min != nil && n < *field.Min {
			return *field.Min, fmt.Sprintf("clamped %v to minimum %v", n, *field.Min)
		}
		if field.Max != nil && n > *field.Max {
			return *field.Max, fmt.Sprintf("clamped %v to maximum %v", n, *field.Max)
		}
		return n, ""

	case registry.KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("expected string, got %T", raw)
		}
		if len(field.Enum) > 0 && !contains(field.Enum, s) {
			if field.Default != nil {
				return field.Default, fmt.Sprintf("value %q not in %v, reset to default", s, field.Enum)
			}
			return nil, fmt.Sprintf("value %q not in %v", s, field.Enum)
		}
		return s, ""

	case registry.KindColor:
		s, ok := raw.(string)
		if !ok || !hexColor.MatchString(strings.TrimSpace(s)) {
			return nil, fmt.Sprintf("invalid color %v", raw)
		}
		return strings.TrimSpace(s), ""

	case registry.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Sprintf("expected bool, got %T", raw)
		}
		return b, ""

	case registry.KindList:
		switch raw.(type) {
		case []any, []string, []float64, []models.ChartSeries:
			return raw, ""
		}
		return nil, fmt.Sprintf("expected list, got %T", raw)

	case registry.KindObject:
		if _, ok := raw.(map[string]any); ok {
			return raw, ""
		}
		return nil, fmt.Sprintf("expected object, got %T", raw)
	}
	return raw, ""
}

// toFloat accepts the numeric shapes JSON decoding and generators produce.
func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// clampToCanvas forces the component inside the 1920×1080 canvas: extents
// are capped to the canvas and the origin shifted so the box stays fully
// visible. Returns a warning description when anything moved.
func clampToCanvas(c *models.Component) string {
	orig := *c

	if c.Width <= 0 {
		c.Width = 1
	}
	if c.Height <= 0 {
		c.Height = 1
	}
	if c.Width > models.CanvasWidth {
		c.Width = models.CanvasWidth
	}
	if c.Height > models.CanvasHeight {
		c.Height = models.CanvasHeight
	}
	if c.Position.X < 0 {
		c.Position.X = 0
	}
	if c.Position.Y < 0 {
		c.Position.Y = 0
	}
	if c.Position.X+c.Width > models.CanvasWidth {
		c.Position.X = models.CanvasWidth - c.Width
	}
	if c.Position.Y+c.Height > models.CanvasHeight {
		c.Position.Y = models.CanvasHeight - c.Height
	}

	if orig.Position != c.Position || orig.Width != c.Width || orig.Height != c.Height {
		c.SetMeta(MetaClamped, true)
		return fmt.Sprintf("clamped to canvas (was x=%v y=%v w=%v h=%v)",
			orig.Position.X, orig.Position.Y, orig.Width, orig.Height)
	}
	return ""
}

// applyAdaptiveSizing fits the component's text and records the outcome in
// props and metadata.
func (v *ComponentValidator) applyAdaptiveSizing(c *models.Component, schema *registry.Schema) {
	text := c.Text()
	if text == "" {
		return
	}

	requested := 0.0
	if f := schema.Field("fontSize"); f != nil {
		if n, ok := toFloat(c.Props["fontSize"]); ok {
			requested = n
		} else if def, ok := toFloat(f.Default); ok {
			requested = def
		}
	}
	lineHeight := 1.2
	if n, ok := toFloat(c.Props["lineHeight"]); ok {
		lineHeight = n
	}

	fit := v.sizer.Fit(text, c.Width, c.Height, requested, lineHeight)
	c.Props["fontSize"] = fit.FontSize
	if fit.Adjusted {
		v.logger.Debug("adaptive sizing changed font size",
			"type", c.Type,
			"requested", requested,
			"fitted", fit.FontSize,
			"iterations", fit.Iterations,
			"confidence", fit.Confidence)
	}
	c.SetMeta(MetaAdaptiveSizing, true)
	c.SetMeta(MetaFitConfidence, fit.Confidence)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
