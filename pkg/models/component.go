package models

// Canvas dimensions. Every slide renders on a fixed 1920×1080 canvas;
// component positions and extents are validated against these bounds.
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
)

// Component type tags for the builtin registry. The registry owns the
// authoritative set; these constants exist so generator code can construct
// well-known components without string literals.
const (
	ComponentBackground      = "Background"
	ComponentTitle           = "Title"
	ComponentHeading         = "Heading"
	ComponentTextBlock       = "TextBlock"
	ComponentTiptapTextBlock = "TiptapTextBlock"
	ComponentImage           = "Image"
	ComponentShape           = "Shape"
	ComponentChart           = "Chart"
	ComponentTable           = "Table"
	ComponentIcon            = "Icon"
)

// Position is the top-left corner of a component on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Component is a positioned, typed element on a slide. The variant is
// discriminated by Type; Props carries the type-specific properties and is
// validated against the registry schema for that type.
type Component struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Width    float64        `json:"width"`
	Height   float64        `json:"height"`
	Props    map[string]any `json:"props,omitempty"`

	// Metadata holds validator annotations (adaptive sizing results,
	// confidence) that renderers may consult but never require.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TextBearing reports whether the component type renders flowed text and is
// therefore subject to adaptive font sizing.
func TextBearing(componentType string) bool {
	switch componentType {
	case ComponentTitle, ComponentHeading, ComponentTextBlock, ComponentTiptapTextBlock:
		return true
	default:
		return false
	}
}

// Text returns the component's text prop, if any.
func (c *Component) Text() string {
	if c.Props == nil {
		return ""
	}
	if s, ok := c.Props["text"].(string); ok {
		return s
	}
	return ""
}

// SetMeta records a metadata annotation, allocating the map on first use.
func (c *Component) SetMeta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Clone returns a deep-enough copy: Props and Metadata maps are copied one
// level deep, which covers every builtin prop schema (scalars and small
// slices that validators replace rather than mutate).
func (c *Component) Clone() Component {
	out := *c
	if c.Props != nil {
		out.Props = make(map[string]any, len(c.Props))
		for k, v := range c.Props {
			out.Props[k] = v
		}
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
