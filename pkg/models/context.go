package models

// SlideContext is everything the slide generator needs to produce one slide.
// Built by the orchestrator after the theme phase; immutable during
// generation.
type SlideContext struct {
	Outline        SlideOutline `json:"outline"`
	Index          int          `json:"index"`
	TotalSlides    int          `json:"total_slides"`
	Theme          *ThemeSpec   `json:"theme"`
	Palette        Palette      `json:"palette"`
	StyleManifesto string       `json:"style_manifesto"`

	// AvailableImages are candidates already discovered for this slide at
	// context-build time. More may arrive later through the pending-image map.
	AvailableImages []Image     `json:"available_images,omitempty"`
	TaggedMedia     []MediaItem `json:"tagged_media,omitempty"`

	HasChartData   bool   `json:"has_chart_data"`
	HasTabularData bool   `json:"has_tabular_data"`
	DeckID         string `json:"deck_id"`
	UserID         string `json:"user_id,omitempty"`
}

// Signature returns the compact lookup key used by the design knowledge base:
// the layout hint when present, otherwise a coarse shape classifier derived
// from the outline content.
func (c *SlideContext) Signature() string {
	if c.Outline.LayoutHint != "" {
		return c.Outline.LayoutHint
	}
	switch {
	case c.HasChartData:
		return "data-chart"
	case c.HasTabularData:
		return "data-table"
	case c.Outline.Comparison:
		return "comparison"
	case c.Index == 0:
		return "title"
	case len(c.AvailableImages) > 0 || len(c.TaggedMedia) > 0:
		return "media"
	default:
		return "content"
	}
}
