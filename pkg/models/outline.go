// Package models defines the core data structures of the deck-composition
// engine: outlines, themes, components, slides, decks, and the durable
// generation state used for pause/resume.
package models

// DeckOutline is the user-provided structured plan for a deck. It is
// immutable input: the orchestrator never mutates an outline after accepting it.
type DeckOutline struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	StyleHints    string         `json:"style_hints,omitempty"`
	Slides        []SlideOutline `json:"slides"`
	UploadedMedia []MediaItem    `json:"uploaded_media,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

// SlideOutline describes a single planned slide before generation.
type SlideOutline struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	LayoutHint    string      `json:"layout_hint,omitempty"`
	Comparison    bool        `json:"comparison,omitempty"`
	ExtractedData *SlideData  `json:"extracted_data,omitempty"`
	TaggedMedia   []MediaItem `json:"tagged_media,omitempty"`
}

// SlideData carries structured data extracted from the outline source
// (tables, chart series) that the generator should visualize.
type SlideData struct {
	ChartData   []ChartSeries `json:"chart_data,omitempty"`
	TableData   [][]string    `json:"table_data,omitempty"`
	TableHeader []string      `json:"table_header,omitempty"`
}

// ChartSeries is one named series of numeric points.
type ChartSeries struct {
	Name   string    `json:"name"`
	Points []float64 `json:"points"`
}

// HasChartData reports whether the slide carries chart series.
func (d *SlideData) HasChartData() bool {
	return d != nil && len(d.ChartData) > 0
}

// HasTabularData reports whether the slide carries table rows.
func (d *SlideData) HasTabularData() bool {
	return d != nil && len(d.TableData) > 0
}

// MediaItem is a piece of user-uploaded media. Before processing, Data holds
// a base64 data URL; after processing, URL points at durable storage and Data
// is cleared. Error marks items that failed processing without aborting the
// batch.
type MediaItem struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
	SlideID  string `json:"slide_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Processed reports whether the item has been uploaded to durable storage.
func (m *MediaItem) Processed() bool {
	return m.URL != "" && m.Error == ""
}
