// Package rag retrieves layout guidance for slide generation. Exemplars are
// keyed by the slide's content signature; a weaviate collection serves them
// in production and a built-in set covers development and weaviate outages.
// Retrieval failures are soft: generation proceeds without guidance.
package rag

import (
	"context"

	"github.com/decksmith/decksmith/pkg/models"
)

// Exemplar is one retrieved piece of layout guidance.
type Exemplar struct {
	Signature string `json:"signature"`
	Layout    string `json:"layout"`
	Guidance  string `json:"guidance"`
}

// Service retrieves exemplars for a slide context.
type Service interface {
	Lookup(ctx context.Context, sc *models.SlideContext) ([]Exemplar, error)
}

// StaticService serves the built-in exemplar set. It never fails.
type StaticService struct{}

// NewStaticService returns the built-in knowledge base.
func NewStaticService() *StaticService { return &StaticService{} }

// Lookup implements Service.
func (s *StaticService) Lookup(_ context.Context, sc *models.SlideContext) ([]Exemplar, error) {
	sig := sc.Signature()
	if ex, ok := builtinExemplars[sig]; ok {
		return ex, nil
	}
	return builtinExemplars["content"], nil
}

var builtinExemplars = map[string][]Exemplar{
	"title": {
		{Signature: "title", Layout: "hero",
			Guidance: "Single oversized title in the upper third, subtitle beneath, strong background color or full-bleed image."},
	},
	"data-chart": {
		{Signature: "data-chart", Layout: "chart-focus",
			Guidance: "Chart occupies the right two thirds; heading and a one-line takeaway on the left. Never more than one chart per slide."},
		{Signature: "data-chart", Layout: "chart-full",
			Guidance: "Full-width chart under a short heading when there is no prose; legend on, grid off for fewer than four series."},
	},
	"data-table": {
		{Signature: "data-table", Layout: "table-focus",
			Guidance: "Table centered with generous margins, striped rows, at most six visible columns; heading above states the conclusion."},
	},
	"comparison": {
		{Signature: "comparison", Layout: "two-column",
			Guidance: "Two equal columns with a heading each, divider or contrasting panel colors between them."},
	},
	"media": {
		{Signature: "media", Layout: "image-split",
			Guidance: "Image fills one half edge to edge; text column on the other half, top-aligned with the heading."},
	},
	"content": {
		{Signature: "content", Layout: "heading-body",
			Guidance: "Heading, then at most four short text blocks; prefer one column and let whitespace breathe."},
	},
}
