// Package compose is the generation core: theme generation, the per-slide
// pipeline, and the deck orchestrator that drives phases, fan-out, and
// pause/resume.
package compose

import (
	"fmt"
	"strings"

	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/rag"
)

// promptBuilder assembles the system and user prompts for AI calls.
// Sections are plain text blocks separated by blank lines; the order is
// stable so prompt caching on the provider side stays effective.
type promptBuilder struct {
	sections []string
}

func newPromptBuilder() *promptBuilder {
	return &promptBuilder{}
}

func (b *promptBuilder) section(header, body string) *promptBuilder {
	if body == "" {
		return b
	}
	if header != "" {
		b.sections = append(b.sections, "## "+header+"\n\n"+body)
	} else {
		b.sections = append(b.sections, body)
	}
	return b
}

func (b *promptBuilder) String() string {
	return strings.Join(b.sections, "\n\n")
}

const themeSystemPrompt = `You are a presentation designer. Produce a deck-wide theme as a single JSON object with this exact shape:
{"palette_name": string, "colors": {"primary_background": hex, "secondary_background": hex, "primary_text": hex, "secondary_text": hex, "accent_1": hex, "accent_2": hex, "accent_3": hex}, "fonts": {"hero": string, "body": string}, "visual_style": string, "style_manifesto": string}
All colors are CSS hex strings. The style_manifesto is 2-3 sentences of concrete design direction. Respond with JSON only.`

// buildThemePrompt produces the user prompt for theme generation.
func buildThemePrompt(outline *models.DeckOutline) string {
	b := newPromptBuilder()
	b.section("Deck", fmt.Sprintf("Title: %s\nSlides: %d", outline.Title, len(outline.Slides)))
	if outline.StyleHints != "" {
		b.section("Style hints", outline.StyleHints)
	}

	var titles []string
	for _, s := range outline.Slides {
		titles = append(titles, "- "+s.Title)
	}
	b.section("Slide titles", strings.Join(titles, "\n"))
	return b.String()
}

const slideSystemPrompt = `You are a presentation layout engine for a 1920x1080 canvas. Produce one slide as a single JSON object:
{"title": string, "components": [{"type": string, "position": {"x": number, "y": number}, "width": number, "height": number, "props": object}]}
Allowed component types: Background, Title, Heading, TextBlock, TiptapTextBlock, Image, Shape, Chart, Table, Icon.
Every slide starts with one Background component. Positions are absolute canvas coordinates. Respond with JSON only.`

// buildSlidePrompt produces the user prompt for one slide from its context
// and retrieved guidance.
func buildSlidePrompt(sc *models.SlideContext, exemplars []rag.Exemplar) string {
	b := newPromptBuilder()
	b.section("Slide", fmt.Sprintf("Position: %d of %d\nTitle: %s", sc.Index+1, sc.TotalSlides, sc.Outline.Title))
	b.section("Content", sc.Outline.Content)

	if sc.Theme != nil {
		b.section("Theme", fmt.Sprintf(
			"Palette: %s\nBackground: %s\nText: %s\nAccent: %s\nHero font: %s\nBody font: %s",
			sc.Theme.PaletteName,
			sc.Palette.PrimaryBackground, sc.Palette.PrimaryText, sc.Palette.Accent1,
			sc.Theme.Fonts.Hero, sc.Theme.Fonts.Body))
	}
	b.section("Style manifesto", sc.StyleManifesto)

	if len(exemplars) > 0 {
		var lines []string
		for _, ex := range exemplars {
			lines = append(lines, fmt.Sprintf("- %s: %s", ex.Layout, ex.Guidance))
		}
		b.section("Layout guidance", strings.Join(lines, "\n"))
	}

	if data := sc.Outline.ExtractedData; data.HasChartData() {
		var lines []string
		for _, series := range data.ChartData {
			lines = append(lines, fmt.Sprintf("- %s: %v", series.Name, series.Points))
		}
		b.section("Chart data", "Visualize with a Chart component:\n"+strings.Join(lines, "\n"))
	} else if data.HasTabularData() {
		var lines []string
		if len(data.TableHeader) > 0 {
			lines = append(lines, strings.Join(data.TableHeader, " | "))
		}
		for _, row := range data.TableData {
			lines = append(lines, strings.Join(row, " | "))
		}
		b.section("Table data", "Render with a Table component:\n"+strings.Join(lines, "\n"))
	}

	if len(sc.AvailableImages) > 0 {
		var lines []string
		for _, img := range sc.AvailableImages {
			lines = append(lines, fmt.Sprintf("- %s (%s)", img.URL, img.Alt))
		}
		b.section("Available images", "Use at most one, with an Image component:\n"+strings.Join(lines, "\n"))
	}
	if len(sc.TaggedMedia) > 0 {
		var lines []string
		for _, m := range sc.TaggedMedia {
			if m.Processed() {
				lines = append(lines, "- "+m.URL)
			}
		}
		b.section("User media for this slide", strings.Join(lines, "\n"))
	}
	return b.String()
}
