package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/rag"
)

func TestBuildThemePrompt(t *testing.T) {
	outline := &models.DeckOutline{
		Title:      "Launch Plan",
		StyleHints: "bold, energetic",
		Slides: []models.SlideOutline{
			{Title: "Why now"},
			{Title: "Roadmap"},
		},
	}
	prompt := buildThemePrompt(outline)

	assert.Contains(t, prompt, "Title: Launch Plan")
	assert.Contains(t, prompt, "Slides: 2")
	assert.Contains(t, prompt, "bold, energetic")
	assert.Contains(t, prompt, "- Why now")
	assert.Contains(t, prompt, "- Roadmap")
}

func TestBuildSlidePrompt_IncludesThemeAndGuidance(t *testing.T) {
	theme := models.FallbackTheme()
	sc := &models.SlideContext{
		Outline:        models.SlideOutline{Title: "Revenue", Content: "Q3 revenue grew 40%"},
		Index:          1,
		TotalSlides:    5,
		Theme:          theme,
		Palette:        theme.Colors,
		StyleManifesto: theme.StyleManifesto,
	}
	prompt := buildSlidePrompt(sc, []rag.Exemplar{
		{Signature: "content", Layout: "two-column", Guidance: "headline left, support right"},
	})

	assert.Contains(t, prompt, "Position: 2 of 5")
	assert.Contains(t, prompt, "Q3 revenue grew 40%")
	assert.Contains(t, prompt, theme.Colors.PrimaryBackground)
	assert.Contains(t, prompt, theme.StyleManifesto)
	assert.Contains(t, prompt, "two-column: headline left, support right")
}

func TestBuildSlidePrompt_ChartDataWinsOverTable(t *testing.T) {
	sc := &models.SlideContext{
		Outline: models.SlideOutline{
			Title: "Numbers",
			ExtractedData: &models.SlideData{
				ChartData:   []models.ChartSeries{{Name: "Revenue", Points: []float64{1, 2, 3}}},
				TableData:   [][]string{{"a", "b"}},
				TableHeader: []string{"X", "Y"},
			},
		},
		TotalSlides: 1,
	}
	prompt := buildSlidePrompt(sc, nil)

	assert.Contains(t, prompt, "Chart data")
	assert.Contains(t, prompt, "Revenue")
	assert.NotContains(t, prompt, "Table data")
}

func TestBuildSlidePrompt_TableData(t *testing.T) {
	sc := &models.SlideContext{
		Outline: models.SlideOutline{
			Title: "Comparison",
			ExtractedData: &models.SlideData{
				TableData:   [][]string{{"Plan A", "10"}, {"Plan B", "20"}},
				TableHeader: []string{"Plan", "Cost"},
			},
		},
		TotalSlides: 1,
	}
	prompt := buildSlidePrompt(sc, nil)

	assert.Contains(t, prompt, "Table data")
	assert.Contains(t, prompt, "Plan | Cost")
	assert.Contains(t, prompt, "Plan A | 10")
}

func TestBuildSlidePrompt_ImagesAndMedia(t *testing.T) {
	sc := &models.SlideContext{
		Outline:     models.SlideOutline{Title: "Team"},
		TotalSlides: 1,
		AvailableImages: []models.Image{
			{URL: "https://img.example/a.jpg", Alt: "office"},
		},
		TaggedMedia: []models.MediaItem{
			{ID: "m1", URL: "https://cdn.example/m1.png"},
			{ID: "m2", Error: "too large"},
		},
	}
	prompt := buildSlidePrompt(sc, nil)

	assert.Contains(t, prompt, "https://img.example/a.jpg")
	assert.Contains(t, prompt, "at most one")
	assert.Contains(t, prompt, "https://cdn.example/m1.png")
	assert.NotContains(t, prompt, "m2", "failed media never reaches the prompt")
}

func TestBuildSlidePrompt_OmitsEmptySections(t *testing.T) {
	sc := &models.SlideContext{
		Outline:     models.SlideOutline{Title: "Plain", Content: "text"},
		TotalSlides: 1,
	}
	prompt := buildSlidePrompt(sc, nil)

	for _, absent := range []string{"Theme", "Layout guidance", "Chart data", "Table data", "Available images"} {
		assert.False(t, strings.Contains(prompt, "## "+absent), "unexpected section %q", absent)
	}
}
