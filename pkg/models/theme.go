package models

// Palette is the deck-wide color set. Colors are CSS hex strings.
type Palette struct {
	PrimaryBackground   string `json:"primary_background"`
	SecondaryBackground string `json:"secondary_background"`
	PrimaryText         string `json:"primary_text"`
	SecondaryText       string `json:"secondary_text"`
	Accent1             string `json:"accent_1"`
	Accent2             string `json:"accent_2"`
	Accent3             string `json:"accent_3"`
}

// Fonts names the deck-wide font pairing.
type Fonts struct {
	Hero string `json:"hero"`
	Body string `json:"body"`
}

// ThemeSpec is the deck-wide style produced once per deck by the theme
// generator. Read-only after the theme_generated event is emitted.
type ThemeSpec struct {
	PaletteName    string  `json:"palette_name"`
	Colors         Palette `json:"colors"`
	Fonts          Fonts   `json:"fonts"`
	VisualStyle    string  `json:"visual_style"`
	StyleManifesto string  `json:"style_manifesto"`

	// Fallback is set when AI theme generation exhausted its retries and the
	// deterministic fallback theme was substituted.
	Fallback bool `json:"theme_fallback,omitempty"`
}

// FallbackTheme returns the deterministic neutral dark theme used when AI
// theme generation fails persistently. Stable across runs so resumed decks
// keep a consistent look.
func FallbackTheme() *ThemeSpec {
	return &ThemeSpec{
		PaletteName: "neutral-dark",
		Colors: Palette{
			PrimaryBackground:   "#121417",
			SecondaryBackground: "#1C1F24",
			PrimaryText:         "#F4F4F5",
			SecondaryText:       "#A1A1AA",
			Accent1:             "#3B82F6",
			Accent2:             "#10B981",
			Accent3:             "#F59E0B",
		},
		Fonts: Fonts{
			Hero: "Inter",
			Body: "Inter",
		},
		VisualStyle:    "minimal",
		StyleManifesto: "Neutral dark canvas, generous whitespace, single accent per slide.",
		Fallback:       true,
	}
}
