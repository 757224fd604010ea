package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/llm"
	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/retry"
)

// ThemeGenerator produces the deck-wide theme. Persistent AI failure never
// fails the deck: the deterministic fallback theme steps in, flagged so
// clients can tell.
type ThemeGenerator struct {
	ai      llm.Client
	limiter *limits.RateLimiter
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewThemeGenerator builds a theme generator.
func NewThemeGenerator(ai llm.Client, limiter *limits.RateLimiter, retrier *retry.Retrier, logger *slog.Logger) *ThemeGenerator {
	return &ThemeGenerator{ai: ai, limiter: limiter, retrier: retrier, logger: logger}
}

// Generate returns the theme for a deck. The error return is reserved for
// context cancellation; every other failure resolves to the fallback theme.
func (g *ThemeGenerator) Generate(ctx context.Context, outline *models.DeckOutline) (*models.ThemeSpec, error) {
	theme, err := retry.DoValue(ctx, g.retrier, "generate_theme", func(ctx context.Context) (*models.ThemeSpec, error) {
		if err := g.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		raw, err := g.ai.GenerateJSON(ctx, llm.Request{
			Task:   llm.TaskTheme,
			System: themeSystemPrompt,
			User:   buildThemePrompt(outline),
		})
		if err != nil {
			return nil, err
		}
		return parseTheme(raw)
	})
	if err == nil {
		return theme, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	g.logger.Warn("theme generation failed, using fallback theme",
		"deck_title", outline.Title, "error", err)
	return models.FallbackTheme(), nil
}

// parseTheme decodes and sanity-checks an AI theme document. Invalid
// documents are retryable: regeneration usually fixes malformed JSON.
func parseTheme(raw string) (*models.ThemeSpec, error) {
	var theme models.ThemeSpec
	if err := json.Unmarshal([]byte(raw), &theme); err != nil {
		return nil, retry.Retryable(retry.KindOther, fmt.Errorf("parse theme JSON: %w", err))
	}

	required := map[string]string{
		"primary_background": theme.Colors.PrimaryBackground,
		"primary_text":       theme.Colors.PrimaryText,
		"accent_1":           theme.Colors.Accent1,
	}
	for field, value := range required {
		if !strings.HasPrefix(value, "#") {
			return nil, retry.Retryable(retry.KindOther,
				fmt.Errorf("theme missing usable %s (got %q)", field, value))
		}
	}
	if theme.Fonts.Hero == "" {
		theme.Fonts.Hero = "Inter"
	}
	if theme.Fonts.Body == "" {
		theme.Fonts.Body = theme.Fonts.Hero
	}
	if theme.StyleManifesto == "" {
		theme.StyleManifesto = fmt.Sprintf(
			"Use the %s palette consistently. One idea per slide, generous whitespace, accents sparingly.",
			theme.PaletteName)
	}
	return &theme, nil
}
