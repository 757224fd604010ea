package compose

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/images"
	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/llm"
	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/rag"
	"github.com/decksmith/decksmith/pkg/registry"
	"github.com/decksmith/decksmith/pkg/retry"
	"github.com/decksmith/decksmith/pkg/store"
	"github.com/decksmith/decksmith/pkg/validate"
)

func newSlideGenEnv(t *testing.T, ai llm.Client, outline *models.DeckOutline) (*SlideGenerator, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.SaveDeck(context.Background(), models.NewDeck("deck-sg", outline)))

	validator := validate.NewComponentValidator(
		registry.Builtin(), validate.NewAdaptiveFontSizer(flatMeasurer{}), false, logger)
	gen := NewSlideGenerator(
		ai,
		rag.NewStaticService(),
		validator,
		limits.NewRateLimiter(relaxedLimiter()),
		retry.NewRetrier(1, logger),
		st,
		logger,
	)
	return gen, st
}

func slideGenContext(outline *models.DeckOutline, index int) *models.SlideContext {
	theme := models.FallbackTheme()
	return &models.SlideContext{
		Outline:     outline.Slides[index],
		Index:       index,
		TotalSlides: len(outline.Slides),
		Theme:       theme,
		Palette:     theme.Colors,
		DeckID:      "deck-sg",
	}
}

type eventCollector struct {
	evs []events.GenerationEvent
}

func (c *eventCollector) emit(ev events.GenerationEvent) { c.evs = append(c.evs, ev) }

func (c *eventCollector) countType(eventType string) int {
	n := 0
	for _, ev := range c.evs {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func TestGenerate_AssignsPendingImageToEmptySrc(t *testing.T) {
	ai := &fakeAI{
		slideFn: func(_ context.Context, _ llm.Request) (string, error) {
			return `{
				"title": "Alpha",
				"components": [
					{"type": "Background", "position": {"x": 0, "y": 0}, "width": 1920, "height": 1080, "props": {"color": "#101014"}},
					{"type": "Image", "position": {"x": 200, "y": 200}, "width": 800, "height": 600, "props": {"src": "", "alt": ""}}
				]
			}`, nil
		},
	}
	outline := testOutline(1)
	gen, st := newSlideGenEnv(t, ai, outline)

	found := []models.Image{
		{URL: "https://images.example.com/alpha/0.jpg", Alt: "alpha 1", Topic: "alpha"},
		{URL: "https://images.example.com/alpha/1.jpg", Alt: "alpha 2", Topic: "alpha"},
		{URL: "https://images.example.com/alpha/2.jpg", Alt: "alpha 3", Topic: "alpha"},
	}
	pending := images.NewPendingImageMap()
	pending.Put("s1", found)

	col := &eventCollector{}
	slide, err := gen.Generate(context.Background(), slideGenContext(outline, 0), pending, col.emit)
	require.NoError(t, err)
	require.Equal(t, models.SlideStatusCompleted, slide.Status)

	var img *models.Component
	for i := range slide.Components {
		if slide.Components[i].Type == models.ComponentImage {
			img = &slide.Components[i]
		}
	}
	require.NotNil(t, img)
	assert.Equal(t, found[0].URL, img.Props["src"], "first discovered image fills the empty source")
	assert.Equal(t, found[0].Alt, img.Props["alt"])
	assert.Zero(t, pending.Peek("s1"), "taken images do not linger for a second attempt")

	deck, err := st.GetDeck(context.Background(), "deck-sg")
	require.NoError(t, err)
	persisted := deck.Slides[0]
	for _, c := range persisted.Components {
		if c.Type == models.ComponentImage {
			assert.Equal(t, found[0].URL, c.Props["src"], "assignment happens before persistence")
		}
	}
	assert.Equal(t, 1, col.countType(events.TypeSlideGenerated))
}

func TestGenerate_KeepsExplicitImageSource(t *testing.T) {
	ai := &fakeAI{
		slideFn: func(_ context.Context, _ llm.Request) (string, error) {
			return `{
				"title": "Alpha",
				"components": [
					{"type": "Image", "position": {"x": 0, "y": 0}, "width": 800, "height": 600, "props": {"src": "https://cdn.example.com/chosen.png"}}
				]
			}`, nil
		},
	}
	outline := testOutline(1)
	gen, _ := newSlideGenEnv(t, ai, outline)

	pending := images.NewPendingImageMap()
	pending.Put("s1", []models.Image{{URL: "https://images.example.com/alpha/0.jpg"}})

	col := &eventCollector{}
	slide, err := gen.Generate(context.Background(), slideGenContext(outline, 0), pending, col.emit)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/chosen.png", slide.Components[0].Props["src"])
}

func TestGenerate_EmptyComponentsBecomeMinimalSlide(t *testing.T) {
	ai := &fakeAI{
		slideFn: func(_ context.Context, _ llm.Request) (string, error) {
			return `{"title": "Alpha", "components": []}`, nil
		},
	}
	outline := testOutline(1)
	gen, _ := newSlideGenEnv(t, ai, outline)
	sc := slideGenContext(outline, 0)

	col := &eventCollector{}
	slide, err := gen.Generate(context.Background(), sc, images.NewPendingImageMap(), col.emit)
	require.NoError(t, err)

	// An empty body is repaired, not retried or skipped.
	assert.Equal(t, 1, ai.slideCallsFor("Alpha"))
	assert.Equal(t, 1, col.countType(events.TypeSlideGenerated))
	assert.Zero(t, col.countType(events.TypeSlideSkipped))

	require.Equal(t, models.SlideStatusCompleted, slide.Status)
	require.NotEmpty(t, slide.Components)
	assert.Equal(t, models.ComponentBackground, slide.Components[0].Type)
	assert.Equal(t, sc.Palette.PrimaryBackground, slide.Components[0].Props["color"])

	texts := make([]string, 0, len(slide.Components))
	for _, c := range slide.Components {
		if s, ok := c.Props["text"].(string); ok {
			texts = append(texts, s)
		}
	}
	assert.Contains(t, texts, sc.Outline.Title)
	assert.Contains(t, texts, sc.Outline.Content)
}

func TestGenerate_SkipReasonNamesValidationFailures(t *testing.T) {
	ai := &fakeAI{
		slideFn: func(_ context.Context, _ llm.Request) (string, error) {
			return `{
				"title": "Alpha",
				"components": [
					{"type": "Image", "position": {"x": 0, "y": 0}, "width": 800, "height": 600, "props": {}}
				]
			}`, nil
		},
	}
	outline := testOutline(1)
	gen, _ := newSlideGenEnv(t, ai, outline)

	col := &eventCollector{}
	slide, err := gen.Generate(context.Background(), slideGenContext(outline, 0), images.NewPendingImageMap(), col.emit)
	require.NoError(t, err)
	assert.Equal(t, models.SlideStatusSkipped, slide.Status)

	require.Equal(t, 1, col.countType(events.TypeSlideSkipped))
	for _, ev := range col.evs {
		if ev.Type == events.TypeSlideSkipped {
			p := ev.Data.(events.SlideSkippedPayload)
			assert.Equal(t, "validation_component", p.Reason)
		}
	}
}

func TestSkipReason(t *testing.T) {
	for _, tc := range []struct {
		name   string
		cause  error
		reason string
	}{
		{"timeout", retry.Retryable(retry.KindTimeout, fmt.Errorf("deadline")), "ai_timeout"},
		{"rate limit", retry.Retryable(retry.KindRateLimit, fmt.Errorf("429")), "ai_rate_limit"},
		{"overloaded", retry.Retryable(retry.KindOverloaded, fmt.Errorf("529")), "ai_overloaded"},
		{"missing prop", fmt.Errorf("%w: %w", ErrInvalidSlideResponse,
			fmt.Errorf("component 0: %w: src", validate.ErrMissingRequiredProp)), "validation_component"},
		{"unknown type", fmt.Errorf("%w: %w", ErrInvalidSlideResponse,
			fmt.Errorf("component 0: %w: Widget", validate.ErrUnknownComponentType)), "validation_component"},
		{"garbled body", fmt.Errorf("%w: not json", ErrInvalidSlideResponse), "ai_invalid_response"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.reason, skipReason(tc.cause))
		})
	}
}
