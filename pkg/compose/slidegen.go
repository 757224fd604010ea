package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/images"
	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/llm"
	"github.com/decksmith/decksmith/pkg/models"
	"github.com/decksmith/decksmith/pkg/rag"
	"github.com/decksmith/decksmith/pkg/retry"
	"github.com/decksmith/decksmith/pkg/store"
	"github.com/decksmith/decksmith/pkg/validate"
)

// ErrInvalidSlideResponse indicates the AI returned a document that could
// not be turned into a valid slide even after retries.
var ErrInvalidSlideResponse = errors.New("invalid slide response")

// SlideGenerator runs the per-slide pipeline: context preparation, guidance
// retrieval, image take, AI generation, validation, persistence, emission.
type SlideGenerator struct {
	ai        llm.Client
	rag       rag.Service
	validator *validate.ComponentValidator
	limiter   *limits.RateLimiter
	retrier   *retry.Retrier
	store     store.Store
	logger    *slog.Logger
}

// NewSlideGenerator builds a slide generator.
func NewSlideGenerator(
	ai llm.Client,
	ragSvc rag.Service,
	validator *validate.ComponentValidator,
	limiter *limits.RateLimiter,
	retrier *retry.Retrier,
	st store.Store,
	logger *slog.Logger,
) *SlideGenerator {
	return &SlideGenerator{
		ai:        ai,
		rag:       ragSvc,
		validator: validator,
		limiter:   limiter,
		retrier:   retrier,
		store:     st,
		logger:    logger,
	}
}

// generatedSlide is the JSON shape the AI returns for one slide.
type generatedSlide struct {
	Title      string             `json:"title"`
	Components []models.Component `json:"components"`
}

// Generate runs the whole pipeline for one slide and returns the persisted
// slide. Terminal slide events (slide_generated, slide_skipped,
// slide_error) are emitted here so their ordering against the persistence
// commit is owned by one place. A non-nil error is returned only for
// failures the orchestrator must count (failed or cancelled slides);
// skipped slides return the placeholder with a nil error.
func (g *SlideGenerator) Generate(ctx context.Context, sc *models.SlideContext, pending *images.PendingImageMap, emit Emitter) (*models.Slide, error) {
	start := time.Now()
	emit(events.New(events.TypeSlideStarted, events.SlideStartedPayload{
		SlideIndex: sc.Index,
		SlideTitle: sc.Outline.Title,
	}))

	// Context preparation: late-arriving images are folded in here, after
	// which this attempt's input is fixed.
	emit(events.New(events.TypeSlideSubstep, events.SlideSubstepPayload{
		SlideIndex: sc.Index, Step: events.StepPreparingContext, Progress: 10,
	}))
	if taken := pending.Take(sc.Outline.ID); len(taken) > 0 {
		sc.AvailableImages = append(sc.AvailableImages, taken...)
	}

	emit(events.New(events.TypeSlideSubstep, events.SlideSubstepPayload{
		SlideIndex: sc.Index, Step: events.StepRAGLookup, Progress: 25,
	}))
	exemplars, err := g.rag.Lookup(ctx, sc)
	if err != nil {
		// Guidance is optional; a failed lookup costs quality, not the slide.
		g.logger.Warn("guidance lookup failed", "slide_index", sc.Index, "error", err)
		exemplars = nil
	}

	emit(events.New(events.TypeSlideSubstep, events.SlideSubstepPayload{
		SlideIndex: sc.Index, Step: events.StepAIGeneration, Progress: 40,
	}))
	slide, err := g.generateAndValidate(ctx, sc, exemplars)
	if err != nil {
		return g.settleFailure(ctx, sc, err, emit)
	}

	if n := applyPendingImages(slide.Components, sc.AvailableImages); n > 0 {
		g.logger.Debug("assigned pending images",
			"deck_id", sc.DeckID, "slide_index", sc.Index, "count", n)
	}

	emit(events.New(events.TypeSlideSubstep, events.SlideSubstepPayload{
		SlideIndex: sc.Index, Step: events.StepSaving, Progress: 80,
	}))
	if err := g.store.UpdateSlide(ctx, sc.DeckID, sc.Index, *slide); err != nil {
		return g.settleFailure(ctx, sc, fmt.Errorf("persist slide: %w", err), emit)
	}

	// The update above committed; only now may clients learn the slide
	// exists.
	emit(events.New(events.TypeSlideGenerated, events.SlideGeneratedPayload{
		SlideIndex:     sc.Index,
		SlideData:      slide,
		GenerationTime: time.Since(start).Seconds(),
	}))
	g.logger.Info("slide generated",
		"deck_id", sc.DeckID, "slide_index", sc.Index,
		"components", len(slide.Components),
		"duration_ms", time.Since(start).Milliseconds())
	return slide, nil
}

// generateAndValidate is the retried core: rate-limited AI call, JSON
// parse, component validation. Parse and validation failures are retryable
// until attempts run out, at which point they surface as
// ErrInvalidSlideResponse.
func (g *SlideGenerator) generateAndValidate(ctx context.Context, sc *models.SlideContext, exemplars []rag.Exemplar) (*models.Slide, error) {
	return retry.DoValue(ctx, g.retrier, fmt.Sprintf("generate_slide_%d", sc.Index),
		func(ctx context.Context) (*models.Slide, error) {
			if err := g.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
			raw, err := g.ai.GenerateJSON(ctx, llm.Request{
				Task:   llm.TaskSlide,
				System: slideSystemPrompt,
				User:   buildSlidePrompt(sc, exemplars),
			})
			if err != nil {
				return nil, err
			}

			var doc generatedSlide
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return nil, retry.Retryable(retry.KindOther,
					fmt.Errorf("%w: %v", ErrInvalidSlideResponse, err))
			}
			if len(doc.Components) == 0 {
				// An empty body is recoverable: the outline already carries
				// enough to render a minimum-viable slide in theme colors.
				doc.Components = minimalComponents(sc)
			}

			components, warnings, err := g.validator.ValidateComponents(doc.Components)
			if err != nil {
				return nil, retry.Retryable(retry.KindOther,
					fmt.Errorf("%w: %w", ErrInvalidSlideResponse, err))
			}
			for _, w := range warnings {
				g.logger.Debug("component repaired", "slide_index", sc.Index, "warning", w)
			}

			title := doc.Title
			if title == "" {
				title = sc.Outline.Title
			}
			return &models.Slide{
				ID:            sc.Outline.ID,
				Title:         title,
				Components:    components,
				Status:        models.SlideStatusCompleted,
				ExtractedData: sc.Outline.ExtractedData,
			}, nil
		})
}

// settleFailure turns a pipeline error into the slide's terminal state:
// invalid-response and skippable errors persist a placeholder and emit
// slide_skipped; cancellation propagates; everything else persists a failed
// marker and emits slide_error.
func (g *SlideGenerator) settleFailure(ctx context.Context, sc *models.SlideContext, cause error, emit Emitter) (*models.Slide, error) {
	// Run-level cancellation propagates; a per-slide deadline settles the
	// slide as failed and lets the deck continue.
	if errors.Is(cause, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return nil, context.Cause(ctx)
	}
	// The slide context may already be dead (timeout); persistence and
	// emission still have to happen.
	ctx = context.WithoutCancel(ctx)

	_, class := retry.Classify(cause)
	skipped := class == retry.ClassSkippable || errors.Is(cause, ErrInvalidSlideResponse)

	if skipped {
		placeholder := placeholderSlide(sc)
		if err := g.store.UpdateSlide(ctx, sc.DeckID, sc.Index, *placeholder); err != nil {
			g.logger.Error("failed to persist placeholder slide",
				"deck_id", sc.DeckID, "slide_index", sc.Index, "error", err)
		}
		emit(events.New(events.TypeSlideSkipped, events.SlideSkippedPayload{
			SlideIndex: sc.Index,
			Reason:     skipReason(cause),
		}))
		g.logger.Warn("slide skipped",
			"deck_id", sc.DeckID, "slide_index", sc.Index, "error", cause)
		return placeholder, nil
	}

	failed := &models.Slide{
		ID:            sc.Outline.ID,
		Title:         sc.Outline.Title,
		Components:    []models.Component{},
		Status:        models.SlideStatusFailed,
		ExtractedData: sc.Outline.ExtractedData,
	}
	if err := g.store.UpdateSlide(ctx, sc.DeckID, sc.Index, *failed); err != nil {
		g.logger.Error("failed to persist failed slide marker",
			"deck_id", sc.DeckID, "slide_index", sc.Index, "error", err)
	}
	emit(events.New(events.TypeSlideError, events.SlideErrorPayload{
		SlideIndex: sc.Index,
		Error:      cause.Error(),
	}))
	g.logger.Error("slide failed",
		"deck_id", sc.DeckID, "slide_index", sc.Index, "error", cause)
	return nil, cause
}

// skipReason names the error-taxonomy bucket behind a skipped slide.
func skipReason(cause error) string {
	kind, _ := retry.Classify(cause)
	switch kind {
	case retry.KindTimeout:
		return "ai_timeout"
	case retry.KindRateLimit:
		return "ai_rate_limit"
	case retry.KindOverloaded:
		return "ai_overloaded"
	}
	if errors.Is(cause, validate.ErrUnknownComponentType) || errors.Is(cause, validate.ErrMissingRequiredProp) {
		return "validation_component"
	}
	return "ai_invalid_response"
}

// applyPendingImages fills Image components that arrived without a source
// from the slide's discovered candidates, in component order. Returns the
// number of assignments made.
func applyPendingImages(components []models.Component, candidates []models.Image) int {
	applied := 0
	for i := range components {
		if applied == len(candidates) {
			break
		}
		if components[i].Type != models.ComponentImage {
			continue
		}
		if src, _ := components[i].Props["src"].(string); src != "" {
			continue
		}
		img := candidates[applied]
		components[i].Props["src"] = img.URL
		if alt, _ := components[i].Props["alt"].(string); alt == "" && img.Alt != "" {
			components[i].Props["alt"] = img.Alt
		}
		applied++
	}
	return applied
}

// minimalComponents is the fallback body for a slide the model returned
// empty: the outline's message on a themed background.
func minimalComponents(sc *models.SlideContext) []models.Component {
	bg, heading, body := "#FFFFFF", "#18181B", "#3F3F46"
	if sc.Theme != nil {
		bg = sc.Palette.PrimaryBackground
		heading = sc.Palette.PrimaryText
		body = sc.Palette.SecondaryText
	}
	return []models.Component{
		{
			Type: models.ComponentBackground, Width: models.CanvasWidth, Height: models.CanvasHeight,
			Props: map[string]any{"color": bg},
		},
		{
			Type:     models.ComponentHeading,
			Position: models.Position{X: 120, Y: 300},
			Width:    1680, Height: 160,
			Props: map[string]any{"text": sc.Outline.Title, "color": heading},
		},
		{
			Type:     models.ComponentTextBlock,
			Position: models.Position{X: 120, Y: 520},
			Width:    1680, Height: 320,
			Props: map[string]any{"text": sc.Outline.Content, "color": body},
		},
	}
}

// placeholderSlide is what a skipped slide leaves behind: the planned title
// over a plain background, so the deck keeps its shape.
func placeholderSlide(sc *models.SlideContext) *models.Slide {
	bg := "#F4F4F5"
	text := "#52525B"
	if sc.Theme != nil {
		bg = sc.Palette.SecondaryBackground
		text = sc.Palette.SecondaryText
	}
	return &models.Slide{
		ID:    sc.Outline.ID,
		Title: sc.Outline.Title,
		Components: []models.Component{
			{
				Type: models.ComponentBackground, Width: models.CanvasWidth, Height: models.CanvasHeight,
				Props: map[string]any{"color": bg},
			},
			{
				Type:     models.ComponentHeading,
				Position: models.Position{X: 120, Y: 460},
				Width:    1680, Height: 160,
				Props: map[string]any{"text": sc.Outline.Title, "color": text, "align": "center"},
			},
		},
		Status:        models.SlideStatusSkipped,
		ExtractedData: sc.Outline.ExtractedData,
	}
}
