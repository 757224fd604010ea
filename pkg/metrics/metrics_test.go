package metrics

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/models"
)

func TestRecorder_ObservesBusEvents(t *testing.T) {
	r := NewRecorder(nil)
	bus := events.NewBus()
	unsubscribe := r.Attach(bus)
	defer unsubscribe()

	ctx := context.Background()
	bus.Publish(ctx, events.New(events.TypeStarted, events.StartedPayload{Message: "go"}))
	bus.Publish(ctx, events.New(events.TypeThemeGenerated, events.ThemeGeneratedPayload{}))
	bus.Publish(ctx, events.New(events.TypeSlideGenerated, events.SlideGeneratedPayload{
		SlideIndex: 0, SlideData: &models.Slide{}, GenerationTime: 1.5,
	}))
	bus.Publish(ctx, events.New(events.TypeSlideGenerated, events.SlideGeneratedPayload{
		SlideIndex: 1, SlideData: &models.Slide{}, GenerationTime: 0.7,
	}))
	bus.Publish(ctx, events.New(events.TypeSlideSkipped, events.SlideSkippedPayload{SlideIndex: 2}))
	bus.Publish(ctx, events.New(events.TypeTopicImagesFound, events.TopicImagesFoundPayload{ImagesCount: 4}))
	bus.Publish(ctx, events.New(events.TypeDeckComplete, events.DeckCompletePayload{Success: true}))
	bus.Publish(ctx, events.New(events.TypeDeckComplete, events.DeckCompletePayload{
		Success: false,
		Message: "Deck composition finished with_errors: 1 of 3 slides did not complete",
	}))
	bus.Publish(ctx, events.New(events.TypeDeckComplete, events.DeckCompletePayload{
		Success: false,
		Message: "Deck composition failed: no slide could be generated",
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.decksStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.slidesSettled.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.slidesSettled.WithLabelValues("skipped")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.imagesFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decksCompleted.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decksCompleted.WithLabelValues("complete_with_errors")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decksCompleted.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.slideDuration))
}

func TestRecorder_HandlerServesExposition(t *testing.T) {
	r := NewRecorder(nil)
	bus := events.NewBus()
	defer r.Attach(bus)()
	bus.Publish(context.Background(), events.New(events.TypeStarted, events.StartedPayload{}))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "decksmith_decks_started_total 1")
}
