package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/models"
)

func sampleDeck(id string, slideCount int) *models.Deck {
	outline := &models.DeckOutline{ID: "o-" + id, Title: "Deck " + id}
	for i := 0; i < slideCount; i++ {
		outline.Slides = append(outline.Slides, models.SlideOutline{
			ID:    string(rune('a' + i)),
			Title: "Slide",
		})
	}
	return models.NewDeck(id, outline)
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	deck := sampleDeck("d1", 3)
	require.NoError(t, s.SaveDeck(ctx, deck))

	got, err := s.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, deck.UUID, got.UUID)
	assert.Len(t, got.Slides, 3)
	assert.Equal(t, models.DeckStatePending, got.Status.State)
}

func TestMemoryStore_GetUnknownDeck(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetDeck(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDeckNotFound)
}

func TestMemoryStore_UpdateSlideBumpsVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveDeck(ctx, sampleDeck("d1", 2)))

	slide := models.Slide{
		ID:     "a",
		Title:  "Generated",
		Status: models.SlideStatusCompleted,
		Components: []models.Component{
			{Type: models.ComponentTitle, Width: 1200, Height: 160,
				Props: map[string]any{"text": "Generated"}},
		},
	}
	require.NoError(t, s.UpdateSlide(ctx, "d1", 0, slide))

	got, err := s.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, models.SlideStatusCompleted, got.Slides[0].Status)
	assert.Len(t, got.Slides[0].Components, 1)
	assert.Equal(t, models.SlideStatusPending, got.Slides[1].Status, "other slides untouched")

	// Idempotent: the same update leaves the same content.
	require.NoError(t, s.UpdateSlide(ctx, "d1", 0, slide))
	again, err := s.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, got.Slides[0], again.Slides[0])
}

func TestMemoryStore_UpdateSlideOutOfRange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveDeck(ctx, sampleDeck("d1", 2)))

	err := s.UpdateSlide(ctx, "d1", 5, models.Slide{ID: "x"})
	assert.ErrorIs(t, err, ErrSlideIndexOutOfRange)

	err = s.UpdateSlide(ctx, "missing", 0, models.Slide{ID: "x"})
	assert.ErrorIs(t, err, ErrDeckNotFound)
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveDeck(ctx, sampleDeck("d1", 1)))

	status := models.DeckStatus{
		State: models.DeckStateGenerating, CurrentSlide: 1, TotalSlides: 1, Progress: 40,
	}
	require.NoError(t, s.UpdateStatus(ctx, "d1", status))

	got, err := s.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, status, got.Status)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveDeck(ctx, sampleDeck("d1", 1)))

	got, err := s.GetDeck(ctx, "d1")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Slides[0].Title = "mutated"

	fresh, err := s.GetDeck(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Deck d1", fresh.Name)
	assert.NotEqual(t, "mutated", fresh.Slides[0].Title)
}
