//go:build integration

package store

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

// newTestStore connects to CI_DATABASE_URL when set, otherwise spins up a
// throwaway Postgres container.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("CI_DATABASE_URL")
	if dsn == "" {
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("decksmith_test"),
			postgres.WithUsername("deck"),
			postgres.WithPassword("deck"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	s, err := NewPostgresStore(ctx, &config.StorageConfig{
		Driver: "postgres", DSN: dsn, MaxConns: 4,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	deck := sampleDeck("pg-d1", 3)
	deck.Theme = models.FallbackTheme()
	require.NoError(t, s.SaveDeck(ctx, deck))

	got, err := s.GetDeck(ctx, "pg-d1")
	require.NoError(t, err)
	assert.Equal(t, deck.Name, got.Name)
	assert.Len(t, got.Slides, 3)
	require.NotNil(t, got.Theme)
	assert.Equal(t, "neutral-dark", got.Theme.PaletteName)
	require.NotNil(t, got.Outline)
	assert.Len(t, got.Outline.Slides, 3)
}

func TestPostgresStore_UpdateSlideIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDeck(ctx, sampleDeck("pg-d2", 2)))

	slide := models.Slide{
		ID: "a", Title: "Done", Status: models.SlideStatusCompleted,
		Components: []models.Component{
			{Type: models.ComponentTitle, Width: 1000, Height: 150,
				Props: map[string]any{"text": "Done"}},
		},
	}
	require.NoError(t, s.UpdateSlide(ctx, "pg-d2", 1, slide))

	got, err := s.GetDeck(ctx, "pg-d2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, models.SlideStatusCompleted, got.Slides[1].Status)
	assert.Equal(t, models.SlideStatusPending, got.Slides[0].Status)

	err = s.UpdateSlide(ctx, "pg-d2", 9, slide)
	assert.ErrorIs(t, err, ErrSlideIndexOutOfRange)

	err = s.UpdateSlide(ctx, "pg-missing", 0, slide)
	assert.ErrorIs(t, err, ErrDeckNotFound)
}

func TestPostgresStore_SaveDeckUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	deck := sampleDeck("pg-d3", 1)
	require.NoError(t, s.SaveDeck(ctx, deck))

	deck.Name = "Renamed"
	deck.Version = 7
	require.NoError(t, s.SaveDeck(ctx, deck))

	got, err := s.GetDeck(ctx, "pg-d3")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 7, got.Version)
}

func TestPostgresStore_UpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDeck(ctx, sampleDeck("pg-d4", 1)))

	status := models.DeckStatus{State: models.DeckStateComplete, TotalSlides: 1, Progress: 100}
	require.NoError(t, s.UpdateStatus(ctx, "pg-d4", status))

	got, err := s.GetDeck(ctx, "pg-d4")
	require.NoError(t, err)
	assert.Equal(t, models.DeckStateComplete, got.Status.State)
	assert.Equal(t, 100, got.Status.Progress)
}
