// Package store persists decks. The Postgres implementation is the
// production backend; the memory implementation serves development and
// tests. UpdateSlide is the hot path: it must commit before the
// slide_generated event for that slide is emitted, so a reconnecting client
// that replays events never references a slide the store does not have.
package store

import (
	"context"
	"errors"

	"github.com/decksmith/decksmith/pkg/models"
)

var (
	// ErrDeckNotFound indicates the deck ID has no stored record.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrSlideIndexOutOfRange indicates an update targeting a slide position
	// the stored deck does not have.
	ErrSlideIndexOutOfRange = errors.New("slide index out of range")
)

// Store is the deck persistence interface.
type Store interface {
	// SaveDeck inserts or fully replaces a deck record.
	SaveDeck(ctx context.Context, deck *models.Deck) error
	// UpdateSlide atomically replaces one slide and bumps the deck version.
	// Idempotent: re-running the same update leaves the same slide content.
	UpdateSlide(ctx context.Context, deckID string, index int, slide models.Slide) error
	// UpdateStatus atomically replaces the deck's status block.
	UpdateStatus(ctx context.Context, deckID string, status models.DeckStatus) error
	// GetDeck fetches a deck by ID.
	GetDeck(ctx context.Context, deckID string) (*models.Deck, error)
	// Close releases backend resources.
	Close() error
}
