package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/decksmith/decksmith/pkg/models"
)

// MemoryStore keeps decks in process. Copies go in and out through JSON so
// callers can never alias stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	decks map[string]*models.Deck
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decks: make(map[string]*models.Deck)}
}

// SaveDeck implements Store.
func (s *MemoryStore) SaveDeck(_ context.Context, deck *models.Deck) error {
	cp, err := cloneDeck(deck)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[deck.UUID] = cp
	return nil
}

// UpdateSlide implements Store.
func (s *MemoryStore) UpdateSlide(_ context.Context, deckID string, index int, slide models.Slide) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deck, ok := s.decks[deckID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	if index < 0 || index >= len(deck.Slides) {
		return fmt.Errorf("%w: %d of %d", ErrSlideIndexOutOfRange, index, len(deck.Slides))
	}
	var cp models.Slide
	if err := reencode(slide, &cp); err != nil {
		return err
	}
	deck.Slides[index] = cp
	deck.Version++
	deck.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(_ context.Context, deckID string, status models.DeckStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deck, ok := s.decks[deckID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	deck.Status = status
	deck.Version++
	deck.UpdatedAt = time.Now().UTC()
	return nil
}

// GetDeck implements Store.
func (s *MemoryStore) GetDeck(_ context.Context, deckID string) (*models.Deck, error) {
	s.mu.RLock()
	deck, ok := s.decks[deckID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	return cloneDeck(deck)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func cloneDeck(deck *models.Deck) (*models.Deck, error) {
	var cp models.Deck
	if err := reencode(deck, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func reencode(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	return json.Unmarshal(raw, dst)
}
