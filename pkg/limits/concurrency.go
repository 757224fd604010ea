package limits

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrDeckBusy indicates the per-deck lock is already held by an active
// orchestration.
var ErrDeckBusy = errors.New("DECK_GENERATION_IN_PROGRESS")

// ConcurrencyConfig bounds slide generation across three dimensions.
// The per-deck dimension comes from compose options, not from here.
type ConcurrencyConfig struct {
	GlobalMaxConcurrentSlides int `yaml:"global_max_concurrent_slides" validate:"min=1"`
	PerUserMaxSlides          int `yaml:"per_user_max_slides" validate:"min=1"`
}

// DefaultConcurrencyConfig returns the standard caps.
func DefaultConcurrencyConfig() ConcurrencyConfig {
	return ConcurrencyConfig{
		GlobalMaxConcurrentSlides: 16,
		PerUserMaxSlides:          8,
	}
}

// Manager owns the per-deck exclusive locks and the slide-slot semaphores.
//
// Slide slots acquire three counting semaphores in a fixed order — global,
// then per-user, then per-deck — and release in reverse, which rules out
// deadlock between concurrent acquirers. FIFO ordering per dimension is not
// guaranteed; starvation stays bounded because slide work is short and
// per-deck parallelism is small.
type Manager struct {
	cfg ConcurrencyConfig

	global *semaphore.Weighted

	mu        sync.Mutex
	userSems  map[string]*semaphore.Weighted
	deckSems  map[string]*semaphore.Weighted
	deckLocks map[string]bool
	active    int
}

// NewManager creates a Manager with the given caps.
func NewManager(cfg ConcurrencyConfig) *Manager {
	return &Manager{
		cfg:       cfg,
		global:    semaphore.NewWeighted(int64(cfg.GlobalMaxConcurrentSlides)),
		userSems:  make(map[string]*semaphore.Weighted),
		deckSems:  make(map[string]*semaphore.Weighted),
		deckLocks: make(map[string]bool),
	}
}

// DeckLock is the handle returned by AcquireDeckLock. Release is idempotent.
type DeckLock struct {
	m        *Manager
	deckID   string
	released sync.Once
}

// Release clears the deck's busy marker.
func (l *DeckLock) Release() {
	l.released.Do(func() {
		l.m.mu.Lock()
		delete(l.m.deckLocks, l.deckID)
		delete(l.m.deckSems, l.deckID)
		l.m.mu.Unlock()
	})
}

// AcquireDeckLock atomically claims exclusive ownership of a deck. Returns
// ErrDeckBusy if another orchestration holds it; there is no waiting — a
// concurrent request for a busy deck is rejected, not queued.
func (m *Manager) AcquireDeckLock(deckID string) (*DeckLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deckLocks[deckID] {
		return nil, fmt.Errorf("deck %s: %w", deckID, ErrDeckBusy)
	}
	m.deckLocks[deckID] = true
	return &DeckLock{m: m, deckID: deckID}, nil
}

// DeckBusy reports whether a deck lock is currently held.
func (m *Manager) DeckBusy(deckID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deckLocks[deckID]
}

// SlideSlot is a held slide-generation slot. Release returns all three
// semaphore units; it is idempotent.
type SlideSlot struct {
	m        *Manager
	user     *semaphore.Weighted
	deck     *semaphore.Weighted
	released sync.Once
}

// Release frees the slot.
func (s *SlideSlot) Release() {
	s.released.Do(func() {
		if s.deck != nil {
			s.deck.Release(1)
		}
		if s.user != nil {
			s.user.Release(1)
		}
		s.m.global.Release(1)
		s.m.mu.Lock()
		s.m.active--
		s.m.mu.Unlock()
	})
}

// AcquireSlideSlot blocks until a slot is available in all three dimensions:
// the process-wide cap, the user's cap, and the deck's cap (maxParallel from
// compose options). userID may be empty (anonymous runs skip the user
// dimension). On context cancellation, partially acquired units are
// released.
func (m *Manager) AcquireSlideSlot(ctx context.Context, deckID, userID string, maxParallel int) (*SlideSlot, error) {
	if err := m.global.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire global slide slot: %w", err)
	}

	var userSem *semaphore.Weighted
	if userID != "" {
		userSem = m.semFor(m.userSems, userID, m.cfg.PerUserMaxSlides)
		if err := userSem.Acquire(ctx, 1); err != nil {
			m.global.Release(1)
			return nil, fmt.Errorf("acquire user slide slot: %w", err)
		}
	}

	deckSem := m.semFor(m.deckSems, deckID, maxParallel)
	if err := deckSem.Acquire(ctx, 1); err != nil {
		if userSem != nil {
			userSem.Release(1)
		}
		m.global.Release(1)
		return nil, fmt.Errorf("acquire deck slide slot: %w", err)
	}

	m.mu.Lock()
	m.active++
	m.mu.Unlock()

	return &SlideSlot{m: m, user: userSem, deck: deckSem}, nil
}

// semFor returns the semaphore for key, creating it with the given capacity
// on first use. Capacity is fixed at creation; per-deck semaphores are
// dropped with the deck lock, so a later run may size the gate differently.
func (m *Manager) semFor(table map[string]*semaphore.Weighted, key string, capacity int) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := table[key]
	if !ok {
		sem = semaphore.NewWeighted(int64(capacity))
		table[key] = sem
	}
	return sem
}

// Stats is a monitoring snapshot of the manager.
type Stats struct {
	ActiveSlides    int `json:"active_slides"`
	HeldDeckLocks   int `json:"held_deck_locks"`
	TrackedUserSems int `json:"tracked_user_sems"`
}

// Stats returns current counts.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		ActiveSlides:    m.active,
		HeldDeckLocks:   len(m.deckLocks),
		TrackedUserSems: len(m.userSems),
	}
}
