package limits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BlocksUntilTokenRegenerates(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Capacity: 1, Window: time.Second})

	start := time.Now()
	require.NoError(t, rl.Acquire(context.Background()))
	require.NoError(t, rl.Acquire(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond,
		"second acquire must wait for the bucket to refill")
}

func TestRateLimiter_TryAcquireDoesNotBlock(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Capacity: 2, Window: time.Hour})

	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire(), "bucket exhausted")

	stats := rl.Stats()
	assert.Equal(t, int64(2), stats.TotalAcquired)
}

func TestRateLimiter_AcquireHonorsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Capacity: 1, Window: time.Hour})
	require.NoError(t, rl.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_DeckLockIsExclusive(t *testing.T) {
	m := NewManager(DefaultConcurrencyConfig())

	lock, err := m.AcquireDeckLock("deck-1")
	require.NoError(t, err)
	assert.True(t, m.DeckBusy("deck-1"))

	_, err = m.AcquireDeckLock("deck-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeckBusy)

	// A different deck is unaffected.
	other, err := m.AcquireDeckLock("deck-2")
	require.NoError(t, err)
	other.Release()

	lock.Release()
	lock.Release() // idempotent
	assert.False(t, m.DeckBusy("deck-1"))

	relocked, err := m.AcquireDeckLock("deck-1")
	require.NoError(t, err)
	relocked.Release()
}

func TestManager_SlideSlotEnforcesDeckCap(t *testing.T) {
	m := NewManager(DefaultConcurrencyConfig())
	ctx := context.Background()

	s1, err := m.AcquireSlideSlot(ctx, "deck-1", "user-1", 2)
	require.NoError(t, err)
	s2, err := m.AcquireSlideSlot(ctx, "deck-1", "user-1", 2)
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = m.AcquireSlideSlot(blocked, "deck-1", "user-1", 2)
	assert.Error(t, err, "third slot must block until one is released")

	s1.Release()
	s3, err := m.AcquireSlideSlot(ctx, "deck-1", "user-1", 2)
	require.NoError(t, err)

	s2.Release()
	s3.Release()
	assert.Zero(t, m.Stats().ActiveSlides)
}

func TestManager_SlideSlotEnforcesUserCap(t *testing.T) {
	m := NewManager(ConcurrencyConfig{GlobalMaxConcurrentSlides: 16, PerUserMaxSlides: 1})
	ctx := context.Background()

	s1, err := m.AcquireSlideSlot(ctx, "deck-1", "user-1", 4)
	require.NoError(t, err)

	// Same user, different deck: still capped.
	blocked, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = m.AcquireSlideSlot(blocked, "deck-2", "user-1", 4)
	assert.Error(t, err)

	// Different user is independent.
	s2, err := m.AcquireSlideSlot(ctx, "deck-2", "user-2", 4)
	require.NoError(t, err)

	s1.Release()
	s2.Release()
}

func TestManager_CancelledAcquireReleasesPartialUnits(t *testing.T) {
	m := NewManager(ConcurrencyConfig{GlobalMaxConcurrentSlides: 1, PerUserMaxSlides: 8})
	ctx := context.Background()

	held, err := m.AcquireSlideSlot(ctx, "deck-1", "user-1", 1)
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.AcquireSlideSlot(blocked, "deck-1", "user-1", 1)
	require.Error(t, err)

	held.Release()

	// If the failed acquire leaked a unit this would hang.
	quick, quickCancel := context.WithTimeout(ctx, time.Second)
	defer quickCancel()
	slot, err := m.AcquireSlideSlot(quick, "deck-1", "user-1", 1)
	require.NoError(t, err)
	slot.Release()
}
