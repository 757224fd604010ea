package snapshot

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(&config.SnapshotConfig{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleState(genID string) *models.GenerationState {
	outline := &models.DeckOutline{
		ID:    "o1",
		Title: "Deck",
		Slides: []models.SlideOutline{
			{ID: "s1", Title: "One"},
			{ID: "s2", Title: "Two"},
			{ID: "s3", Title: "Three"},
		},
	}
	return models.NewGenerationState(genID, "d1", outline, nil)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	state := sampleState("g1")
	state.SlideStates["s1"] = models.SlideState{Status: models.SlideStatusCompleted, Attempts: 1}
	require.NoError(t, s.Save(state))

	got, err := s.Load("g1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DeckID)
	assert.Equal(t, models.SlideStatusCompleted, got.SlideStates["s1"].Status)
	assert.Equal(t, []string{"s2", "s3"}, got.PendingSlideIDs())
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestStore_CorruptRecordRefusesToLoad(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"bad"), []byte("not json"))
	}))
	_, err := s.Load("bad")
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	// Wrong envelope version is equally unusable.
	wrong, _ := json.Marshal(map[string]any{"version": 99, "payload": map[string]any{}})
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"v99"), wrong)
	}))
	_, err = s.Load("v99")
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestStore_Prune(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(sampleState("fresh")))

	// Backdate one snapshot past the cutoff.
	old, _ := json.Marshal(envelope{
		Version:      envelopeVersion,
		GenerationID: "old",
		WrittenAt:    time.Now().UTC().Add(-48 * time.Hour),
		Payload:      sampleState("old"),
	})
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"old"), old)
	}))

	n, err := s.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Load("old")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	_, err = s.Load("fresh")
	assert.NoError(t, err)
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(newTestStore(t), slog.New(slog.DiscardHandler))
}

func TestManager_PauseCancelsAndPersists(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	state := sampleState("g1")
	state.RunState = models.RunStateSlidesInProgress
	state.SlideStates["s1"] = models.SlideState{Status: models.SlideStatusCompleted, Attempts: 1}
	require.NoError(t, m.Register(state, cancel))

	require.NoError(t, m.Pause("g1"))

	select {
	case <-ctx.Done():
	default:
		t.Fatal("pause must cancel the run context")
	}

	assert.True(t, m.CanResume("g1"))
	resumed, err := m.ResumeContext("g1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatePaused, resumed.RunState)
	assert.Equal(t, []string{"s2", "s3"}, resumed.PendingSlideIDs(),
		"completed slides stay settled across pause")
}

func TestManager_PauseUnknownRun(t *testing.T) {
	m := newTestManager(t)
	assert.ErrorIs(t, m.Pause("ghost"), ErrRunNotActive)
}

func TestManager_ResumeRequiresPausedState(t *testing.T) {
	m := newTestManager(t)

	state := sampleState("g2")
	state.RunState = models.RunStateComplete
	require.NoError(t, m.store.Save(state))

	assert.False(t, m.CanResume("g2"))
	_, err := m.ResumeContext("g2")
	assert.ErrorIs(t, err, ErrNotResumable)
}

func TestManager_UnregisterDropsSnapshotUnlessPaused(t *testing.T) {
	m := newTestManager(t)

	// Finished run: snapshot removed.
	_, cancel := context.WithCancel(context.Background())
	done := sampleState("done")
	require.NoError(t, m.Register(done, cancel))
	require.NoError(t, m.Checkpoint(done))
	m.Unregister("done")
	_, err := m.store.Load("done")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	// Paused run: snapshot survives.
	_, cancel2 := context.WithCancel(context.Background())
	paused := sampleState("paused")
	require.NoError(t, m.Register(paused, cancel2))
	require.NoError(t, m.Pause("paused"))
	m.Unregister("paused")
	_, err = m.store.Load("paused")
	assert.NoError(t, err)
}

func TestManager_CancelDropsEverything(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	state := sampleState("g3")
	require.NoError(t, m.Register(state, cancel))
	require.NoError(t, m.Checkpoint(state))

	require.NoError(t, m.Cancel("g3"))
	assert.False(t, m.Active("g3"))
	select {
	case <-ctx.Done():
	default:
		t.Fatal("cancel must cancel the run context")
	}
	_, err := m.store.Load("g3")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
