package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

var (
	// ErrRunNotActive indicates a pause or cancel targeting a generation
	// that is not currently running.
	ErrRunNotActive = errors.New("generation not active")
	// ErrNotResumable indicates a resume for a snapshot whose run state is
	// not paused.
	ErrNotResumable = errors.New("generation not resumable")
)

// run is one live generation.
type run struct {
	cancel context.CancelFunc
	state  *models.GenerationState
	paused bool
}

// Manager tracks live generations and their snapshots. Pause cancels the
// run's context after persisting a paused snapshot; Resume hands the
// snapshot back to the orchestrator, which regenerates only the slides that
// never completed.
type Manager struct {
	store  *Store
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewManager builds a manager on the given snapshot store.
func NewManager(store *Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger, runs: make(map[string]*run)}
}

// Register adds a live run. The cancel function must stop the run's
// goroutines when called.
func (m *Manager) Register(state *models.GenerationState, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[state.GenerationID]; exists {
		return fmt.Errorf("generation %s already registered", state.GenerationID)
	}
	m.runs[state.GenerationID] = &run{cancel: cancel, state: state}
	return nil
}

// Checkpoint persists the current state of a live run. The orchestrator
// calls this at phase boundaries and after each slide settles.
func (m *Manager) Checkpoint(state *models.GenerationState) error {
	state.UpdatedAt = time.Now().UTC()
	return m.store.Save(state)
}

// Pause snapshots the run as paused and cancels it. The slide states
// captured are whatever the orchestrator checkpointed plus the paused
// marker; in-flight slides cancel and stay pending.
func (m *Manager) Pause(generationID string) error {
	m.mu.Lock()
	r, ok := m.runs[generationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotActive, generationID)
	}
	r.paused = true
	r.state.RunState = models.RunStatePaused
	r.state.UpdatedAt = time.Now().UTC()
	cancel := r.cancel
	state := r.state
	m.mu.Unlock()

	if err := m.store.Save(state); err != nil {
		return fmt.Errorf("persist paused snapshot: %w", err)
	}
	cancel()
	m.logger.Info("generation paused",
		"generation_id", generationID,
		"deck_id", state.DeckID,
		"pending_slides", len(state.PendingSlideIDs()))
	return nil
}

// Cancel stops a run without marking it resumable and drops its snapshot.
func (m *Manager) Cancel(generationID string) error {
	m.mu.Lock()
	r, ok := m.runs[generationID]
	if ok {
		delete(m.runs, generationID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, generationID)
	}
	r.cancel()
	return m.store.Delete(generationID)
}

// Unregister removes a finished run and deletes its snapshot unless the run
// was paused (paused snapshots must survive for resume).
func (m *Manager) Unregister(generationID string) {
	m.mu.Lock()
	r, ok := m.runs[generationID]
	if ok {
		delete(m.runs, generationID)
	}
	m.mu.Unlock()
	if ok && !r.paused {
		if err := m.store.Delete(generationID); err != nil {
			m.logger.Warn("failed to delete snapshot", "generation_id", generationID, "error", err)
		}
	}
}

// Active reports whether a generation is currently running.
func (m *Manager) Active(generationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[generationID]
	return ok
}

// CanResume reports whether a paused snapshot exists for the generation.
func (m *Manager) CanResume(generationID string) bool {
	state, err := m.store.Load(generationID)
	return err == nil && state.RunState == models.RunStatePaused
}

// ResumeContext loads the paused snapshot a resumed run continues from.
// Completed and skipped slides stay settled; only pending work reruns.
func (m *Manager) ResumeContext(generationID string) (*models.GenerationState, error) {
	state, err := m.store.Load(generationID)
	if err != nil {
		return nil, err
	}
	if state.RunState != models.RunStatePaused {
		return nil, fmt.Errorf("%w: run state is %s", ErrNotResumable, state.RunState)
	}
	return state, nil
}

// StartPruning runs the retention loop until ctx is cancelled.
func (m *Manager) StartPruning(ctx context.Context, cfg *config.SnapshotConfig) {
	go func() {
		ticker := time.NewTicker(cfg.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.store.Prune(cfg.Retention); err != nil {
					m.logger.Warn("snapshot pruning failed", "error", err)
				}
			}
		}
	}()
}
