// Package snapshot persists generation run state for pause/resume and owns
// the live registry of cancellable runs. Snapshots live in badger, versioned
// so incompatible records fail loudly instead of resuming garbage.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

// envelopeVersion is bumped when the snapshot payload shape changes.
const envelopeVersion = 1

const keyPrefix = "snapshot:"

var (
	// ErrSnapshotNotFound indicates no snapshot exists for the generation.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrCorruptSnapshot indicates a snapshot that cannot be decoded or has
	// an incompatible envelope version. Resuming from it is refused.
	ErrCorruptSnapshot = errors.New("corrupt snapshot record")
)

// envelope wraps the payload with versioning metadata.
type envelope struct {
	Version      int                     `json:"version"`
	GenerationID string                  `json:"generation_id"`
	WrittenAt    time.Time               `json:"written_at"`
	Payload      *models.GenerationState `json:"payload"`
}

// Store persists generation snapshots in badger.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore opens the snapshot database. An empty Dir runs badger in memory,
// which covers tests and development.
func NewStore(cfg *config.SnapshotConfig, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save writes the snapshot for a generation, replacing any previous one.
func (s *Store) Save(state *models.GenerationState) error {
	raw, err := json.Marshal(envelope{
		Version:      envelopeVersion,
		GenerationID: state.GenerationID,
		WrittenAt:    time.Now().UTC(),
		Payload:      state,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+state.GenerationID), raw)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", state.GenerationID, err)
	}
	return nil
}

// Load fetches and validates a snapshot.
func (s *Store) Load(generationID string) (*models.GenerationState, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + generationID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, generationID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", generationID, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if env.Version != envelopeVersion || env.Payload == nil {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptSnapshot, env.Version)
	}
	return env.Payload, nil
}

// Delete removes a snapshot. Missing keys are not an error.
func (s *Store) Delete(generationID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + generationID))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", generationID, err)
	}
	return nil
}

// Prune deletes snapshots written before the cutoff. Returns the number
// removed.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var stale []string

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil || env.WrittenAt.Before(cutoff) {
				// Undecodable records are pruned too; they can never resume.
				stale = append(stale, string(item.Key()))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan snapshots: %w", err)
	}

	for _, key := range stale {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		}); err != nil {
			return 0, fmt.Errorf("prune snapshot %s: %w", key, err)
		}
	}
	if len(stale) > 0 {
		s.logger.Info("pruned snapshots", "count", len(stale))
	}
	return len(stale), nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }
