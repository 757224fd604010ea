package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresStore persists decks in a single table with JSONB columns for the
// nested documents. Slide updates run as one jsonb_set statement, which
// gives atomicity without explicit transactions.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects, migrates, and returns a ready store.
func NewPostgresStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(cfg.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("Postgres store ready", "max_conns", cfg.MaxConns)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// runMigrations applies embedded migrations through a short-lived
// database/sql connection; the pgx pool stays untouched.
func runMigrations(dsn string) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close() //nolint:errcheck // best-effort close of a throwaway conn

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "decksmith", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return source.Close()
}

// SaveDeck implements Store.
func (s *PostgresStore) SaveDeck(ctx context.Context, deck *models.Deck) error {
	slides, err := json.Marshal(deck.Slides)
	if err != nil {
		return fmt.Errorf("marshal slides: %w", err)
	}
	status, err := json.Marshal(deck.Status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	outline, err := json.Marshal(deck.Outline)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}
	theme, err := json.Marshal(deck.Theme)
	if err != nil {
		return fmt.Errorf("marshal theme: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO decks (id, name, size_w, size_h, slides, status, outline, theme, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slides = EXCLUDED.slides,
			status = EXCLUDED.status,
			outline = EXCLUDED.outline,
			theme = EXCLUDED.theme,
			notes = EXCLUDED.notes,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		deck.UUID, deck.Name, deck.Size.W, deck.Size.H,
		slides, status, outline, theme,
		deck.Notes, deck.Version, deck.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save deck %s: %w", deck.UUID, err)
	}
	return nil
}

// UpdateSlide implements Store. The jsonb_set guard on array length makes
// out-of-range updates a no-op detected by the affected-row count.
func (s *PostgresStore) UpdateSlide(ctx context.Context, deckID string, index int, slide models.Slide) error {
	payload, err := json.Marshal(slide)
	if err != nil {
		return fmt.Errorf("marshal slide: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE decks
		SET slides = jsonb_set(slides, ARRAY[$2::text], $3::jsonb),
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1 AND jsonb_array_length(slides) > $2`,
		deckID, index, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update slide %d of deck %s: %w", index, deckID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetDeck(ctx, deckID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %d", ErrSlideIndexOutOfRange, index)
	}
	return nil
}

// UpdateStatus implements Store.
func (s *PostgresStore) UpdateStatus(ctx context.Context, deckID string, status models.DeckStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE decks SET status = $2::jsonb, version = version + 1, updated_at = $3
		WHERE id = $1`,
		deckID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update status of deck %s: %w", deckID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
	}
	return nil
}

// GetDeck implements Store.
func (s *PostgresStore) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	var (
		deck    models.Deck
		slides  []byte
		status  []byte
		outline []byte
		theme   []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, size_w, size_h, slides, status, outline, theme, notes, version, created_at, updated_at
		FROM decks WHERE id = $1`, deckID).Scan(
		&deck.UUID, &deck.Name, &deck.Size.W, &deck.Size.H,
		&slides, &status, &outline, &theme,
		&deck.Notes, &deck.Version, &deck.CreatedAt, &deck.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, deckID)
		}
		return nil, fmt.Errorf("get deck %s: %w", deckID, err)
	}

	if err := json.Unmarshal(slides, &deck.Slides); err != nil {
		return nil, fmt.Errorf("decode slides: %w", err)
	}
	if err := json.Unmarshal(status, &deck.Status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if len(outline) > 0 && string(outline) != "null" {
		if err := json.Unmarshal(outline, &deck.Outline); err != nil {
			return nil, fmt.Errorf("decode outline: %w", err)
		}
	}
	if len(theme) > 0 && string(theme) != "null" {
		if err := json.Unmarshal(theme, &deck.Theme); err != nil {
			return nil, fmt.Errorf("decode theme: %w", err)
		}
	}
	return &deck, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
