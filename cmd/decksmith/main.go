// Decksmith server — composes presentation decks from structured outlines,
// streaming generation progress over SSE and WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/decksmith/decksmith/pkg/api"
	"github.com/decksmith/decksmith/pkg/compose"
	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/images"
	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/llm"
	"github.com/decksmith/decksmith/pkg/media"
	"github.com/decksmith/decksmith/pkg/metrics"
	"github.com/decksmith/decksmith/pkg/rag"
	"github.com/decksmith/decksmith/pkg/registry"
	"github.com/decksmith/decksmith/pkg/retry"
	"github.com/decksmith/decksmith/pkg/snapshot"
	"github.com/decksmith/decksmith/pkg/store"
	"github.com/decksmith/decksmith/pkg/validate"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func buildLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("Starting decksmith",
		"config_dir", *configDir,
		"storage", cfg.Storage.Driver,
		"ai_provider", cfg.AI.Provider)

	// Storage
	var st store.Store
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Error("Failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		st = pg
	default:
		st = store.NewMemoryStore()
		logger.Warn("Using in-memory deck storage, decks are lost on restart")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Error closing deck store", "error", err)
		}
	}()

	// AI client
	aiClient, err := llm.NewClient(cfg.AI, logger)
	if err != nil {
		logger.Error("Failed to initialize AI client", "error", err)
		os.Exit(1)
	}

	// Design knowledge base: weaviate when configured, builtin exemplars
	// otherwise.
	var ragSvc rag.Service = rag.NewStaticService()
	if cfg.RAG.Enabled {
		wv, err := rag.NewWeaviateService(cfg.RAG, logger)
		if err != nil {
			logger.Error("Failed to initialize layout retrieval", "error", err)
			os.Exit(1)
		}
		ragSvc = wv
		logger.Info("Layout retrieval enabled", "host", cfg.RAG.Host)
	}

	// Limits
	limiter := limits.NewRateLimiter(limits.RateLimiterConfig{
		Capacity: cfg.RateLimiter.Capacity,
		Window:   cfg.RateLimiter.Window,
	})
	concurrency := limits.NewManager(limits.ConcurrencyConfig{
		GlobalMaxConcurrentSlides: cfg.Concurrency.GlobalMaxConcurrentSlides,
		PerUserMaxSlides:          cfg.Concurrency.PerUserMaxSlides,
	})
	retrier := retry.NewRetrier(cfg.Compose.MaxRetries, logger)

	// Component validation with real font metrics; estimated widths when
	// the embedded face fails to parse.
	var measurer validate.TextMeasurer
	if fm, err := validate.NewFontMetrics(); err == nil {
		measurer = fm
	} else {
		logger.Warn("Font metrics unavailable, using width estimates", "error", err)
		measurer = validate.EstimateMeasurer{}
	}
	validator := validate.NewComponentValidator(
		registry.Builtin(),
		validate.NewAdaptiveFontSizer(measurer),
		cfg.Compose.StrictMode,
		logger,
	)

	// Image search
	provider, err := images.NewProvider(cfg.Images)
	if err != nil {
		logger.Error("Failed to initialize image provider", "error", err)
		os.Exit(1)
	}
	var imageSvc *images.Service
	if provider != nil {
		imageSvc = images.NewService(provider, cfg.Images, logger)
	}

	// Media processing
	uploader, err := media.NewUploader(ctx, cfg.Media)
	if err != nil {
		logger.Error("Failed to initialize media uploader", "error", err)
		os.Exit(1)
	}
	processor := media.NewProcessor(uploader, cfg.Media, logger)

	// Pause/resume snapshots
	snapStore, err := snapshot.NewStore(cfg.Snapshot, logger)
	if err != nil {
		logger.Error("Failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := snapStore.Close(); err != nil {
			logger.Error("Error closing snapshot store", "error", err)
		}
	}()
	snaps := snapshot.NewManager(snapStore, logger)
	snaps.StartPruning(ctx, cfg.Snapshot)

	// Event fan-out
	bus := events.NewBus()
	connManager := events.NewConnectionManager(cfg.Server.WriteTimeout)

	recorder := metrics.NewRecorder(concurrency)
	defer recorder.Attach(bus)()

	orch := compose.NewOrchestrator(
		cfg.Compose,
		compose.NewThemeGenerator(aiClient, limiter, retrier, logger),
		compose.NewSlideGenerator(aiClient, ragSvc, validator, limiter, retrier, st, logger),
		processor,
		imageSvc,
		st,
		concurrency,
		snaps,
		bus,
		connManager,
		logger,
	)

	server := api.NewServer(
		cfg.Server,
		cfg.Compose.DetachOnDisconnect,
		orch,
		st,
		connManager,
		concurrency,
		recorder,
		logger,
	)

	logger.Info("Decksmith started",
		"addr", cfg.Server.Host, "port", cfg.Server.Port)
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Decksmith stopped")
}
