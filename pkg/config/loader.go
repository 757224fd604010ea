package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the single configuration file loaded from configDir.
const ConfigFileName = "decksmith.yaml"

// Initialize loads, merges, and validates configuration. This is the primary
// entry point.
//
// Steps performed:
//  1. Read decksmith.yaml from configDir (missing file means pure defaults)
//  2. Expand {{.VAR}} environment references
//  3. Parse YAML
//  4. Merge over built-in defaults (YAML wins per field)
//  5. Validate struct tags and cross-field constraints
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"ai_provider", cfg.AI.Provider,
		"storage_driver", cfg.Storage.Driver,
		"images_provider", cfg.Images.Provider,
		"rag_enabled", cfg.RAG.Enabled)
	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := defaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file is a valid setup: defaults plus environment expansion
			// cover development runs.
			slog.Info("No configuration file found, using defaults", "path", path)
			return cfg, nil
		}
		return nil, NewLoadError(ConfigFileName, err)
	}

	data = ExpandEnv(data)

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %w", ErrInvalidYAML, err))
	}

	// Merge file sections over defaults. Each non-nil section merges field
	// by field; nil sections keep the complete default.
	if err := mergeSections(cfg, &fileCfg); err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}
	return cfg, nil
}

func mergeSections(dst, src *Config) error {
	sections := []struct {
		name string
		dst  any
		src  any
	}{
		{"compose", dst.Compose, src.Compose},
		{"ai", dst.AI, src.AI},
		{"rate_limiter", dst.RateLimiter, src.RateLimiter},
		{"concurrency", dst.Concurrency, src.Concurrency},
		{"images", dst.Images, src.Images},
		{"media", dst.Media, src.Media},
		{"storage", dst.Storage, src.Storage},
		{"snapshot", dst.Snapshot, src.Snapshot},
		{"rag", dst.RAG, src.RAG},
		{"server", dst.Server, src.Server},
		{"logging", dst.Logging, src.Logging},
	}
	for _, s := range sections {
		if isNilPtr(s.src) {
			continue
		}
		if err := mergo.Merge(s.dst, s.src, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge %s section: %w", s.name, err)
		}
	}
	return nil
}

func isNilPtr(v any) bool {
	switch p := v.(type) {
	case *ComposeConfig:
		return p == nil
	case *AIConfig:
		return p == nil
	case *RateLimiterConfig:
		return p == nil
	case *ConcurrencyConfig:
		return p == nil
	case *ImagesConfig:
		return p == nil
	case *MediaConfig:
		return p == nil
	case *StorageConfig:
		return p == nil
	case *SnapshotConfig:
		return p == nil
	case *RAGConfig:
		return p == nil
	case *ServerConfig:
		return p == nil
	case *LoggingConfig:
		return p == nil
	}
	return v == nil
}
