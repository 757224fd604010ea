package config

import "time"

// Built-in defaults. The YAML file overrides per field; unset fields keep
// these values after the merge.

func DefaultComposeConfig() *ComposeConfig {
	return &ComposeConfig{
		MaxParallel:        4,
		SlideTimeout:       60 * time.Second,
		MaxRetries:         3,
		DelayBetweenSlides: 500 * time.Millisecond,
		PrefetchImages:     false,
		MinEmitInterval:    100 * time.Millisecond,
		StrictMode:         false,
		DetachOnDisconnect: false,
	}
}

func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		Provider:    "openai",
		APIKeyEnv:   "OPENAI_API_KEY",
		Model:       "gpt-4o",
		MaxTokens:   8192,
		Temperature: 0.7,
	}
}

func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{Capacity: 10, Window: 10 * time.Second}
}

func DefaultConcurrencyConfig() *ConcurrencyConfig {
	return &ConcurrencyConfig{
		GlobalMaxConcurrentSlides: 16,
		PerUserMaxSlides:          8,
	}
}

func DefaultImagesConfig() *ImagesConfig {
	return &ImagesConfig{
		Provider:      "stub",
		APIKeyEnv:     "IMAGE_SEARCH_API_KEY",
		MaxPerTopic:   6,
		CacheTTL:      15 * time.Minute,
		SearchTimeout: 30 * time.Second,
	}
}

func DefaultMediaConfig() *MediaConfig {
	return &MediaConfig{
		Uploader:    "memory",
		MaxBytes:    10 << 20,
		MaxEdge:     2048,
		JPEGQuality: 85,
		BatchSize:   5,
	}
}

func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{Driver: "memory", MaxConns: 10}
}

func DefaultSnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{
		Retention:     24 * time.Hour,
		PruneInterval: time.Hour,
	}
}

func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Enabled: false,
		Scheme:  "http",
		Class:   "SlideExemplar",
		Limit:   4,
	}
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{Level: "info", Format: "text"}
}

// defaultConfig assembles the complete built-in configuration.
func defaultConfig() *Config {
	return &Config{
		Compose:     DefaultComposeConfig(),
		AI:          DefaultAIConfig(),
		RateLimiter: DefaultRateLimiterConfig(),
		Concurrency: DefaultConcurrencyConfig(),
		Images:      DefaultImagesConfig(),
		Media:       DefaultMediaConfig(),
		Storage:     DefaultStorageConfig(),
		Snapshot:    DefaultSnapshotConfig(),
		RAG:         DefaultRAGConfig(),
		Server:      DefaultServerConfig(),
		Logging:     DefaultLoggingConfig(),
	}
}
