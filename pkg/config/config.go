// Package config loads and validates the decksmith.yaml configuration:
// compose behavior, AI provider settings, resource limits, storage, and the
// HTTP server surface. Values merge in three layers — built-in defaults,
// the YAML file, environment variable expansion inside the YAML.
package config

import (
	"time"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	configDir string

	Compose     *ComposeConfig     `yaml:"compose"`
	AI          *AIConfig          `yaml:"ai"`
	RateLimiter *RateLimiterConfig `yaml:"rate_limiter"`
	Concurrency *ConcurrencyConfig `yaml:"concurrency"`
	Images      *ImagesConfig      `yaml:"images"`
	Media       *MediaConfig       `yaml:"media"`
	Storage     *StorageConfig     `yaml:"storage"`
	Snapshot    *SnapshotConfig    `yaml:"snapshot"`
	RAG         *RAGConfig         `yaml:"rag"`
	Server      *ServerConfig      `yaml:"server"`
	Logging     *LoggingConfig     `yaml:"logging"`
}

// ComposeConfig controls the per-run generation behavior. Individual compose
// requests may override a subset of these through request options.
type ComposeConfig struct {
	// MaxParallel bounds concurrent slide generation within one deck.
	MaxParallel int `yaml:"max_parallel" validate:"min=1,max=32"`
	// SlideTimeout caps a single slide attempt end to end.
	SlideTimeout time.Duration `yaml:"slide_timeout" validate:"min=1s"`
	// MaxRetries caps attempts per retryable operation (first try included).
	MaxRetries int `yaml:"max_retries" validate:"min=1,max=10"`
	// DelayBetweenSlides paces fan-out launches to smooth provider load.
	DelayBetweenSlides time.Duration `yaml:"delay_between_slides" validate:"min=0"`
	// AsyncImages runs the topic image search concurrently with slides.
	// Pointer so an explicit "false" survives the defaults merge.
	AsyncImages *bool `yaml:"async_images"`
	// PrefetchImages blocks the slide phase until topic search completes.
	PrefetchImages bool `yaml:"prefetch_images"`
	// EnableVisualAnalysis turns on the optional post-generation visual pass.
	EnableVisualAnalysis bool `yaml:"enable_visual_analysis"`
	// MinEmitInterval throttles non-priority progress events per deck.
	MinEmitInterval time.Duration `yaml:"min_emit_interval" validate:"min=0"`
	// StrictMode fails validation on unknown component types instead of
	// replacing the slide with a placeholder.
	StrictMode bool `yaml:"strict_mode"`
	// DetachOnDisconnect keeps a run alive when its stream consumer drops.
	// Off means disconnect cancels the run.
	DetachOnDisconnect bool `yaml:"detach_on_disconnect"`
}

// AIConfig selects and parameterizes the AI provider.
type AIConfig struct {
	// Provider is the backing service. "openai" talks to an OpenAI-compatible
	// endpoint; "stub" is the deterministic in-process generator used in
	// development and tests.
	Provider string `yaml:"provider" validate:"oneof=openai stub"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// BaseURL overrides the provider endpoint (empty uses the default).
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// Model is the model identifier sent with each request.
	Model string `yaml:"model" validate:"required"`
	// MaxTokens caps generated tokens per call.
	MaxTokens int `yaml:"max_tokens" validate:"min=1"`
	// Temperature is the sampling temperature.
	Temperature float32 `yaml:"temperature" validate:"min=0,max=2"`
}

// RateLimiterConfig is the AI-call token bucket.
type RateLimiterConfig struct {
	Capacity int           `yaml:"capacity" validate:"min=1"`
	Window   time.Duration `yaml:"window" validate:"min=1ms"`
}

// ConcurrencyConfig bounds slide work beyond the per-deck dimension.
type ConcurrencyConfig struct {
	GlobalMaxConcurrentSlides int `yaml:"global_max_concurrent_slides" validate:"min=1"`
	PerUserMaxSlides          int `yaml:"per_user_max_slides" validate:"min=1"`
}

// ImagesConfig controls the background stock image search.
type ImagesConfig struct {
	// Provider: "http" queries the configured search endpoint, "stub"
	// returns canned results, "off" disables search entirely.
	Provider string `yaml:"provider" validate:"oneof=http stub off"`
	// Endpoint is the search API base URL (http provider only).
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// APIKeyEnv names the environment variable holding the search API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// MaxPerTopic caps results fetched per topic.
	MaxPerTopic int `yaml:"max_per_topic" validate:"min=1,max=50"`
	// CacheTTL bounds how long per-topic results are reused.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"min=0"`
	// SearchTimeout caps the whole background search.
	SearchTimeout time.Duration `yaml:"search_timeout" validate:"min=1s"`
}

// MediaConfig controls inline media extraction and upload.
type MediaConfig struct {
	// Uploader: "gcs" stores re-encoded media in a bucket, "memory" keeps it
	// in process (development and tests).
	Uploader string `yaml:"uploader" validate:"oneof=gcs memory"`
	// Bucket is the GCS bucket name (gcs uploader only).
	Bucket string `yaml:"bucket"`
	// MaxBytes rejects decoded payloads larger than this.
	MaxBytes int64 `yaml:"max_bytes" validate:"min=1"`
	// MaxEdge downscales images whose longest edge exceeds this.
	MaxEdge int `yaml:"max_edge" validate:"min=64"`
	// JPEGQuality is the re-encode quality for opaque images.
	JPEGQuality int `yaml:"jpeg_quality" validate:"min=1,max=100"`
	// BatchSize bounds concurrent item processing.
	BatchSize int `yaml:"batch_size" validate:"min=1,max=16"`
}

// StorageConfig selects the deck store backend.
type StorageConfig struct {
	// Driver: "postgres" or "memory".
	Driver string `yaml:"driver" validate:"oneof=postgres memory"`
	// DSN is the Postgres connection string (postgres driver only).
	DSN string `yaml:"dsn"`
	// MaxConns bounds the pgx pool.
	MaxConns int32 `yaml:"max_conns" validate:"min=1"`
}

// SnapshotConfig controls pause/resume snapshot persistence.
type SnapshotConfig struct {
	// Dir is the badger database directory. Empty means in-memory.
	Dir string `yaml:"dir"`
	// Retention prunes snapshots older than this.
	Retention time.Duration `yaml:"retention" validate:"min=1m"`
	// PruneInterval is how often the pruning loop runs.
	PruneInterval time.Duration `yaml:"prune_interval" validate:"min=1m"`
}

// RAGConfig controls the style/layout retrieval service.
type RAGConfig struct {
	Enabled bool `yaml:"enabled"`
	// Host is the weaviate host, e.g. "localhost:8080".
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme" validate:"omitempty,oneof=http https"`
	// Class is the weaviate collection queried for layout exemplars.
	Class string `yaml:"class"`
	// Limit caps retrieved exemplars per lookup.
	Limit int `yaml:"limit" validate:"min=1,max=20"`
}

// ServerConfig is the HTTP/WebSocket surface.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" validate:"min=1,max=65535"`
	AllowedWSOrigins []string      `yaml:"allowed_ws_origins"`
	ReadTimeout      time.Duration `yaml:"read_timeout" validate:"min=1s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" validate:"min=1s"`
}

// LoggingConfig selects log output.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AsyncImagesEnabled resolves the async image toggle (default true).
func (c *ComposeConfig) AsyncImagesEnabled() bool {
	return c.AsyncImages == nil || *c.AsyncImages
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }
