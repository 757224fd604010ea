package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// validate runs struct-tag validation and then the cross-field rules the
// tags cannot express.
func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return NewValidationError(first.StructNamespace(), first.Field(),
				fmt.Errorf("%w: failed '%s' rule", ErrInvalidValue, first.Tag()))
		}
		return err
	}
	return validateCrossField(cfg)
}

func validateCrossField(cfg *Config) error {
	if cfg.Storage.Driver == "postgres" && cfg.Storage.DSN == "" {
		return NewValidationError("storage", "dsn",
			fmt.Errorf("%w: postgres driver requires a DSN", ErrMissingRequiredField))
	}
	if cfg.Media.Uploader == "gcs" && cfg.Media.Bucket == "" {
		return NewValidationError("media", "bucket",
			fmt.Errorf("%w: gcs uploader requires a bucket", ErrMissingRequiredField))
	}
	if cfg.RAG.Enabled && cfg.RAG.Host == "" {
		return NewValidationError("rag", "host",
			fmt.Errorf("%w: enabled RAG requires a host", ErrMissingRequiredField))
	}
	if cfg.Images.Provider == "http" && cfg.Images.Endpoint == "" {
		return NewValidationError("images", "endpoint",
			fmt.Errorf("%w: http provider requires an endpoint", ErrMissingRequiredField))
	}
	if cfg.AI.Provider == "openai" {
		if cfg.AI.APIKeyEnv == "" {
			return NewValidationError("ai", "api_key_env",
				fmt.Errorf("%w: openai provider requires api_key_env", ErrMissingRequiredField))
		}
		if os.Getenv(cfg.AI.APIKeyEnv) == "" {
			return NewValidationError("ai", "api_key_env",
				fmt.Errorf("%w: environment variable %s is empty", ErrMissingRequiredField, cfg.AI.APIKeyEnv))
		}
	}
	// Prefetch without async is contradictory: prefetch waits for a search
	// that was never started early.
	if cfg.Compose.PrefetchImages && !cfg.Compose.AsyncImagesEnabled() {
		return NewValidationError("compose", "prefetch_images",
			fmt.Errorf("%w: prefetch_images requires async_images", ErrInvalidValue))
	}
	return nil
}
