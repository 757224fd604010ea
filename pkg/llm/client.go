// Package llm abstracts the AI provider behind a JSON-generation client.
// The production implementation talks to an OpenAI-compatible endpoint;
// the stub produces deterministic output for development and tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/retry"
)

// Task hints what the prompt asks for; the stub keys canned output on it
// and the OpenAI client only logs it.
type Task string

const (
	TaskTheme   Task = "theme"
	TaskSlide   Task = "slide"
	TaskOutline Task = "outline"
)

// Request is one JSON-generation call.
type Request struct {
	Task        Task
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Client generates a JSON document from a prompt. Implementations must
// return classified errors (retry.Retryable and friends) so callers can
// apply the right backoff curve.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (string, error)
}

// ErrEmptyResponse indicates the provider returned no content.
var ErrEmptyResponse = errors.New("empty AI response")

// NewClient builds the configured client.
func NewClient(cfg *config.AIConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg, logger)
	case "stub":
		return NewStubClient(), nil
	}
	return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
}

type openAIClient struct {
	api    *openai.Client
	cfg    *config.AIConfig
	logger *slog.Logger
}

func newOpenAIClient(cfg *config.AIConfig, logger *slog.Logger) (*openAIClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("environment variable %s is empty", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		api:    openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// GenerateJSON runs one chat completion in JSON mode.
func (c *openAIClient) GenerateJSON(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	c.logger.Debug("AI call completed",
		"task", string(req.Task),
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", retry.Retryable(retry.KindOther, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyAPIError maps provider failures onto retry kinds: 429 is rate
// limiting, 5xx and 529 are overload, deadline expiry is a timeout, and
// auth/request errors are fatal (retrying cannot fix a bad key or prompt).
func classifyAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Retryable(retry.KindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return retry.Retryable(retry.KindRateLimit, err)
		case apiErr.HTTPStatusCode == 529 || apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return retry.Retryable(retry.KindOverloaded, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return retry.Fatal(err)
		case apiErr.HTTPStatusCode == http.StatusBadRequest:
			return retry.Skippable(err)
		}
	}
	return retry.Retryable(retry.KindOther, err)
}
