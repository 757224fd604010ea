// Package images runs the background stock image search: topics are derived
// from the outline, searched through a provider, cached, and routed to
// slides through a pending map that hands each image out exactly once.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

// Provider searches stock images for a topic.
type Provider interface {
	Search(ctx context.Context, topic string, limit int) ([]models.Image, error)
}

// NewProvider builds the configured provider. "off" returns nil: the
// service treats a nil provider as search disabled.
func NewProvider(cfg *config.ImagesConfig) (Provider, error) {
	switch cfg.Provider {
	case "http":
		return newHTTPProvider(cfg), nil
	case "stub":
		return NewStubProvider(), nil
	case "off":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown image provider %q", cfg.Provider)
}

// httpProvider queries a JSON search API shaped like the common stock photo
// services: GET {endpoint}?query=...&per_page=N with a bearer key, response
// {"results": [{"url": ..., "alt": ..., "source": ...}]}.
type httpProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func newHTTPProvider(cfg *config.ImagesConfig) *httpProvider {
	return &httpProvider{
		endpoint: cfg.Endpoint,
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *httpProvider) Search(ctx context.Context, topic string, limit int) ([]models.Image, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", topic)
	q.Set("per_page", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search %q: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image search %q: status %d: %s", topic, resp.StatusCode, body)
	}

	var payload struct {
		Results []struct {
			URL    string `json:"url"`
			Alt    string `json:"alt"`
			Source string `json:"source"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("image search %q: decode response: %w", topic, err)
	}

	out := make([]models.Image, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, models.Image{URL: r.URL, Alt: r.Alt, Source: r.Source, Topic: topic})
	}
	return out, nil
}

// StubProvider returns deterministic placeholder images.
type StubProvider struct{}

// NewStubProvider returns a provider usable without network access.
func NewStubProvider() *StubProvider { return &StubProvider{} }

// Search implements Provider.
func (s *StubProvider) Search(_ context.Context, topic string, limit int) ([]models.Image, error) {
	if limit > 3 {
		limit = 3
	}
	out := make([]models.Image, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, models.Image{
			URL:    fmt.Sprintf("https://images.example.com/%s/%d.jpg", url.PathEscape(topic), i+1),
			Alt:    topic,
			Source: "stub",
			Topic:  topic,
		})
	}
	return out, nil
}
