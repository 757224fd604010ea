package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wvmodels "github.com/weaviate/weaviate/entities/models"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

// WeaviateService retrieves exemplars from a weaviate collection and falls
// back to the built-in set when retrieval fails or returns nothing.
type WeaviateService struct {
	client   *weaviate.Client
	class    string
	limit    int
	fallback *StaticService
	logger   *slog.Logger
}

// NewWeaviateService connects to the configured weaviate instance.
func NewWeaviateService(cfg *config.RAGConfig, logger *slog.Logger) (*WeaviateService, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateService{
		client:   client,
		class:    cfg.Class,
		limit:    cfg.Limit,
		fallback: NewStaticService(),
		logger:   logger,
	}, nil
}

// Lookup implements Service. Weaviate failures degrade to the built-in set
// rather than propagating; the error return stays nil because missing
// guidance must never fail a slide.
func (s *WeaviateService) Lookup(ctx context.Context, sc *models.SlideContext) ([]Exemplar, error) {
	sig := sc.Signature()

	where := filters.Where().
		WithPath([]string{"signature"}).
		WithOperator(filters.Equal).
		WithValueString(sig)

	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(
			graphql.Field{Name: "signature"},
			graphql.Field{Name: "layout"},
			graphql.Field{Name: "guidance"},
		).
		WithWhere(where).
		WithLimit(s.limit).
		Do(ctx)
	if err != nil {
		s.logger.Warn("RAG lookup failed, using built-in exemplars",
			"signature", sig, "error", err)
		return s.fallback.Lookup(ctx, sc)
	}
	if len(result.Errors) > 0 {
		s.logger.Warn("RAG lookup returned GraphQL errors, using built-in exemplars",
			"signature", sig, "error", result.Errors[0].Message)
		return s.fallback.Lookup(ctx, sc)
	}

	exemplars := parseExemplars(result.Data, s.class)
	if len(exemplars) == 0 {
		return s.fallback.Lookup(ctx, sc)
	}
	return exemplars, nil
}

// parseExemplars walks the GraphQL response shape {Get: {<class>: [...]}}.
// Shapes are checked defensively since a schema mismatch yields odd values.
func parseExemplars(data map[string]wvmodels.JSONObject, class string) []Exemplar {
	get, ok := anyMap(data["Get"])
	if !ok {
		return nil
	}
	items, ok := get[class].([]any)
	if !ok {
		return nil
	}

	var out []Exemplar
	for _, item := range items {
		m, ok := anyMap(item)
		if !ok {
			continue
		}
		ex := Exemplar{
			Signature: str(m["signature"]),
			Layout:    str(m["layout"]),
			Guidance:  str(m["guidance"]),
		}
		if ex.Guidance != "" {
			out = append(out, ex)
		}
	}
	return out
}

func anyMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
