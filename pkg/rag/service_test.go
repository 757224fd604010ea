package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wvmodels "github.com/weaviate/weaviate/entities/models"

	"github.com/decksmith/decksmith/pkg/models"
)

func TestStaticService_KnownSignatures(t *testing.T) {
	svc := NewStaticService()

	tests := []struct {
		name string
		sc   models.SlideContext
		sig  string
	}{
		{"chart slide", models.SlideContext{HasChartData: true}, "data-chart"},
		{"table slide", models.SlideContext{HasTabularData: true}, "data-table"},
		{"first slide is the title", models.SlideContext{Index: 0, TotalSlides: 10}, "title"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Lookup(context.Background(), &tc.sc)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.Equal(t, tc.sig, got[0].Signature)
			assert.NotEmpty(t, got[0].Guidance)
		})
	}
}

func TestStaticService_UnknownSignatureFallsBackToContent(t *testing.T) {
	svc := NewStaticService()

	sc := models.SlideContext{Index: 3, TotalSlides: 10}
	got, err := svc.Lookup(context.Background(), &sc)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "content", got[0].Signature)
}

func TestParseExemplars(t *testing.T) {
	data := map[string]wvmodels.JSONObject{
		"Get": map[string]any{
			"SlideExemplar": []any{
				map[string]any{"signature": "media", "layout": "image-split", "guidance": "split it"},
				map[string]any{"signature": "media", "layout": "broken"}, // no guidance, dropped
				"not an object",
			},
		},
	}

	got := parseExemplars(data, "SlideExemplar")
	require.Len(t, got, 1)
	assert.Equal(t, "image-split", got[0].Layout)
}

func TestParseExemplars_MalformedShapes(t *testing.T) {
	assert.Nil(t, parseExemplars(nil, "X"))
	assert.Nil(t, parseExemplars(map[string]wvmodels.JSONObject{"Get": 42}, "X"))
	assert.Nil(t, parseExemplars(map[string]wvmodels.JSONObject{"Get": map[string]any{"Y": []any{}}}, "X"))
}
