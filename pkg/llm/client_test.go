package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith/decksmith/pkg/retry"
)

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind retry.Kind
		cls  retry.Class
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, retry.KindRateLimit, retry.ClassRetryable},
		{"overloaded 529", &openai.APIError{HTTPStatusCode: 529}, retry.KindOverloaded, retry.ClassRetryable},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, retry.KindOverloaded, retry.ClassRetryable},
		{"service unavailable", &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}, retry.KindOverloaded, retry.ClassRetryable},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, retry.KindOther, retry.ClassFatal},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, retry.KindOther, retry.ClassSkippable},
		{"deadline", context.DeadlineExceeded, retry.KindTimeout, retry.ClassRetryable},
		{"unknown", errors.New("connection reset"), retry.KindOther, retry.ClassRetryable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, cls := retry.Classify(classifyAPIError(tc.err))
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.cls, cls)
		})
	}
}

func TestClassifyAPIError_CancellationPassesThrough(t *testing.T) {
	err := classifyAPIError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	_, cls := retry.Classify(err)
	assert.Equal(t, retry.ClassFatal, cls)
}

func TestStubClient_ThemeIsValidAndDeterministic(t *testing.T) {
	stub := NewStubClient()

	out1, err := stub.GenerateJSON(context.Background(), Request{Task: TaskTheme, User: "sales pitch"})
	require.NoError(t, err)
	out2, err := stub.GenerateJSON(context.Background(), Request{Task: TaskTheme, User: "sales pitch"})
	require.NoError(t, err)
	assert.Equal(t, out1, out2)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out1), &doc))
	assert.NotEmpty(t, doc["palette_name"])
	colors, ok := doc["colors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, colors, "primary_background")
	assert.Equal(t, int64(2), stub.Calls())
}

func TestStubClient_SlideHasComponents(t *testing.T) {
	stub := NewStubClient()

	out, err := stub.GenerateJSON(context.Background(), Request{Task: TaskSlide, User: "Q3 results"})
	require.NoError(t, err)

	var doc struct {
		Title      string `json:"title"`
		Components []struct {
			Type  string         `json:"type"`
			Props map[string]any `json:"props"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc.Title)
	require.NotEmpty(t, doc.Components)
	assert.Equal(t, "Background", doc.Components[0].Type)
}
