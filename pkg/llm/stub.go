package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync/atomic"
)

// StubClient produces deterministic, schema-valid JSON without network
// access. Output varies with the prompt hash so different slides do not
// collapse into identical layouts.
type StubClient struct {
	calls atomic.Int64
}

// NewStubClient returns a ready stub.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Calls reports how many generations ran.
func (s *StubClient) Calls() int64 { return s.calls.Load() }

// GenerateJSON implements Client.
func (s *StubClient) GenerateJSON(_ context.Context, req Request) (string, error) {
	s.calls.Add(1)
	switch req.Task {
	case TaskTheme:
		return stubTheme(req.User), nil
	case TaskSlide:
		return stubSlide(req.User), nil
	default:
		return `{}`, nil
	}
}

var stubPalettes = []struct {
	name             string
	background, text string
	accent           string
}{
	{"slate", "#0F172A", "#F8FAFC", "#38BDF8"},
	{"paper", "#FAFAF9", "#1C1917", "#EA580C"},
	{"forest", "#14532D", "#F0FDF4", "#FACC15"},
}

func stubTheme(prompt string) string {
	p := stubPalettes[hash(prompt)%uint32(len(stubPalettes))]
	doc := map[string]any{
		"palette_name": p.name,
		"colors": map[string]string{
			"primary_background":   p.background,
			"secondary_background": p.background,
			"primary_text":         p.text,
			"secondary_text":       p.text,
			"accent_1":             p.accent,
			"accent_2":             p.accent,
			"accent_3":             p.accent,
		},
		"fonts":           map[string]string{"hero": "Inter", "body": "Inter"},
		"visual_style":    "minimal",
		"style_manifesto": fmt.Sprintf("Clean %s palette, one idea per slide.", p.name),
	}
	return mustJSON(doc)
}

func stubSlide(prompt string) string {
	h := hash(prompt)
	doc := map[string]any{
		"title": fmt.Sprintf("Generated slide %d", h%1000),
		"components": []map[string]any{
			{
				"type":     "Background",
				"position": map[string]float64{"x": 0, "y": 0},
				"width":    1920.0,
				"height":   1080.0,
				"props":    map[string]any{"color": "#FFFFFF"},
			},
			{
				"type":     "Title",
				"position": map[string]float64{"x": 120, "y": 96},
				"width":    1680.0,
				"height":   180.0,
				"props":    map[string]any{"text": fmt.Sprintf("Section %d", h%7+1)},
			},
			{
				"type":     "TextBlock",
				"position": map[string]float64{"x": 120, "y": 340},
				"width":    1680.0,
				"height":   560.0,
				"props":    map[string]any{"text": "Key points generated for this section of the presentation."},
			},
		},
	}
	return mustJSON(doc)
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
