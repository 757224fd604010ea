package events

import "github.com/decksmith/decksmith/pkg/models"

// StartedPayload is the payload for started events.
type StartedPayload struct {
	Message string `json:"message"`
}

// OutlineStructurePayload describes the accepted outline, emitted right
// after started so clients can render slide placeholders.
type OutlineStructurePayload struct {
	Title       string   `json:"title"`
	SlideCount  int      `json:"slideCount"`
	SlideTitles []string `json:"slideTitles"`
}

// ProgressPayload is a coarse phase progress update. High-frequency; subject
// to throttling.
type ProgressPayload struct {
	Phase    string `json:"phase"`
	Message  string `json:"message,omitempty"`
	Progress int    `json:"progress"` // 0..100
}

// ThemeGeneratedPayload carries the deck-wide palette and fonts.
type ThemeGeneratedPayload struct {
	Palette models.Palette `json:"palette"`
	Fonts   models.Fonts   `json:"fonts"`
}

// MediaProcessedPayload reports how many uploaded media items were processed.
type MediaProcessedPayload struct {
	Count int `json:"count"`
}

// SlideStartedPayload marks the beginning of one slide's generation.
type SlideStartedPayload struct {
	SlideIndex int    `json:"slide_index"`
	SlideTitle string `json:"slide_title"`
}

// SlideSubstepPayload is a fine-grained step inside one slide's generation.
// High-frequency; subject to throttling.
type SlideSubstepPayload struct {
	SlideIndex int    `json:"slide_index"`
	Step       string `json:"step"` // preparing_context, rag_lookup, ai_generation, saving
	Progress   int    `json:"progress"`
}

// SlideGeneratedPayload is the successful terminal event for one slide.
// Emission happens only after the slide's persistence update committed.
type SlideGeneratedPayload struct {
	SlideIndex     int           `json:"slide_index"`
	SlideData      *models.Slide `json:"slide_data"`
	GenerationTime float64       `json:"generation_time"` // seconds
}

// SlideSkippedPayload is the terminal event for a slide abandoned after a
// skippable failure.
type SlideSkippedPayload struct {
	SlideIndex int    `json:"slide_index"`
	Reason     string `json:"reason"`
}

// SlideErrorPayload is the terminal event for a slide that failed
// non-skippably. The deck continues; the final event reports with_errors.
type SlideErrorPayload struct {
	SlideIndex int    `json:"slide_index"`
	Error      string `json:"error"`
}

// TopicImagesFoundPayload reports a completed provider search for one topic.
type TopicImagesFoundPayload struct {
	Topic            string   `json:"topic"`
	ImagesCount      int      `json:"images_count"`
	SlidesUsingTopic []string `json:"slides_using_topic"`
}

// SlideImagesFoundPayload reports candidate images assigned to one slide.
type SlideImagesFoundPayload struct {
	SlideID     string         `json:"slide_id"`
	SlideIndex  int            `json:"slide_index"`
	SlideTitle  string         `json:"slide_title"`
	ImagesCount int            `json:"images_count"`
	Images      []models.Image `json:"images"`
	TopicsUsed  []string       `json:"topics_used"`
}

// DeckCompletePayload is the terminal event for the whole composition.
type DeckCompletePayload struct {
	DeckID  string `json:"deck_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorPayload is the fatal terminal event.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// EndPayload closes a consumed stream after its terminal event.
type EndPayload struct {
	Message string `json:"message"` // always "Stream complete"
}
