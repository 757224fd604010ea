// Package events provides the generation event stream: typed payloads, an
// in-process publish/subscribe bus, progress throttling, and WebSocket
// fan-out for connected clients.
//
// Every event flowing out of a deck composition is a GenerationEvent whose
// Data field is one of the typed payload structs in payloads.go. Consumers
// that only route events switch on Type; consumers that inspect contents
// type-assert Data.
package events

import (
	"encoding/json"
	"time"
)

// Generation event types.
const (
	TypeStarted          = "started"
	TypeOutlineStructure = "outline_structure"
	TypeProgress         = "progress"
	TypeThemeGenerated   = "theme_generated"
	TypeMediaProcessed   = "media_processed"
	TypeSlideStarted     = "slide_started"
	TypeSlideSubstep     = "slide_substep"
	TypeSlideGenerated   = "slide_generated"
	TypeSlideSkipped     = "slide_skipped"
	TypeSlideError       = "slide_error"
	TypeTopicImagesFound = "topic_images_found"
	TypeSlideImagesFound = "slide_images_found"
	TypeDeckComplete     = "deck_complete"
	TypeError            = "error"
	TypeEnd              = "end"
)

// Slide substep identifiers carried by slide_substep events.
const (
	StepPreparingContext = "preparing_context"
	StepRAGLookup        = "rag_lookup"
	StepAIGeneration     = "ai_generation"
	StepSaving           = "saving"
)

// GenerationEvent is one item of the composition event stream.
type GenerationEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// New builds an event stamped with the current time.
func New(eventType string, data any) GenerationEvent {
	return GenerationEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// MarshalJSON flattens Data into the top-level object so the wire shape is
// {type, timestamp, ...payload fields} rather than a nested envelope.
func (e GenerationEvent) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":      e.Type,
		"timestamp": e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Terminal reports whether the event ends a deck composition stream.
func (e GenerationEvent) Terminal() bool {
	return e.Type == TypeDeckComplete || e.Type == TypeError
}

// Priority reports whether the event must bypass progress throttling:
// errors, slide lifecycle events, theme generation, and phase transitions
// are never coalesced.
func (e GenerationEvent) Priority() bool {
	switch e.Type {
	case TypeStarted, TypeOutlineStructure, TypeThemeGenerated, TypeMediaProcessed,
		TypeSlideStarted, TypeSlideGenerated, TypeSlideSkipped, TypeSlideError,
		TypeDeckComplete, TypeError, TypeEnd:
		return true
	default:
		return false
	}
}

// DeckChannel returns the fan-out channel name for a deck's events.
// Format: "deck:{deck_id}"
func DeckChannel(deckID string) string {
	return "deck:" + deckID
}

// GlobalDecksChannel carries deck-level status events for dashboard views.
const GlobalDecksChannel = "decks"

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // e.g. "deck:abc-123"
}
