package models

import "time"

// SlideStatus is the lifecycle state of a single slide.
type SlideStatus string

// Slide lifecycle states.
const (
	SlideStatusPending    SlideStatus = "pending"
	SlideStatusGenerating SlideStatus = "generating"
	SlideStatusCompleted  SlideStatus = "completed"
	SlideStatusFailed     SlideStatus = "failed"
	SlideStatusSkipped    SlideStatus = "skipped"
)

// Terminal reports whether the status is a terminal slide state.
func (s SlideStatus) Terminal() bool {
	switch s {
	case SlideStatusCompleted, SlideStatusFailed, SlideStatusSkipped:
		return true
	default:
		return false
	}
}

// Slide is a generated canvas page.
type Slide struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Components    []Component `json:"components"`
	Status        SlideStatus `json:"status"`
	ExtractedData *SlideData  `json:"extracted_data,omitempty"`
}

// DeckState is the deck-level lifecycle state.
type DeckState string

// Deck lifecycle states.
const (
	DeckStatePending            DeckState = "pending"
	DeckStateGenerating         DeckState = "generating"
	DeckStateComplete           DeckState = "complete"
	DeckStateCompleteWithErrors DeckState = "complete_with_errors"
	DeckStateFailed             DeckState = "failed"
	DeckStatePaused             DeckState = "paused"
)

// DeckStatus is the progress block persisted on the deck record.
type DeckStatus struct {
	State        DeckState `json:"state"`
	CurrentSlide int       `json:"current_slide"`
	TotalSlides  int       `json:"total_slides"`
	Message      string    `json:"message,omitempty"`
	Progress     int       `json:"progress"` // 0..100
}

// DeckSize is the canvas size recorded on the deck.
type DeckSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Deck is a presentation: ordered slides plus deck-wide status and theme.
// Persistence is the only mutator of stored deck state; in-memory copies are
// owned by the orchestrator holding the deck lock.
type Deck struct {
	UUID      string       `json:"uuid"`
	Name      string       `json:"name"`
	Slides    []Slide      `json:"slides"`
	Size      DeckSize     `json:"size"`
	Status    DeckStatus   `json:"status"`
	Outline   *DeckOutline `json:"outline,omitempty"`
	Theme     *ThemeSpec   `json:"theme,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewDeck builds a pending deck shell from an outline: one pending slide per
// slide outline, canvas size fixed at 1920×1080.
func NewDeck(deckID string, outline *DeckOutline) *Deck {
	now := time.Now().UTC()
	slides := make([]Slide, len(outline.Slides))
	for i, so := range outline.Slides {
		slides[i] = Slide{
			ID:            so.ID,
			Title:         so.Title,
			Components:    []Component{},
			Status:        SlideStatusPending,
			ExtractedData: so.ExtractedData,
		}
	}
	return &Deck{
		UUID:      deckID,
		Name:      outline.Title,
		Slides:    slides,
		Size:      DeckSize{W: CanvasWidth, H: CanvasHeight},
		Status:    DeckStatus{State: DeckStatePending, TotalSlides: len(slides)},
		Outline:   outline,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Image is a candidate image discovered by search.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Source string `json:"source,omitempty"`
	Topic  string `json:"topic,omitempty"`
}
