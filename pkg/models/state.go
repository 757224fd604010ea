package models

import "time"

// RunState is the phase of a deck generation run, persisted in snapshots.
type RunState string

// Generation run states.
const (
	RunStateInitializing     RunState = "initializing"
	RunStateTheme            RunState = "theme"
	RunStateMedia            RunState = "media"
	RunStateSlidesInProgress RunState = "slides_in_progress"
	RunStatePaused           RunState = "paused"
	RunStateFinalizing       RunState = "finalizing"
	RunStateComplete         RunState = "complete"
	RunStateFailed           RunState = "failed"
)

// SlideState tracks one slide's progress inside a generation snapshot.
type SlideState struct {
	Status   SlideStatus `json:"status"`
	Attempts int         `json:"attempts"`
}

// GenerationState is the durable snapshot of a generation run, keyed by
// generation ID. The pause/resume manager owns it; the orchestrator mutates
// it only through that interface.
type GenerationState struct {
	GenerationID   string                `json:"generation_id"`
	DeckID         string                `json:"deck_id"`
	Outline        *DeckOutline          `json:"outline"`
	Options        map[string]any        `json:"options,omitempty"`
	CurrentPhase   RunState              `json:"current_phase"`
	SlideStates    map[string]SlideState `json:"slide_states"`
	CompletedSteps int                   `json:"completed_steps"`
	TotalSteps     int                   `json:"total_steps"`
	RunState       RunState              `json:"run_state"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// NewGenerationState builds the initial snapshot for a run: every slide
// pending, zero attempts. Total steps counts theme + media + one per slide +
// finalization.
func NewGenerationState(generationID, deckID string, outline *DeckOutline, options map[string]any) *GenerationState {
	states := make(map[string]SlideState, len(outline.Slides))
	for _, s := range outline.Slides {
		states[s.ID] = SlideState{Status: SlideStatusPending}
	}
	return &GenerationState{
		GenerationID: generationID,
		DeckID:       deckID,
		Outline:      outline,
		Options:      options,
		CurrentPhase: RunStateInitializing,
		SlideStates:  states,
		TotalSteps:   len(outline.Slides) + 3,
		RunState:     RunStateInitializing,
		UpdatedAt:    time.Now().UTC(),
	}
}

// CompletedSlideIDs returns the IDs of slides that reached a terminal
// completed state, in outline order.
func (g *GenerationState) CompletedSlideIDs() []string {
	if g.Outline == nil {
		return nil
	}
	var ids []string
	for _, so := range g.Outline.Slides {
		if st, ok := g.SlideStates[so.ID]; ok && st.Status == SlideStatusCompleted {
			ids = append(ids, so.ID)
		}
	}
	return ids
}

// PendingSlideIDs returns the IDs of slides that still need generation after
// a resume: anything not completed or skipped.
func (g *GenerationState) PendingSlideIDs() []string {
	if g.Outline == nil {
		return nil
	}
	var ids []string
	for _, so := range g.Outline.Slides {
		st, ok := g.SlideStates[so.ID]
		if !ok || (st.Status != SlideStatusCompleted && st.Status != SlideStatusSkipped) {
			ids = append(ids, so.ID)
		}
	}
	return ids
}
