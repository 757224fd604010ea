package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/decksmith/decksmith/pkg/compose"
	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/models"
)

// ComposeRequest is the body of POST /api/v1/decks/compose.
type ComposeRequest struct {
	DeckID  string              `json:"deck_id"`
	UserID  string              `json:"user_id"`
	Outline *models.DeckOutline `json:"outline" binding:"required"`
	Options *ComposeOptions     `json:"options"`
}

// ComposeOptions are per-request generation knobs. Nil fields keep the
// configured defaults.
type ComposeOptions struct {
	MaxParallel          *int  `json:"max_parallel"`
	DelayBetweenSlidesMS *int  `json:"delay_between_slides_ms"`
	AsyncImages          *bool `json:"async_images"`
	PrefetchImages       *bool `json:"prefetch_images"`
	// Async returns 202 immediately instead of streaming; events are
	// consumed over the deck's WebSocket channel.
	Async bool `json:"async"`
}

// ComposeAccepted is the 202 body for async composition.
type ComposeAccepted struct {
	DeckID       string `json:"deck_id"`
	GenerationID string `json:"generation_id"`
	Channel      string `json:"channel"`
}

func (o *ComposeOptions) overrides() *compose.Overrides {
	if o == nil {
		return nil
	}
	ov := &compose.Overrides{
		MaxParallel:    o.MaxParallel,
		AsyncImages:    o.AsyncImages,
		PrefetchImages: o.PrefetchImages,
	}
	if o.DelayBetweenSlidesMS != nil {
		d := time.Duration(*o.DelayBetweenSlidesMS) * time.Millisecond
		ov.DelayBetweenSlides = &d
	}
	return ov
}

// handleCompose admits a composition and either streams its events (SSE)
// or, with options.async, returns 202 and lets the client follow over
// WebSocket.
func (s *Server) handleCompose(c *gin.Context) {
	var req ComposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	run, err := s.orch.Compose(c.Request.Context(), compose.Request{
		DeckID:    req.DeckID,
		UserID:    req.UserID,
		Outline:   req.Outline,
		Overrides: req.Options.overrides(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if req.Options != nil && req.Options.Async {
		c.JSON(http.StatusAccepted, ComposeAccepted{
			DeckID:       run.DeckID,
			GenerationID: run.GenerationID,
			Channel:      events.DeckChannel(run.DeckID),
		})
		return
	}
	s.streamRun(c, run)
}

// handleResume continues a paused generation, streaming like compose.
func (s *Server) handleResume(c *gin.Context) {
	run, err := s.orch.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	s.streamRun(c, run)
}

// streamRun writes the run's events as server-sent events until the stream
// ends or the client disconnects. Unless the server runs with
// detach-on-disconnect, a vanished client cancels the run.
func (s *Server) streamRun(c *gin.Context, run *compose.Run) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				return
			}
			if err := writeSSE(c, ev); err != nil {
				s.onStreamBroken(run)
				return
			}
		case <-clientGone:
			s.onStreamBroken(run)
			// Drain so the producer's buffered channel empties promptly.
			for range run.Events() {
			}
			return
		}
	}
}

func (s *Server) onStreamBroken(run *compose.Run) {
	if s.detach {
		s.logger.Info("stream consumer gone, run detached",
			"deck_id", run.DeckID, "generation_id", run.GenerationID)
		return
	}
	s.logger.Info("stream consumer gone, cancelling run",
		"deck_id", run.DeckID, "generation_id", run.GenerationID)
	run.Cancel()
}

func writeSSE(c *gin.Context, ev events.GenerationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("event: " + ev.Type + "\ndata: " + string(data) + "\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
