package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decksmith/decksmith/pkg/store"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Storage      string `json:"storage"`
	ActiveDecks  int    `json:"active_decks"`
	ActiveSlides int    `json:"active_slides"`
	Connections  int    `json:"ws_connections,omitempty"`
}

// handleHealth reports process health. Only the engine's own components are
// checked; AI and image providers are external and excluded so an upstream
// outage does not get this process restarted.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	storageStatus := "healthy"

	// A not-found on a sentinel ID proves storage answers queries.
	_, err := s.store.GetDeck(c.Request.Context(), "health-probe")
	if err != nil && !errors.Is(err, store.ErrDeckNotFound) {
		status = "unhealthy"
		storageStatus = err.Error()
	}

	stats := s.limits.Stats()
	resp := HealthResponse{
		Status:       status,
		Storage:      storageStatus,
		ActiveDecks:  stats.HeldDeckLocks,
		ActiveSlides: stats.ActiveSlides,
	}
	if s.conns != nil {
		resp.Connections = s.conns.ActiveConnections()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
