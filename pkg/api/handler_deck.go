package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decksmith/decksmith/pkg/models"
)

// DeckStatusResponse is the body of GET /api/v1/decks/:id/status.
type DeckStatusResponse struct {
	DeckID  string            `json:"deck_id"`
	Status  models.DeckStatus `json:"status"`
	Version int               `json:"version"`
}

func (s *Server) handleGetDeck(c *gin.Context) {
	deck, err := s.store.GetDeck(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deck)
}

func (s *Server) handleGetDeckStatus(c *gin.Context) {
	deck, err := s.store.GetDeck(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeckStatusResponse{
		DeckID:  deck.UUID,
		Status:  deck.Status,
		Version: deck.Version,
	})
}
