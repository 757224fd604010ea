package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GenerationActionResponse acknowledges pause and cancel requests.
type GenerationActionResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
}

func (s *Server) handlePause(c *gin.Context) {
	id := c.Param("id")
	if err := s.orch.Pause(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerationActionResponse{GenerationID: id, Status: "paused"})
}

func (s *Server) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if err := s.orch.Cancel(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerationActionResponse{GenerationID: id, Status: "cancelled"})
}
