package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/decksmith/decksmith/pkg/compose"
	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/snapshot"
	"github.com/decksmith/decksmith/pkg/store"
)

// ErrorResponse is the JSON error body for all non-2xx responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps engine errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, limits.ErrDeckBusy):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "DECK_GENERATION_IN_PROGRESS",
			Message: "a generation for this deck is already running",
		})
	case errors.Is(err, compose.ErrEmptyOutline):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "EMPTY_OUTLINE",
			Message: "outline must contain at least one slide",
		})
	case errors.Is(err, compose.ErrInvalidOutline):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "CONFIGURATION_INVALID",
			Message: err.Error(),
		})
	case errors.Is(err, store.ErrDeckNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DECK_NOT_FOUND",
			Message: "deck not found",
		})
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "GENERATION_NOT_FOUND",
			Message: "no snapshot for this generation",
		})
	case errors.Is(err, snapshot.ErrNotResumable):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "NOT_RESUMABLE",
			Message: "generation is not paused",
		})
	case errors.Is(err, snapshot.ErrRunNotActive):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "GENERATION_NOT_ACTIVE",
			Message: "generation is not running",
		})
	default:
		slog.Error("unexpected API error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL",
			Message: "internal server error",
		})
	}
}
