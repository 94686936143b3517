package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhldev/extraction-be/internal/api/dto"
	workerdomain "github.com/thanhldev/extraction-be/internal/worker/domain"
)

// ConfirmParseSession handles POST /api/v1/parse-sessions/:session_id/confirm
// Applies the session's pending blocks to its target section. The body may
// select a subset of blocks by id.
func (h *ExtractionHandler) ConfirmParseSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req dto.ConfirmSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.sessions.ConfirmSession(c.Request.Context(), sessionID, req.BlockIDs); err != nil {
		h.respondSessionError(c, sessionID, "confirm", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"consumed":   true,
	})
}

// DiscardParseSession handles POST /api/v1/parse-sessions/:session_id/discard
// Drops the session's pending blocks and removes the placeholder block.
func (h *ExtractionHandler) DiscardParseSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.sessions.DiscardSession(c.Request.Context(), sessionID); err != nil {
		h.respondSessionError(c, sessionID, "discard", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"consumed":   true,
	})
}

func (h *ExtractionHandler) respondSessionError(c *gin.Context, sessionID, op string, err error) {
	switch {
	case errors.Is(err, workerdomain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Session not found",
		})

	case errors.Is(err, workerdomain.ErrSessionConsumed):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Session already consumed",
		})

	case errors.Is(err, workerdomain.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Section not found",
		})

	default:
		h.logger.Error("Parse session operation failed",
			slog.String("session_id", sessionID),
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to " + op + " session",
		})
	}
}
