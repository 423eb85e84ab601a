package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/policyqa/core/internal/errors"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types/interfaces"
)

// ConversationHandler exposes session memory management, backed directly
// by the conversation memory port rather than a dedicated session/message
// service.
type ConversationHandler struct {
	memory interfaces.ConversationMemory
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(memory interfaces.ConversationMemory) *ConversationHandler {
	return &ConversationHandler{memory: memory}
}

func requiredSessionID(c *gin.Context) (string, bool) {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		c.Error(apperrors.NewInvalidInput("X-Session-ID header is required"))
		return "", false
	}
	return sessionID, true
}

// Clear handles POST /conversation/clear, resetting the session's sliding
// window and summary.
func (h *ConversationHandler) Clear(c *gin.Context) {
	ctx := logger.CloneContext(c.Request.Context())
	sessionID, ok := requiredSessionID(c)
	if !ok {
		return
	}
	if err := h.memory.Clear(ctx, sessionID); err != nil {
		c.Error(apperrors.NewInternal(err.Error()).WithCause(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats handles GET /conversation/stats.
func (h *ConversationHandler) Stats(c *gin.Context) {
	ctx := logger.CloneContext(c.Request.Context())
	sessionID, ok := requiredSessionID(c)
	if !ok {
		return
	}
	stats, err := h.memory.Stats(ctx, sessionID)
	if err != nil {
		c.Error(apperrors.NewInternal(err.Error()).WithCause(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}
