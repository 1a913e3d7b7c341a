package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"superbot/internal/repository"
)

type EventHandler interface {
	GetRecentEvents(c *gin.Context)
}

type eventHandler struct {
	eventRepo repository.EventRepository
	logger    *zap.Logger
}

func NewEventHandler(eventRepo repository.EventRepository, logger *zap.Logger) EventHandler {
	return &eventHandler{eventRepo: eventRepo, logger: logger}
}

// GetRecentEvents handles GET /api/events?limit=N
func (h *eventHandler) GetRecentEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	events, err := h.eventRepo.ListRecent(limit)
	if err != nil {
		h.logger.Error("Failed to get events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
