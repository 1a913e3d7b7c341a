package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"superbot/internal/repository"
)

type HandoffHandler interface {
	GetAllHandoffs(c *gin.Context)
	UpdateHandoff(c *gin.Context)
}

type handoffHandler struct {
	handoffRepo repository.HandoffRepository
	logger      *zap.Logger
}

func NewHandoffHandler(handoffRepo repository.HandoffRepository, logger *zap.Logger) HandoffHandler {
	return &handoffHandler{handoffRepo: handoffRepo, logger: logger}
}

// GetAllHandoffs handles GET /api/handoffs
func (h *handoffHandler) GetAllHandoffs(c *gin.Context) {
	handoffs, err := h.handoffRepo.ListAll()
	if err != nil {
		h.logger.Error("Failed to get handoffs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve handoffs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"handoffs": handoffs})
}

// UpdateHandoffRequest carries optional assignee/note updates.
type UpdateHandoffRequest struct {
	Assignee *string `json:"assignee"`
	Note     *string `json:"note"`
}

// UpdateHandoff handles PUT /api/handoffs/:id
func (h *handoffHandler) UpdateHandoff(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid handoff ID"})
		return
	}

	var req UpdateHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	existing, err := h.handoffRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get handoff", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve handoff"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Handoff not found"})
		return
	}

	if err := h.handoffRepo.Update(id, req.Assignee, req.Note); err != nil {
		h.logger.Error("Failed to update handoff", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update handoff"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
