package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"superbot/internal/repository"
)

type LeadHandler interface {
	GetAllLeads(c *gin.Context)
	GetLeadByID(c *gin.Context)
}

type leadHandler struct {
	leadRepo repository.LeadRepository
	logger   *zap.Logger
}

func NewLeadHandler(leadRepo repository.LeadRepository, logger *zap.Logger) LeadHandler {
	return &leadHandler{leadRepo: leadRepo, logger: logger}
}

// GetAllLeads handles GET /api/leads
func (h *leadHandler) GetAllLeads(c *gin.Context) {
	leads, err := h.leadRepo.ListAll()
	if err != nil {
		h.logger.Error("Failed to get leads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// GetLeadByID handles GET /api/leads/:id
func (h *leadHandler) GetLeadByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID"})
		return
	}

	lead, err := h.leadRepo.GetByID(id)
	if err != nil {
		h.logger.Error("Failed to get lead", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve lead"})
		return
	}

	if lead == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lead": lead})
}
