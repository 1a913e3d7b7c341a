package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"superbot/internal/models"
	"superbot/internal/repository"
	"superbot/internal/sessions"
)

type ContentHandler interface {
	GetAllContent(c *gin.Context)
	CreateContent(c *gin.Context)
	UpdateContent(c *gin.Context)
}

type contentHandler struct {
	contentRepo repository.ContentRepository
	logger      *zap.Logger
}

func NewContentHandler(contentRepo repository.ContentRepository, logger *zap.Logger) ContentHandler {
	return &contentHandler{contentRepo: contentRepo, logger: logger}
}

// GetAllContent handles GET /api/content
func (h *contentHandler) GetAllContent(c *gin.Context) {
	items, err := h.contentRepo.ListAll()
	if err != nil {
		h.logger.Error("Failed to get content items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve content items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content_items": items})
}

// ContentRequest is the authoring payload for a content item.
type ContentRequest struct {
	Type     string `json:"content_type" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
	CTALabel string `json:"cta_label"`
	CTAURL   string `json:"cta_url"`
	Status   string `json:"status" binding:"required,oneof=active inactive"`
}

// CreateContent handles POST /api/content
func (h *contentHandler) CreateContent(c *gin.Context) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item := &models.ContentItem{
		ID:       uuid.NewString(),
		Type:     req.Type,
		Title:    req.Title,
		Body:     req.Body,
		CTALabel: req.CTALabel,
		CTAURL:   req.CTAURL,
		Status:   req.Status,
	}
	if err := h.contentRepo.Create(item); err != nil {
		h.logger.Error("Failed to create content item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create content item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"content_item": item})
}

// UpdateContent handles PUT /api/content/:id
func (h *contentHandler) UpdateContent(c *gin.Context) {
	id := c.Param("id")
	if !sessions.IsSessionID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content item ID"})
		return
	}

	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item := &models.ContentItem{
		ID:       id,
		Type:     req.Type,
		Title:    req.Title,
		Body:     req.Body,
		CTALabel: req.CTALabel,
		CTAURL:   req.CTAURL,
		Status:   req.Status,
	}
	if err := h.contentRepo.Update(item); err != nil {
		h.logger.Error("Failed to update content item", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update content item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content_item": item})
}
