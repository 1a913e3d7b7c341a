package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"superbot/internal/dispatcher"
	"superbot/internal/models"
	"superbot/internal/repository"
	"superbot/internal/scoring"
	"superbot/internal/sessions"
)

const fallbackReply = "Sorry, something went wrong on our side. Please try again in a moment."

type ChatHandler interface {
	HandleChat(c *gin.Context)
	ScoreLead(c *gin.Context)
	GetSessionMessages(c *gin.Context)
}

type chatHandler struct {
	sessions    *sessions.Manager
	dispatcher  *dispatcher.Dispatcher
	scorer      dispatcher.LeadScorer
	messageRepo repository.MessageRepository
	logger      *zap.Logger
}

func NewChatHandler(sessionManager *sessions.Manager, disp *dispatcher.Dispatcher, scorer dispatcher.LeadScorer, messageRepo repository.MessageRepository, logger *zap.Logger) ChatHandler {
	return &chatHandler{
		sessions:    sessionManager,
		dispatcher:  disp,
		scorer:      scorer,
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// ChatRequest is one widget turn.
type ChatRequest struct {
	SessionID    string `json:"session_id"`
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
	StartPayload string `json:"start_payload"`
	Metadata     struct {
		UserAgent string `json:"user_agent"`
		Referrer  string `json:"referrer"`
	} `json:"metadata"`
}

// HandleChat handles POST /api/chat: resolve the web session, dispatch,
// and return the collected replies.
func (h *chatHandler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.sessions.ResolveWeb(req.SessionID)
	if err != nil {
		h.logger.Error("Failed to resolve web session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve session"})
		return
	}

	var replies []dispatcher.Outgoing
	send := func(out dispatcher.Outgoing) error {
		replies = append(replies, out)
		return nil
	}

	in := dispatcher.Inbound{
		Channel:      models.ChannelWeb,
		Session:      session,
		Text:         req.Text,
		CallbackData: req.CallbackData,
		StartPayload: req.StartPayload,
		UserMeta: &models.UserMeta{
			UserAgent: req.Metadata.UserAgent,
			Referrer:  req.Metadata.Referrer,
		},
	}
	if err := h.dispatcher.Handle(c.Request.Context(), in, send); err != nil {
		h.logger.Error("Dispatch failed", zap.String("session_id", session.ID), zap.Error(err))
		replies = []dispatcher.Outgoing{{Text: fallbackReply}}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"messages":   replies,
	})
}

// ScoreLeadRequest is a scoring pass submitted by a profile surface.
type ScoreLeadRequest struct {
	SessionID   string         `json:"session_id" binding:"required"`
	LeadType    string         `json:"lead_type" binding:"required,oneof=talent company telegram"`
	Fields      models.JSONMap `json:"fields"`
	LastMessage string         `json:"last_message"`
}

// ScoreLead handles POST /api/chat/score
func (h *chatHandler) ScoreLead(c *gin.Context) {
	var req ScoreLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !sessions.IsSessionID(req.SessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	lead, err := h.scorer.Score(c.Request.Context(), scoringInput(req))
	if err != nil {
		h.logger.Error("Failed to score lead", zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to score lead"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lead": lead})
}

func scoringInput(req ScoreLeadRequest) scoring.Input {
	return scoring.Input{
		SessionID:   req.SessionID,
		LeadType:    req.LeadType,
		Fields:      req.Fields,
		LastMessage: req.LastMessage,
	}
}

// GetSessionMessages handles GET /api/sessions/:id/messages
func (h *chatHandler) GetSessionMessages(c *gin.Context) {
	id := c.Param("id")
	if !sessions.IsSessionID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}

	msgs, err := h.messageRepo.ListBySession(id)
	if err != nil {
		h.logger.Error("Failed to list session messages", zap.String("session_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
