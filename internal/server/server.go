package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"superbot/internal/dispatcher"
	"superbot/internal/handler"
	"superbot/internal/middleware"
	"superbot/internal/repository"
	"superbot/internal/service"
	"superbot/internal/sessions"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	log    *logrus.Logger
	logger *zap.Logger

	sessions   *sessions.Manager
	dispatcher *dispatcher.Dispatcher
	scorer     dispatcher.LeadScorer
}

func NewServer(db *sqlx.DB, log *logrus.Logger, logger *zap.Logger, sessionManager *sessions.Manager, disp *dispatcher.Dispatcher, scorer dispatcher.LeadScorer) *Server {
	router := gin.Default()

	s := &Server{
		router:     router,
		db:         db,
		log:        log,
		logger:     logger,
		sessions:   sessionManager,
		dispatcher: disp,
		scorer:     scorer,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	messageRepo := repository.NewMessageRepository(s.db, s.logger)
	leadRepo := repository.NewLeadRepository(s.db, s.logger)
	handoffRepo := repository.NewHandoffRepository(s.db, s.logger)
	contentRepo := repository.NewContentRepository(s.db, s.logger)
	eventRepo := repository.NewEventRepository(s.db, s.logger)
	authRepo := repository.NewAuthRepository(s.db, s.log)

	authService := service.NewAuthService(authRepo, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	chatHandler := handler.NewChatHandler(s.sessions, s.dispatcher, s.scorer, messageRepo, s.logger)
	leadHandler := handler.NewLeadHandler(leadRepo, s.logger)
	handoffHandler := handler.NewHandoffHandler(handoffRepo, s.logger)
	contentHandler := handler.NewContentHandler(contentRepo, s.logger)
	eventHandler := handler.NewEventHandler(eventRepo, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Public conversational endpoints (web widget + profile surfaces)
	s.router.POST("/api/chat", chatHandler.HandleChat)
	s.router.POST("/api/chat/score", chatHandler.ScoreLead)

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Operator routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.logger))
	{
		authRequired.GET("/leads", leadHandler.GetAllLeads)
		authRequired.GET("/leads/:id", leadHandler.GetLeadByID)
		authRequired.GET("/handoffs", handoffHandler.GetAllHandoffs)
		authRequired.PUT("/handoffs/:id", handoffHandler.UpdateHandoff)
		authRequired.GET("/sessions/:id/messages", chatHandler.GetSessionMessages)
		authRequired.GET("/content", contentHandler.GetAllContent)
		authRequired.POST("/content", contentHandler.CreateContent)
		authRequired.PUT("/content/:id", contentHandler.UpdateContent)
		authRequired.GET("/events", eventHandler.GetRecentEvents)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
