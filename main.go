package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"superbot/internal/config"
	"superbot/internal/dispatcher"
	"superbot/internal/email_client"
	"superbot/internal/eventlog"
	"superbot/internal/experiment"
	"superbot/internal/notifier"
	"superbot/internal/repository"
	"superbot/internal/responder_client"
	"superbot/internal/scoring"
	"superbot/internal/server"
	"superbot/internal/service"
	"superbot/internal/sessions"
	"superbot/internal/telegram_bot"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	service.SetJWTSecret(cfg.Auth.JWTSecret)

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(db, logger)
	messageRepo := repository.NewMessageRepository(db, logger)
	consentRepo := repository.NewConsentRepository(db, logger)
	leadRepo := repository.NewLeadRepository(db, logger)
	handoffRepo := repository.NewHandoffRepository(db, logger)
	contentRepo := repository.NewContentRepository(db, logger)
	eventRepo := repository.NewEventRepository(db, logger)
	cooldownRepo := repository.NewCooldownRepository(db, logger)

	events := eventlog.New(eventRepo, logger)

	// Notification channels; each is skipped silently when unconfigured
	alerter, err := notifier.NewTelegramAlerter(cfg.Notifications.TelegramBotToken, cfg.Notifications.TelegramChatID, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram alert channel, continuing without it", zap.Error(err))
		alerter = nil
	}
	emailClient := email_client.NewClient(cfg.Notifications.EmailAPIURL, cfg.Notifications.EmailAPIKey,
		cfg.Notifications.EmailFrom, cfg.Notifications.EmailTo)

	var alerts notifier.AlertSender
	if alerter != nil {
		alerts = alerter
	}
	var mail notifier.MailSender
	if emailClient != nil {
		mail = emailClient
	} else {
		logger.Info("Email alert channel is disabled (not configured)")
	}
	alertNotifier := notifier.New(alerts, mail, cooldownRepo, events,
		time.Duration(cfg.Notifications.CooldownSeconds)*time.Second, logger)

	// Lead scoring
	keywords := scoring.Keywords{
		PriorityRoles:   cfg.Scoring.PriorityRoles,
		Urgency:         cfg.Scoring.Urgency,
		Compensation:    cfg.Scoring.Compensation,
		HumanAssistance: cfg.Scoring.HumanAssistance,
	}
	scorer := scoring.NewScorer(leadRepo, handoffRepo, events, alertNotifier, keywords, logger)

	// Experiment assignment
	assigner := experiment.NewAssigner(sessionRepo, events, experiment.Config{
		Enabled:  cfg.Experiments.Enabled,
		Variants: cfg.Experiments.Variants,
	}, logger)

	// External responder
	responder := responder_client.NewClient(cfg.Responder.URL)

	// Message dispatcher
	disp := dispatcher.New(sessionRepo, messageRepo, consentRepo, contentRepo, scorer, events, assigner, responder,
		dispatcher.Config{
			BaseURL:          cfg.Engine.BaseURL,
			AllowedHosts:     cfg.Engine.AllowedHosts,
			HistoryLimit:     cfg.Engine.HistoryLimit,
			ResponderTimeout: time.Duration(cfg.Responder.TimeoutSeconds) * time.Second,
		}, logger)

	sessionManager := sessions.NewManager(sessionRepo, logger)

	// Initialize Telegram bot adapter
	bot, err := telegram_bot.NewBot(cfg.Telegram.BotToken, sessionManager, disp, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run Telegram bot in a goroutine (if enabled)
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	// Initialize and run the server
	log := logrus.New()
	srv := server.NewServer(db, log, logger, sessionManager, disp, scorer)
	srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
