// Package eventlog appends audit events. Logging failures must never
// abort a conversational turn, so errors are swallowed after being
// reported to the error log.
package eventlog

import (
	"go.uber.org/zap"

	"superbot/internal/models"
	"superbot/internal/repository"
)

type Logger struct {
	repo   repository.EventRepository
	logger *zap.Logger
}

func New(repo repository.EventRepository, logger *zap.Logger) *Logger {
	return &Logger{repo: repo, logger: logger}
}

// Log appends one event row. Best-effort: a store failure is logged and
// dropped.
func (l *Logger) Log(sessionID, eventType string, metadata models.JSONMap) {
	event := &models.SuperbotEvent{
		SessionID: sessionID,
		EventType: eventType,
		Metadata:  metadata,
	}
	if err := l.repo.Append(event); err != nil {
		l.logger.Error("Failed to append audit event",
			zap.String("session_id", sessionID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
