// Package sessions resolves inbound contacts to durable chat sessions,
// creating them on first contact. Sessions are never deleted here.
package sessions

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"superbot/internal/models"
	"superbot/internal/repository"
)

type Manager struct {
	repo   repository.SessionRepository
	logger *zap.Logger
}

func NewManager(repo repository.SessionRepository, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, logger: logger}
}

// IsSessionID reports whether s has the strict canonical UUID shape.
// Malformed or absent ids are treated as "no id" by callers, never as an
// error.
func IsSessionID(s string) bool {
	if len(s) != 36 {
		return false
	}
	return uuid.Validate(s) == nil
}

// ResolveTelegram returns the session bound to a bot chat id, creating it
// on first contact. A second contact with the same chat id must resolve to
// the same row.
func (m *Manager) ResolveTelegram(chatID int64) (*models.ChatSession, error) {
	session, err := m.repo.GetByExternalID(models.ChannelTelegram, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up telegram session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	session = &models.ChatSession{
		ID:         uuid.NewString(),
		Channel:    models.ChannelTelegram,
		ExternalID: &chatID,
		Status:     models.SessionStatusActive,
		Step:       models.SessionStepChat,
		Fields:     models.JSONMap{},
	}
	if err := m.repo.Create(session); err != nil {
		// A concurrent first contact may have won the unique constraint
		// on (channel, external_id); adopt its row.
		existing, lookupErr := m.repo.GetByExternalID(models.ChannelTelegram, chatID)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create telegram session: %w", err)
	}

	m.logger.Info("Created telegram session",
		zap.String("session_id", session.ID),
		zap.Int64("chat_id", chatID))
	return session, nil
}

// ResolveWeb returns the session for a caller-supplied id, creating a new
// one when the id is absent, malformed, or unknown.
func (m *Manager) ResolveWeb(sessionID string) (*models.ChatSession, error) {
	if IsSessionID(sessionID) {
		session, err := m.repo.GetByID(sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up web session: %w", err)
		}
		if session != nil {
			return session, nil
		}
	}

	session := &models.ChatSession{
		ID:      uuid.NewString(),
		Channel: models.ChannelWeb,
		Status:  models.SessionStatusActive,
		Step:    models.SessionStepChat,
		Fields:  models.JSONMap{},
	}
	if err := m.repo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create web session: %w", err)
	}

	m.logger.Info("Created web session", zap.String("session_id", session.ID))
	return session, nil
}
