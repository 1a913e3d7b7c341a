package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type MessageRepository interface {
	Save(msg *models.ChatMessage) error
	GetRecent(sessionID string, limit int) ([]*models.ChatMessage, error)
	ListBySession(sessionID string) ([]*models.ChatMessage, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) Save(msg *models.ChatMessage) error {
	query := `INSERT INTO chat_messages (session_id, role, text, metadata)
	          VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowx(query, msg.SessionID, msg.Role, msg.Text, msg.Metadata).
		Scan(&msg.ID, &msg.CreatedAt)
}

// GetRecent returns the last `limit` messages of a session, oldest first.
func (r *messageRepository) GetRecent(sessionID string, limit int) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	query := `
		SELECT id, session_id, role, text, metadata, created_at FROM (
			SELECT id, session_id, role, text, metadata, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`
	err := r.db.Select(&msgs, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) ListBySession(sessionID string) ([]*models.ChatMessage, error) {
	var msgs []*models.ChatMessage
	query := `SELECT id, session_id, role, text, metadata, created_at
	          FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`
	err := r.db.Select(&msgs, query, sessionID)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
