package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type EventRepository interface {
	Append(event *models.SuperbotEvent) error
	ListRecent(limit int) ([]*models.SuperbotEvent, error)
}

type eventRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewEventRepository(db *sqlx.DB, logger *zap.Logger) EventRepository {
	return &eventRepository{db: db, logger: logger}
}

func (r *eventRepository) Append(event *models.SuperbotEvent) error {
	query := `INSERT INTO superbot_events (session_id, event_type, metadata)
	          VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRowx(query, event.SessionID, event.EventType, event.Metadata).
		Scan(&event.ID, &event.CreatedAt)
}

func (r *eventRepository) ListRecent(limit int) ([]*models.SuperbotEvent, error) {
	var events []*models.SuperbotEvent
	query := `SELECT id, session_id, event_type, metadata, created_at
	          FROM superbot_events ORDER BY created_at DESC, id DESC LIMIT $1`
	err := r.db.Select(&events, query, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}
