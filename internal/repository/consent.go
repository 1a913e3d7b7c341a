package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type ConsentRepository interface {
	Exists(sessionID, channel string) (bool, error)
	Create(consent *models.ConsentRecord) error
}

type consentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewConsentRepository(db *sqlx.DB, logger *zap.Logger) ConsentRepository {
	return &consentRepository{db: db, logger: logger}
}

func (r *consentRepository) Exists(sessionID, channel string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM consents WHERE session_id = $1 AND channel = $2)`
	err := r.db.Get(&exists, query, sessionID, channel)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *consentRepository) Create(consent *models.ConsentRecord) error {
	query := `INSERT INTO consents (session_id, channel, consent_type, metadata)
	          VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowx(query, consent.SessionID, consent.Channel, consent.Type, consent.Metadata).
		Scan(&consent.ID, &consent.CreatedAt)
}
