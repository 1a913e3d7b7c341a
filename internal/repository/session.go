package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type SessionRepository interface {
	GetByID(id string) (*models.ChatSession, error)
	GetByExternalID(channel string, externalID int64) (*models.ChatSession, error)
	Create(session *models.ChatSession) error
	MergeFields(id string, patch models.JSONMap) error
	ClaimFieldKey(id, key string, patch models.JSONMap) (bool, error)
	AttachIdentity(id, channel string, externalID int64, step string) error
	DetachExternalID(id string) error
	SetStep(id, step string) error
}

type sessionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSessionRepository(db *sqlx.DB, logger *zap.Logger) SessionRepository {
	return &sessionRepository{db: db, logger: logger}
}

const sessionColumns = `id, channel, external_id, status, flow, step, fields, created_at, updated_at`

func (r *sessionRepository) GetByID(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`
	err := r.db.Get(&session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Session not found
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetByExternalID(channel string, externalID int64) (*models.ChatSession, error) {
	var session models.ChatSession
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE channel = $1 AND external_id = $2`
	err := r.db.Get(&session, query, channel, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Create(session *models.ChatSession) error {
	query := `INSERT INTO chat_sessions (id, channel, external_id, status, flow, step, fields)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + sessionColumns
	return r.db.QueryRowx(query, session.ID, session.Channel, session.ExternalID, session.Status,
		session.Flow, session.Step, session.Fields).StructScan(session)
}

// MergeFields shallow-merges patch into the session's field bag in a single
// statement, so concurrent dispatches never clobber unrelated keys.
func (r *sessionRepository) MergeFields(id string, patch models.JSONMap) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	query := `UPDATE chat_sessions SET fields = fields || $2::jsonb, updated_at = now() WHERE id = $1`
	_, err = r.db.Exec(query, id, string(data))
	return err
}

// ClaimFieldKey merges patch only if key is not yet present in the field
// bag. Returns false when another writer got there first.
func (r *sessionRepository) ClaimFieldKey(id, key string, patch models.JSONMap) (bool, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return false, err
	}
	query := `UPDATE chat_sessions SET fields = fields || $3::jsonb, updated_at = now()
	          WHERE id = $1 AND NOT (fields ? $2)`
	res, err := r.db.Exec(query, id, key, string(data))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AttachIdentity binds a bot chat id to a session and flips its channel and
// step. Used by the web→telegram merge.
func (r *sessionRepository) AttachIdentity(id, channel string, externalID int64, step string) error {
	query := `UPDATE chat_sessions SET channel = $2, external_id = $3, step = $4, flow = NULL, updated_at = now() WHERE id = $1`
	_, err := r.db.Exec(query, id, channel, externalID, step)
	return err
}

// SetStep advances the conversation step and clears any flow.
func (r *sessionRepository) SetStep(id, step string) error {
	query := `UPDATE chat_sessions SET step = $2, flow = NULL, updated_at = now() WHERE id = $1`
	_, err := r.db.Exec(query, id, step)
	return err
}

// DetachExternalID clears the bot chat id from a stub session so the
// per-channel uniqueness constraint holds when the id moves elsewhere.
func (r *sessionRepository) DetachExternalID(id string) error {
	query := `UPDATE chat_sessions SET external_id = NULL, updated_at = now() WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}
