package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type LeadRepository interface {
	GetBySessionAndType(sessionID, leadType string) (*models.SuperbotLead, error)
	GetByID(id int64) (*models.SuperbotLead, error)
	Create(lead *models.SuperbotLead) error
	UpdateScoring(id int64, score int, status string, patch models.JSONMap) error
	ListAll() ([]*models.SuperbotLead, error)
}

type leadRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLeadRepository(db *sqlx.DB, logger *zap.Logger) LeadRepository {
	return &leadRepository{db: db, logger: logger}
}

const leadColumns = `id, session_id, lead_type, status, score, fields, created_at, updated_at`

func (r *leadRepository) GetBySessionAndType(sessionID, leadType string) (*models.SuperbotLead, error) {
	var lead models.SuperbotLead
	query := `SELECT ` + leadColumns + ` FROM superbot_leads WHERE session_id = $1 AND lead_type = $2`
	err := r.db.Get(&lead, query, sessionID, leadType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Lead not found
		}
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) GetByID(id int64) (*models.SuperbotLead, error) {
	var lead models.SuperbotLead
	query := `SELECT ` + leadColumns + ` FROM superbot_leads WHERE id = $1`
	err := r.db.Get(&lead, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) Create(lead *models.SuperbotLead) error {
	query := `INSERT INTO superbot_leads (session_id, lead_type, status, score, fields)
	          VALUES ($1, $2, $3, $4, $5) RETURNING ` + leadColumns
	return r.db.QueryRowx(query, lead.SessionID, lead.LeadType, lead.Status, lead.Score, lead.Fields).
		StructScan(lead)
}

// UpdateScoring writes the score and status and shallow-merges patch into
// the lead's field bag in one statement, preserving unrelated keys.
func (r *leadRepository) UpdateScoring(id int64, score int, status string, patch models.JSONMap) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	query := `UPDATE superbot_leads SET score = $2, status = $3, fields = fields || $4::jsonb, updated_at = now() WHERE id = $1`
	_, err = r.db.Exec(query, id, score, status, string(data))
	return err
}

func (r *leadRepository) ListAll() ([]*models.SuperbotLead, error) {
	var leads []*models.SuperbotLead
	query := `SELECT ` + leadColumns + ` FROM superbot_leads ORDER BY updated_at DESC`
	err := r.db.Select(&leads, query)
	if err != nil {
		return nil, err
	}
	return leads, nil
}
