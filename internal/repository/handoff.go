package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type HandoffRepository interface {
	ExistsForLead(leadID int64) (bool, error)
	Create(handoff *models.Handoff) error
	GetByID(id int64) (*models.Handoff, error)
	Update(id int64, assignee, note *string) error
	ListAll() ([]*models.Handoff, error)
}

type handoffRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewHandoffRepository(db *sqlx.DB, logger *zap.Logger) HandoffRepository {
	return &handoffRepository{db: db, logger: logger}
}

func (r *handoffRepository) ExistsForLead(leadID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM handoffs WHERE lead_id = $1)`
	err := r.db.Get(&exists, query, leadID)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *handoffRepository) Create(handoff *models.Handoff) error {
	query := `INSERT INTO handoffs (lead_id, assignee, note) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRowx(query, handoff.LeadID, handoff.Assignee, handoff.Note).
		Scan(&handoff.ID, &handoff.CreatedAt)
}

func (r *handoffRepository) GetByID(id int64) (*models.Handoff, error) {
	var handoff models.Handoff
	query := `SELECT id, lead_id, assignee, note, created_at FROM handoffs WHERE id = $1`
	err := r.db.Get(&handoff, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &handoff, nil
}

func (r *handoffRepository) Update(id int64, assignee, note *string) error {
	query := `UPDATE handoffs SET assignee = COALESCE($2, assignee), note = COALESCE($3, note) WHERE id = $1`
	_, err := r.db.Exec(query, id, assignee, note)
	return err
}

func (r *handoffRepository) ListAll() ([]*models.Handoff, error) {
	var handoffs []*models.Handoff
	query := `SELECT id, lead_id, assignee, note, created_at FROM handoffs ORDER BY created_at DESC`
	err := r.db.Select(&handoffs, query)
	if err != nil {
		return nil, err
	}
	return handoffs, nil
}
