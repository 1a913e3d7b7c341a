package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"superbot/internal/models"
)

type ContentRepository interface {
	GetActiveByID(id string) (*models.ContentItem, error)
	Create(item *models.ContentItem) error
	Update(item *models.ContentItem) error
	ListAll() ([]*models.ContentItem, error)
}

type contentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewContentRepository(db *sqlx.DB, logger *zap.Logger) ContentRepository {
	return &contentRepository{db: db, logger: logger}
}

const contentColumns = `id, content_type, title, body, cta_label, cta_url, status, updated_at`

// GetActiveByID resolves a start payload to an active content item.
// Inactive items resolve to nil, same as unknown ids.
func (r *contentRepository) GetActiveByID(id string) (*models.ContentItem, error) {
	var item models.ContentItem
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1 AND status = $2`
	err := r.db.Get(&item, query, id, models.ContentStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *contentRepository) Create(item *models.ContentItem) error {
	query := `INSERT INTO content_items (id, content_type, title, body, cta_label, cta_url, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING updated_at`
	return r.db.QueryRowx(query, item.ID, item.Type, item.Title, item.Body,
		item.CTALabel, item.CTAURL, item.Status).Scan(&item.UpdatedAt)
}

func (r *contentRepository) Update(item *models.ContentItem) error {
	query := `UPDATE content_items
	          SET content_type = $2, title = $3, body = $4, cta_label = $5, cta_url = $6, status = $7, updated_at = now()
	          WHERE id = $1`
	_, err := r.db.Exec(query, item.ID, item.Type, item.Title, item.Body,
		item.CTALabel, item.CTAURL, item.Status)
	return err
}

func (r *contentRepository) ListAll() ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	query := `SELECT ` + contentColumns + ` FROM content_items ORDER BY updated_at DESC`
	err := r.db.Select(&items, query)
	if err != nil {
		return nil, err
	}
	return items, nil
}
