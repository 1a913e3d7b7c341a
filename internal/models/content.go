package models

import "time"

// Content item statuses.
const (
	ContentStatusActive   = "active"
	ContentStatusInactive = "inactive"
)

// ContentItem represents a row in the 'content_items' table. Authored via
// the operator API; the engine only reads active items by id.
type ContentItem struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"content_type" json:"content_type"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	CTALabel  string    `db:"cta_label" json:"cta_label"`
	CTAURL    string    `db:"cta_url" json:"cta_url"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
