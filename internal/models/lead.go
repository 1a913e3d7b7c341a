package models

import "time"

// Lead types.
const (
	LeadTypeTalent   = "talent"
	LeadTypeCompany  = "company"
	LeadTypeTelegram = "telegram"
)

// Lead statuses. The transition new→handoff is one-way; rescoring never
// reverts it.
const (
	LeadStatusNew     = "new"
	LeadStatusHandoff = "handoff"
)

// SuperbotLead represents a row in the 'superbot_leads' table. At most one
// lead exists per (session_id, lead_type).
type SuperbotLead struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	LeadType  string    `db:"lead_type" json:"lead_type"`
	Status    string    `db:"status" json:"status"`
	Score     int       `db:"score" json:"score"`
	Fields    JSONMap   `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Handoff represents a row in the 'handoffs' table. At most one per lead,
// enforced by existence check before insert.
type Handoff struct {
	ID        int64     `db:"id" json:"id"`
	LeadID    int64     `db:"lead_id" json:"lead_id"`
	Assignee  *string   `db:"assignee" json:"assignee,omitempty"`
	Note      *string   `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
