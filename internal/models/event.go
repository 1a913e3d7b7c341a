package models

import "time"

// Audit event types (closed set).
const (
	EventExperimentAssigned = "experiment_assigned"
	EventCTASent            = "cta_sent"
	EventCTAClick           = "cta_click"
	EventHandoffCreated     = "handoff_created"
	EventNotificationSent   = "notification_sent"
	EventWelcomeSent        = "welcome_sent"
	EventProfileCTAClicked  = "profile_cta_clicked"
)

// SuperbotEvent represents a row in the 'superbot_events' table.
// Append-only; the engine never reads these back.
type SuperbotEvent struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Metadata  JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
