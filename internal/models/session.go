package models

import "time"

// Channel names. A session belongs to exactly one channel at a time; a
// web session flips to telegram when the bot identity is merged into it.
const (
	ChannelTelegram = "telegram"
	ChannelWeb      = "web"
)

// Session lifecycle values.
const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"

	SessionStepChat = "chat"
)

// ChatSession represents a row in the 'chat_sessions' table.
type ChatSession struct {
	ID         string    `db:"id" json:"id"`
	Channel    string    `db:"channel" json:"channel"`
	ExternalID *int64    `db:"external_id" json:"external_id,omitempty"` // bot chat id, nil for web
	Status     string    `db:"status" json:"status"`
	Flow       *string   `db:"flow" json:"flow,omitempty"`
	Step       string    `db:"step" json:"step"`
	Fields     JSONMap   `db:"fields" json:"fields"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMessage represents a row in the 'chat_messages' table. Append-only;
// creation order is the only ordering guarantee.
type ChatMessage struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"` // "user" or "assistant"
	Text      string    `db:"text" json:"text"`
	Metadata  JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Consent types.
const (
	ConsentWebStart      = "web_start"
	ConsentTelegramStart = "telegram_start"
)

// ConsentRecord represents a row in the 'consents' table. Gating is by
// existence check per (session, channel), not a uniqueness constraint.
type ConsentRecord struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Channel   string    `db:"channel" json:"channel"`
	Type      string    `db:"consent_type" json:"consent_type"`
	Metadata  JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserMeta is the optional per-message user metadata an adapter passes
// through to the dispatcher.
type UserMeta struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}
