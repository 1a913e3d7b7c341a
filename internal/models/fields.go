package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a jsonb column mapped to a plain Go map. Sessions and leads
// carry one as an ad-hoc field bag; the known sub-documents below live
// under fixed keys inside it.
type JSONMap map[string]interface{}

// Value implements driver.Valuer for jsonb columns. JSON text is used so
// lib/pq sends the parameter in a form Postgres coerces to jsonb.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb columns.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Field-bag keys for the known sub-documents.
const (
	FieldWebContext = "web_context"
	FieldBotLead    = "bot_lead"
	FieldExperiment = "experiment"
	FieldScoring    = "scoring"
)

// WebContext records the last web page a session was seen on.
type WebContext struct {
	PageURL string    `json:"page_url"`
	SeenAt  time.Time `json:"seen_at"`
}

// BotLeadInfo is the bot-side identity snapshot stored on a lead and,
// during a web→bot merge, on the session.
type BotLeadInfo struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Source    string `json:"source"`
}

// ExperimentAssignment pins a session to one variant for its lifetime.
type ExperimentAssignment struct {
	Variant    string    `json:"variant"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ScoringSnapshot is refreshed on every scoring pass of a lead.
type ScoringSnapshot struct {
	Score     int       `json:"score"`
	Signals   []string  `json:"signals"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sub returns the sub-document stored under key as a JSONMap, or nil if
// absent or not an object. jsonb round-trips decode nested objects as
// map[string]interface{}.
func (m JSONMap) Sub(key string) JSONMap {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case map[string]interface{}:
		return JSONMap(v)
	case JSONMap:
		return v
	}
	return nil
}

// String returns the string stored under key, or "" when absent or not a
// string.
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Doc wraps a typed sub-document into a one-key JSONMap suitable for a
// shallow jsonb merge.
func Doc(key string, v interface{}) JSONMap {
	return JSONMap{key: v}
}
