// Package scoring turns conversation and profile signals into a lead
// score, and drives the one-way handoff transition when the score crosses
// the threshold.
package scoring

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"superbot/internal/eventlog"
	"superbot/internal/models"
	"superbot/internal/notifier"
	"superbot/internal/repository"
)

// HandoffThreshold is the score at or above which a lead flips to handoff.
const HandoffThreshold = 70

// Signal weights. The six signals sum to exactly 100.
const (
	weightPortfolio    = 25
	weightPriorityRole = 20
	weightUrgency      = 15
	weightExperience   = 10
	weightCompensation = 10
	weightHumanAsk     = 20

	minExperienceYears = 3
)

// Keywords holds the configurable signal keyword lists. Zero-value lists
// fall back to the defaults.
type Keywords struct {
	PriorityRoles   []string
	Urgency         []string
	Compensation    []string
	HumanAssistance []string
}

// DefaultKeywords returns the built-in signal lists.
func DefaultKeywords() Keywords {
	return Keywords{
		PriorityRoles: []string{
			"full stack", "fullstack", "backend", "frontend", "devops",
			"mobile", "ios", "android", "data", "machine learning", "designer",
			"product manager",
		},
		Urgency: []string{
			"asap", "immediately", "right away", "urgent", "today",
			"this week", "now",
		},
		Compensation: []string{
			"salary", "pay", "compensation", "rate", "budget", "hiring",
			"vacancy", "open role", "open position", "available position",
		},
		HumanAssistance: []string{
			"talk to a human", "speak to a human", "real person", "operator",
			"manager", "talk to someone", "speak with someone",
		},
	}
}

func (k Keywords) withDefaults() Keywords {
	defaults := DefaultKeywords()
	if len(k.PriorityRoles) == 0 {
		k.PriorityRoles = defaults.PriorityRoles
	}
	if len(k.Urgency) == 0 {
		k.Urgency = defaults.Urgency
	}
	if len(k.Compensation) == 0 {
		k.Compensation = defaults.Compensation
	}
	if len(k.HumanAssistance) == 0 {
		k.HumanAssistance = defaults.HumanAssistance
	}
	return k
}

// HandoffNotifier requests an operator alert for a fresh handoff.
type HandoffNotifier interface {
	Notify(ctx context.Context, note notifier.Notification)
}

// Input is one scoring pass over a lead.
type Input struct {
	SessionID   string
	LeadType    string
	Fields      models.JSONMap // shallow-merged into the lead's field bag
	LastMessage string         // most recent user message, optional
}

type Scorer struct {
	leads    repository.LeadRepository
	handoffs repository.HandoffRepository
	events   *eventlog.Logger
	notifier HandoffNotifier
	keywords Keywords
	logger   *zap.Logger
}

func NewScorer(leads repository.LeadRepository, handoffs repository.HandoffRepository, events *eventlog.Logger, handoffNotifier HandoffNotifier, keywords Keywords, logger *zap.Logger) *Scorer {
	return &Scorer{
		leads:    leads,
		handoffs: handoffs,
		events:   events,
		notifier: handoffNotifier,
		keywords: keywords.withDefaults(),
		logger:   logger,
	}
}

// Score upserts the lead for (session, type), evaluates the six signals
// against the merged fields and the last message, and persists the new
// score with a fresh scoring snapshot. Crossing the threshold creates at
// most one handoff and one notification per lead, guarded by existence
// checks, so rescoring is idempotent beyond refreshing score and fields.
func (s *Scorer) Score(ctx context.Context, input Input) (*models.SuperbotLead, error) {
	lead, err := s.leads.GetBySessionAndType(input.SessionID, input.LeadType)
	if err != nil {
		return nil, fmt.Errorf("failed to look up lead: %w", err)
	}
	if lead == nil {
		lead = &models.SuperbotLead{
			SessionID: input.SessionID,
			LeadType:  input.LeadType,
			Status:    models.LeadStatusNew,
			Score:     0,
			Fields:    models.JSONMap{},
		}
		if err := s.leads.Create(lead); err != nil {
			return nil, fmt.Errorf("failed to create lead: %w", err)
		}
	}

	merged := models.JSONMap{}
	for k, v := range lead.Fields {
		merged[k] = v
	}
	for k, v := range input.Fields {
		merged[k] = v
	}

	score, signals := s.evaluate(merged, input.LastMessage)

	status := lead.Status
	if score >= HandoffThreshold {
		status = models.LeadStatusHandoff
	}

	patch := models.JSONMap{}
	for k, v := range input.Fields {
		patch[k] = v
	}
	patch[models.FieldScoring] = models.ScoringSnapshot{
		Score:     score,
		Signals:   signals,
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.leads.UpdateScoring(lead.ID, score, status, patch); err != nil {
		return nil, fmt.Errorf("failed to update lead scoring: %w", err)
	}
	lead.Score = score
	lead.Status = status
	for k, v := range patch {
		lead.Fields[k] = v
	}

	if score >= HandoffThreshold {
		if err := s.ensureHandoff(ctx, lead, signals); err != nil {
			return nil, err
		}
	}

	return lead, nil
}

func (s *Scorer) ensureHandoff(ctx context.Context, lead *models.SuperbotLead, signals []string) error {
	exists, err := s.handoffs.ExistsForLead(lead.ID)
	if err != nil {
		return fmt.Errorf("failed to check for existing handoff: %w", err)
	}
	if exists {
		return nil
	}

	note := "Auto handoff, signals: " + strings.Join(signals, ", ")
	handoff := &models.Handoff{LeadID: lead.ID, Note: &note}
	if err := s.handoffs.Create(handoff); err != nil {
		return fmt.Errorf("failed to create handoff: %w", err)
	}

	s.logger.Info("Lead crossed handoff threshold",
		zap.Int64("lead_id", lead.ID),
		zap.String("session_id", lead.SessionID),
		zap.Int("score", lead.Score))

	s.events.Log(lead.SessionID, models.EventHandoffCreated, models.JSONMap{
		"lead_id":    lead.ID,
		"handoff_id": handoff.ID,
		"score":      lead.Score,
		"signals":    signals,
	})

	s.notifier.Notify(ctx, notifier.Notification{
		Title:     fmt.Sprintf("Lead #%d ready for handoff (score %d)", lead.ID, lead.Score),
		Body:      note,
		SessionID: lead.SessionID,
		LeadID:    lead.ID,
		Metadata:  models.JSONMap{"lead_type": lead.LeadType},
	})

	return nil
}

// evaluate runs the six independent signals and returns the capped score
// plus the names of the signals that fired.
func (s *Scorer) evaluate(fields models.JSONMap, lastMessage string) (int, []string) {
	message := strings.ToLower(lastMessage)
	role := strings.ToLower(stringField(fields, "role"))
	availability := strings.ToLower(stringField(fields, "availability"))
	portfolio := strings.TrimSpace(stringField(fields, "portfolio"))

	score := 0
	var signals []string
	add := func(name string, weight int) {
		score += weight
		signals = append(signals, name)
	}

	if hasPortfolio(portfolio, message) {
		add("portfolio", weightPortfolio)
	}
	if containsAny(role, s.keywords.PriorityRoles) {
		add("priority_role", weightPriorityRole)
	}
	if containsAny(availability, s.keywords.Urgency) {
		add("urgent_availability", weightUrgency)
	}
	if experienceYears(fields) >= minExperienceYears {
		add("experienced", weightExperience)
	}
	if containsAny(message, s.keywords.Compensation) {
		add("compensation_intent", weightCompensation)
	}
	if containsAny(message, s.keywords.HumanAssistance) {
		add("human_assistance", weightHumanAsk)
	}

	if score > 100 {
		score = 100
	}
	return score, signals
}

var (
	urlPattern     = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	numericPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

var emptyPortfolioAnswers = map[string]bool{
	"": true, "none": true, "no": true, "n/a": true, "na": true, "-": true,
}

func hasPortfolio(portfolio, message string) bool {
	if urlPattern.MatchString(portfolio) || urlPattern.MatchString(message) {
		return true
	}
	return !emptyPortfolioAnswers[strings.ToLower(portfolio)]
}

// experienceYears extracts the first numeric token from the experience
// field, which may arrive as a number or as free text like "5 years".
func experienceYears(fields models.JSONMap) float64 {
	raw, ok := fields["experienceYears"]
	if !ok {
		raw = fields["experience"]
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if token := numericPattern.FindString(v); token != "" {
			if years, err := strconv.ParseFloat(token, 64); err == nil {
				return years
			}
		}
	}
	return 0
}

func stringField(fields models.JSONMap, key string) string {
	if fields == nil {
		return ""
	}
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
