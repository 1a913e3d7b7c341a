// Package experiment assigns sessions to A/B variants. Assignments are
// sticky for the session's lifetime and recorded in the session field bag.
package experiment

import (
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"superbot/internal/eventlog"
	"superbot/internal/models"
	"superbot/internal/repository"
)

// Config controls experimentation. With Enabled false the Assigner always
// returns the first variant and never writes anything.
type Config struct {
	Enabled  bool
	Variants []string
}

// DefaultVariants is used when the config lists none.
var DefaultVariants = []string{"welcome_a", "welcome_b"}

type Assigner struct {
	sessions repository.SessionRepository
	events   *eventlog.Logger
	cfg      Config
	logger   *zap.Logger

	// pick is swappable in tests.
	pick func(n int) int
}

func NewAssigner(sessions repository.SessionRepository, events *eventlog.Logger, cfg Config, logger *zap.Logger) *Assigner {
	if len(cfg.Variants) == 0 {
		cfg.Variants = DefaultVariants
	}
	return &Assigner{
		sessions: sessions,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		pick:     rand.IntN,
	}
}

// Assign returns the session's variant, assigning one on first call. The
// claim is conditional on the experiment key being absent, so a racing
// duplicate loses and adopts the stored assignment.
func (a *Assigner) Assign(session *models.ChatSession) (string, error) {
	if !a.cfg.Enabled {
		return a.cfg.Variants[0], nil
	}

	if v := session.Fields.Sub(models.FieldExperiment).String("variant"); v != "" {
		return v, nil
	}

	assignment := models.ExperimentAssignment{
		Variant:    a.cfg.Variants[a.pick(len(a.cfg.Variants))],
		AssignedAt: time.Now().UTC(),
	}
	claimed, err := a.sessions.ClaimFieldKey(session.ID, models.FieldExperiment, models.Doc(models.FieldExperiment, assignment))
	if err != nil {
		return "", fmt.Errorf("failed to persist experiment assignment: %w", err)
	}

	if !claimed {
		fresh, err := a.sessions.GetByID(session.ID)
		if err != nil {
			return "", err
		}
		if fresh == nil {
			return "", fmt.Errorf("session %s vanished during experiment assignment", session.ID)
		}
		session.Fields = fresh.Fields
		if v := session.Fields.Sub(models.FieldExperiment).String("variant"); v != "" {
			return v, nil
		}
		return a.cfg.Variants[0], nil
	}

	if session.Fields == nil {
		session.Fields = models.JSONMap{}
	}
	session.Fields[models.FieldExperiment] = map[string]interface{}{
		"variant":     assignment.Variant,
		"assigned_at": assignment.AssignedAt.Format(time.RFC3339),
	}

	a.events.Log(session.ID, models.EventExperimentAssigned, models.JSONMap{
		"variant": assignment.Variant,
	})

	return assignment.Variant, nil
}
