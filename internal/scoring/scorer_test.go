package scoring

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"superbot/internal/eventlog"
	"superbot/internal/models"
	"superbot/internal/notifier"
)

type fakeLeadRepo struct {
	leads  map[string]*models.SuperbotLead
	nextID int64
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: map[string]*models.SuperbotLead{}}
}

func leadKey(sessionID, leadType string) string {
	return sessionID + "|" + leadType
}

func (f *fakeLeadRepo) GetBySessionAndType(sessionID, leadType string) (*models.SuperbotLead, error) {
	lead, ok := f.leads[leadKey(sessionID, leadType)]
	if !ok {
		return nil, nil
	}
	copied := *lead
	copied.Fields = copyMap(lead.Fields)
	return &copied, nil
}

func (f *fakeLeadRepo) GetByID(id int64) (*models.SuperbotLead, error) {
	for _, lead := range f.leads {
		if lead.ID == id {
			return lead, nil
		}
	}
	return nil, nil
}

func (f *fakeLeadRepo) Create(lead *models.SuperbotLead) error {
	f.nextID++
	lead.ID = f.nextID
	stored := *lead
	stored.Fields = copyMap(lead.Fields)
	f.leads[leadKey(lead.SessionID, lead.LeadType)] = &stored
	return nil
}

func (f *fakeLeadRepo) UpdateScoring(id int64, score int, status string, patch models.JSONMap) error {
	for _, lead := range f.leads {
		if lead.ID == id {
			lead.Score = score
			lead.Status = status
			for k, v := range patch {
				lead.Fields[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("lead %d not found", id)
}

func (f *fakeLeadRepo) ListAll() ([]*models.SuperbotLead, error) { return nil, nil }

func copyMap(in models.JSONMap) models.JSONMap {
	out := models.JSONMap{}
	for k, v := range in {
		out[k] = v
	}
	return out
}

type fakeHandoffRepo struct {
	handoffs []*models.Handoff
	nextID   int64
}

func (f *fakeHandoffRepo) ExistsForLead(leadID int64) (bool, error) {
	for _, h := range f.handoffs {
		if h.LeadID == leadID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHandoffRepo) Create(handoff *models.Handoff) error {
	f.nextID++
	handoff.ID = f.nextID
	f.handoffs = append(f.handoffs, handoff)
	return nil
}

func (f *fakeHandoffRepo) GetByID(id int64) (*models.Handoff, error)     { return nil, nil }
func (f *fakeHandoffRepo) Update(id int64, assignee, note *string) error { return nil }
func (f *fakeHandoffRepo) ListAll() ([]*models.Handoff, error)           { return f.handoffs, nil }

type fakeEventRepo struct {
	events []*models.SuperbotEvent
}

func (f *fakeEventRepo) Append(event *models.SuperbotEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) ListRecent(limit int) ([]*models.SuperbotEvent, error) {
	return f.events, nil
}

func (f *fakeEventRepo) byType(eventType string) []*models.SuperbotEvent {
	var out []*models.SuperbotEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeNotifier struct {
	notifications []notifier.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, note notifier.Notification) {
	f.notifications = append(f.notifications, note)
}

func newTestScorer() (*Scorer, *fakeLeadRepo, *fakeHandoffRepo, *fakeEventRepo, *fakeNotifier) {
	leads := newFakeLeadRepo()
	handoffs := &fakeHandoffRepo{}
	eventRepo := &fakeEventRepo{}
	alerts := &fakeNotifier{}
	scorer := NewScorer(leads, handoffs, eventlog.New(eventRepo, zap.NewNop()), alerts, Keywords{}, zap.NewNop())
	return scorer, leads, handoffs, eventRepo, alerts
}

func fullSignalInput() Input {
	return Input{
		SessionID: "11111111-1111-1111-1111-111111111111",
		LeadType:  models.LeadTypeTalent,
		Fields: models.JSONMap{
			"portfolio":       "https://github.com/x",
			"role":            "full stack",
			"availability":    "asap",
			"experienceYears": 5,
		},
		LastMessage: "what's the salary and can I talk to a human?",
	}
}

func TestScoreAllSignalsReachesHandoff(t *testing.T) {
	scorer, _, handoffs, eventRepo, alerts := newTestScorer()

	lead, err := scorer.Score(context.Background(), fullSignalInput())
	require.NoError(t, err)

	assert.Equal(t, 100, lead.Score)
	assert.Equal(t, models.LeadStatusHandoff, lead.Status)
	require.Len(t, handoffs.handoffs, 1)
	require.NotNil(t, handoffs.handoffs[0].Note)
	assert.Contains(t, *handoffs.handoffs[0].Note, "portfolio")
	assert.Contains(t, *handoffs.handoffs[0].Note, "human_assistance")
	assert.Len(t, eventRepo.byType(models.EventHandoffCreated), 1)
	assert.Len(t, alerts.notifications, 1)
	assert.Equal(t, lead.ID, alerts.notifications[0].LeadID)
}

func TestScoreRerunIsIdempotent(t *testing.T) {
	scorer, _, handoffs, eventRepo, alerts := newTestScorer()

	first, err := scorer.Score(context.Background(), fullSignalInput())
	require.NoError(t, err)
	second, err := scorer.Score(context.Background(), fullSignalInput())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, handoffs.handoffs, 1, "rescoring must not create a second handoff")
	assert.Len(t, eventRepo.byType(models.EventHandoffCreated), 1)
	assert.Len(t, alerts.notifications, 1)
}

func TestScoreBelowThresholdStaysNew(t *testing.T) {
	scorer, _, handoffs, _, alerts := newTestScorer()

	lead, err := scorer.Score(context.Background(), Input{
		SessionID:   "22222222-2222-2222-2222-222222222222",
		LeadType:    models.LeadTypeCompany,
		Fields:      models.JSONMap{"role": "backend"},
		LastMessage: "just browsing",
	})
	require.NoError(t, err)

	assert.Equal(t, 20, lead.Score)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Empty(t, handoffs.handoffs)
	assert.Empty(t, alerts.notifications)
}

func TestScoreNeverRevertsHandoffStatus(t *testing.T) {
	scorer, _, _, _, _ := newTestScorer()

	sessionID := "44444444-4444-4444-4444-444444444444"
	first, err := scorer.Score(context.Background(), Input{
		SessionID: sessionID,
		LeadType:  models.LeadTypeTalent,
		Fields: models.JSONMap{
			"portfolio":    "https://github.com/x",
			"role":         "full stack",
			"availability": "asap",
		},
		LastMessage: "what's the salary and can I talk to a human?",
	})
	require.NoError(t, err)
	require.Equal(t, models.LeadStatusHandoff, first.Status)
	require.Equal(t, 90, first.Score)

	// Message-driven signals fade on the next pass, the status does not.
	weaker, err := scorer.Score(context.Background(), Input{
		SessionID:   sessionID,
		LeadType:    models.LeadTypeTalent,
		LastMessage: "ok thanks",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusHandoff, weaker.Status)
	assert.Less(t, weaker.Score, HandoffThreshold)
}

func TestScorePreservesUnrelatedFields(t *testing.T) {
	scorer, leads, _, _, _ := newTestScorer()

	sessionID := "33333333-3333-3333-3333-333333333333"
	_, err := scorer.Score(context.Background(), Input{
		SessionID: sessionID,
		LeadType:  models.LeadTypeTalent,
		Fields:    models.JSONMap{"role": "designer", "notes": "met at conference"},
	})
	require.NoError(t, err)

	updated, err := scorer.Score(context.Background(), Input{
		SessionID: sessionID,
		LeadType:  models.LeadTypeTalent,
		Fields:    models.JSONMap{"availability": "asap"},
	})
	require.NoError(t, err)

	assert.Equal(t, "met at conference", updated.Fields["notes"])
	assert.Equal(t, "designer", updated.Fields["role"])
	_, err = leads.GetBySessionAndType(sessionID, models.LeadTypeTalent)
	require.NoError(t, err)
}

func TestExperienceYearsParsing(t *testing.T) {
	cases := []struct {
		name   string
		fields models.JSONMap
		want   float64
	}{
		{"numeric", models.JSONMap{"experienceYears": float64(7)}, 7},
		{"int", models.JSONMap{"experienceYears": 4}, 4},
		{"free text", models.JSONMap{"experienceYears": "about 5 years"}, 5},
		{"alternate key", models.JSONMap{"experience": "3 yrs"}, 3},
		{"missing", models.JSONMap{}, 0},
		{"garbage", models.JSONMap{"experienceYears": "a while"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, experienceYears(tc.fields))
		})
	}
}
