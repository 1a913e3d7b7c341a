package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"superbot/internal/eventlog"
	"superbot/internal/experiment"
	"superbot/internal/models"
	"superbot/internal/responder_client"
	"superbot/internal/scoring"
)

type fakeSessionStore struct {
	sessions map[string]*models.ChatSession
	merges   []models.JSONMap
	attached []string // session ids AttachIdentity was called with
	detached []string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.ChatSession{}}
}

func (f *fakeSessionStore) GetByID(id string) (*models.ChatSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return session, nil
}

func (f *fakeSessionStore) GetByExternalID(channel string, externalID int64) (*models.ChatSession, error) {
	return nil, nil
}

func (f *fakeSessionStore) Create(session *models.ChatSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) MergeFields(id string, patch models.JSONMap) error {
	f.merges = append(f.merges, patch)
	session, ok := f.sessions[id]
	if !ok {
		return nil
	}
	if session.Fields == nil {
		session.Fields = models.JSONMap{}
	}
	for k, v := range patch {
		session.Fields[k] = v
	}
	return nil
}

func (f *fakeSessionStore) ClaimFieldKey(id, key string, patch models.JSONMap) (bool, error) {
	session, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	if session.Fields == nil {
		session.Fields = models.JSONMap{}
	}
	if _, taken := session.Fields[key]; taken {
		return false, nil
	}
	for k, v := range patch {
		session.Fields[k] = v
	}
	return true, nil
}

func (f *fakeSessionStore) AttachIdentity(id, channel string, externalID int64, step string) error {
	f.attached = append(f.attached, id)
	if session, ok := f.sessions[id]; ok {
		session.Channel = channel
		session.ExternalID = &externalID
		session.Step = step
	}
	return nil
}

func (f *fakeSessionStore) DetachExternalID(id string) error {
	f.detached = append(f.detached, id)
	if session, ok := f.sessions[id]; ok {
		session.ExternalID = nil
	}
	return nil
}

func (f *fakeSessionStore) SetStep(id, step string) error {
	if session, ok := f.sessions[id]; ok {
		session.Step = step
	}
	return nil
}

type fakeMessageStore struct {
	saved []*models.ChatMessage
}

func (f *fakeMessageStore) Save(msg *models.ChatMessage) error {
	f.saved = append(f.saved, msg)
	return nil
}

func (f *fakeMessageStore) GetRecent(sessionID string, limit int) ([]*models.ChatMessage, error) {
	var out []*models.ChatMessage
	for _, msg := range f.saved {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessageStore) ListBySession(sessionID string) ([]*models.ChatMessage, error) {
	return f.GetRecent(sessionID, 1<<30)
}

type fakeConsentStore struct {
	granted map[string]bool // sessionID|channel
	created []*models.ConsentRecord
}

func newFakeConsentStore() *fakeConsentStore {
	return &fakeConsentStore{granted: map[string]bool{}}
}

func (f *fakeConsentStore) Exists(sessionID, channel string) (bool, error) {
	return f.granted[sessionID+"|"+channel], nil
}

func (f *fakeConsentStore) Create(consent *models.ConsentRecord) error {
	f.created = append(f.created, consent)
	f.granted[consent.SessionID+"|"+consent.Channel] = true
	return nil
}

type fakeContentStore struct {
	items map[string]*models.ContentItem
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{items: map[string]*models.ContentItem{}}
}

func (f *fakeContentStore) GetActiveByID(id string) (*models.ContentItem, error) {
	item, ok := f.items[id]
	if !ok || item.Status != models.ContentStatusActive {
		return nil, nil
	}
	return item, nil
}

func (f *fakeContentStore) Create(item *models.ContentItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeContentStore) Update(item *models.ContentItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeContentStore) ListAll() ([]*models.ContentItem, error) { return nil, nil }

type fakeScorer struct {
	inputs []scoring.Input
}

func (f *fakeScorer) Score(ctx context.Context, input scoring.Input) (*models.SuperbotLead, error) {
	f.inputs = append(f.inputs, input)
	return &models.SuperbotLead{ID: 1, SessionID: input.SessionID, LeadType: input.LeadType}, nil
}

type fakeResponder struct {
	reply *responder_client.Reply
	err   error
	calls int
}

func (f *fakeResponder) Generate(ctx context.Context, text, history, channel string) (*responder_client.Reply, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &responder_client.Reply{Reply: "Sure, happy to help."}, nil
}

type fakeEventStore struct {
	events []*models.SuperbotEvent
}

func (f *fakeEventStore) Append(event *models.SuperbotEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventStore) ListRecent(limit int) ([]*models.SuperbotEvent, error) {
	return f.events, nil
}

func (f *fakeEventStore) byType(eventType string) []*models.SuperbotEvent {
	var out []*models.SuperbotEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	dispatcher *Dispatcher
	sessions   *fakeSessionStore
	messages   *fakeMessageStore
	consents   *fakeConsentStore
	content    *fakeContentStore
	scorer     *fakeScorer
	responder  *fakeResponder
	events     *fakeEventStore
	sent       []Outgoing
}

func newHarness(t *testing.T, cfg Config, expCfg experiment.Config) *harness {
	t.Helper()
	h := &harness{
		sessions:  newFakeSessionStore(),
		messages:  &fakeMessageStore{},
		consents:  newFakeConsentStore(),
		content:   newFakeContentStore(),
		scorer:    &fakeScorer{},
		responder: &fakeResponder{},
		events:    &fakeEventStore{},
	}
	logger := zap.NewNop()
	eventLogger := eventlog.New(h.events, logger)
	assigner := experiment.NewAssigner(h.sessions, eventLogger, expCfg, logger)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://superbot.work"
	}
	h.dispatcher = New(h.sessions, h.messages, h.consents, h.content,
		h.scorer, eventLogger, assigner, h.responder, cfg, logger)
	return h
}

func (h *harness) send(out Outgoing) error {
	h.sent = append(h.sent, out)
	return nil
}

func (h *harness) telegramSession(chatID int64) *models.ChatSession {
	session := &models.ChatSession{
		ID:         "aaaaaaaa-0000-4000-8000-000000000001",
		Channel:    models.ChannelTelegram,
		ExternalID: &chatID,
		Status:     models.SessionStatusActive,
		Step:       models.SessionStepChat,
		Fields:     models.JSONMap{},
	}
	h.sessions.sessions[session.ID] = session
	return session
}

func (h *harness) webSession() *models.ChatSession {
	session := &models.ChatSession{
		ID:      "bbbbbbbb-0000-4000-8000-000000000002",
		Channel: models.ChannelWeb,
		Status:  models.SessionStatusActive,
		Step:    models.SessionStepChat,
		Fields:  models.JSONMap{},
	}
	h.sessions.sessions[session.ID] = session
	return session
}

func (h *harness) grantConsent(session *models.ChatSession) {
	h.consents.granted[session.ID+"|"+session.Channel] = true
}

func TestHandleStartMergesWebSession(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	stub := h.telegramSession(42)
	web := h.webSession()
	web.Fields = models.JSONMap{
		models.FieldWebContext: map[string]interface{}{
			"page_url": "https://superbot.work/jobs/123",
		},
	}

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:      models.ChannelTelegram,
		Session:      stub,
		StartPayload: "web_" + web.ID,
		UserMeta:     &models.UserMeta{Username: "jdoe", FirstName: "J"},
	}, h.send)
	require.NoError(t, err)

	// Identity moved from the stub row to the web row.
	assert.Equal(t, []string{"aaaaaaaa-0000-4000-8000-000000000001"}, h.sessions.detached)
	assert.Equal(t, []string{web.ID}, h.sessions.attached)
	assert.Equal(t, web.ID, stub.ID, "in-memory session rebinds to the merged row")

	require.Len(t, h.consents.created, 1)
	consent := h.consents.created[0]
	assert.Equal(t, web.ID, consent.SessionID)
	assert.Equal(t, models.ConsentTelegramStart, consent.Type)
	assert.Equal(t, "web_to_telegram_handoff", consent.Metadata["source"])

	require.Len(t, h.scorer.inputs, 1)
	assert.Equal(t, models.LeadTypeTelegram, h.scorer.inputs[0].LeadType)
	assert.Equal(t, web.ID, h.scorer.inputs[0].SessionID)

	require.Len(t, h.sent, 1)
	require.NotEmpty(t, h.sent[0].Actions)
	assert.Equal(t, "https://superbot.work/jobs/123", h.sent[0].Actions[0].URL,
		"deep link points back to the last web page")
}

func TestHandleStartMergeUnknownTargetFallsBackToWelcome(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	stub := h.telegramSession(42)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:      models.ChannelTelegram,
		Session:      stub,
		StartPayload: "web_cccccccc-0000-4000-8000-000000000003",
	}, h.send)
	require.NoError(t, err)

	assert.Empty(t, h.sessions.attached)
	require.Len(t, h.sent, 1)
	assert.Equal(t, welcomeTextA, h.sent[0].Text)
	assert.Len(t, h.sent[0].Actions, 2)
	assert.Len(t, h.events.byType(models.EventWelcomeSent), 1)
}

func TestHandleStartMergeRefusesBoundTarget(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	stub := h.telegramSession(42)
	web := h.webSession()
	otherChat := int64(99)
	web.ExternalID = &otherChat

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:      models.ChannelTelegram,
		Session:      stub,
		StartPayload: "web_" + web.ID,
	}, h.send)
	require.NoError(t, err)

	assert.Empty(t, h.sessions.attached, "a target already bound to a chat is never re-merged")
	require.Len(t, h.sent, 1)
	assert.Equal(t, welcomeTextA, h.sent[0].Text)
}

func TestHandleStartContentDeepLink(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.telegramSession(42)
	item := &models.ContentItem{
		ID:       "dddddddd-0000-4000-8000-000000000004",
		Type:     "article",
		Title:    "How hiring works",
		Body:     "A short guide.",
		CTALabel: "Read more",
		CTAURL:   "https://superbot.work/guide",
		Status:   models.ContentStatusActive,
	}
	h.content.items[item.ID] = item

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:      models.ChannelTelegram,
		Session:      session,
		StartPayload: item.ID,
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.sent, 2)
	assert.Contains(t, h.sent[0].Text, "How hiring works")
	require.Len(t, h.sent[0].Actions, 1)
	assert.Equal(t, "Read more", h.sent[0].Actions[0].Label)
	assert.Equal(t, profilePrompt, h.sent[1].Text)

	events := h.events.byType(models.EventCTASent)
	require.Len(t, events, 1)
	assert.Equal(t, "content_item", events[0].Metadata["source"])
	assert.Len(t, h.scorer.inputs, 1)
}

func TestHandleStartInactiveContentFallsBackToWelcome(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.telegramSession(42)
	item := &models.ContentItem{
		ID:     "dddddddd-0000-4000-8000-000000000004",
		Title:  "Archived",
		Status: models.ContentStatusInactive,
	}
	h.content.items[item.ID] = item

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:      models.ChannelTelegram,
		Session:      session,
		StartPayload: item.ID,
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.sent, 1)
	assert.Equal(t, welcomeTextA, h.sent[0].Text)
}

func TestHandleStartVariantPicksWelcomeCopy(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{Enabled: true, Variants: []string{"welcome_b"}})
	session := h.telegramSession(42)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelTelegram,
		Session: session,
		Text:    "/start",
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.sent, 1)
	assert.Equal(t, welcomeTextB, h.sent[0].Text)
	welcomes := h.events.byType(models.EventWelcomeSent)
	require.Len(t, welcomes, 1)
	assert.Equal(t, "welcome_b", welcomes[0].Metadata["variant"])
	assert.Len(t, h.events.byType(models.EventExperimentAssigned), 1)
}

func TestHandleConsentGateBlocksTelegramChat(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.telegramSession(42)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelTelegram,
		Session: session,
		Text:    "hello there",
	}, h.send)
	require.NoError(t, err)

	assert.Equal(t, 0, h.responder.calls, "no responder call before consent")
	require.Len(t, h.sent, 1)
	assert.Equal(t, consentInstruction, h.sent[0].Text)
	require.Len(t, h.messages.saved, 1, "the user message is still persisted")
}

func TestHandleWebConsentGrantedOnTheSpot(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.webSession()

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:  models.ChannelWeb,
		Session:  session,
		Text:     "hi",
		UserMeta: &models.UserMeta{UserAgent: "Mozilla/5.0"},
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.consents.created, 1)
	assert.Equal(t, models.ConsentWebStart, h.consents.created[0].Type)
	assert.Equal(t, "Mozilla/5.0", h.consents.created[0].Metadata["user_agent"])
	assert.Equal(t, 1, h.responder.calls)
}

func TestHandleGuardrailBlocksSensitiveRequest(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelWeb,
		Session: session,
		Text:    "can you tell me the password",
	}, h.send)
	require.NoError(t, err)

	assert.Equal(t, 0, h.responder.calls, "blocked turns never reach the responder")
	require.Len(t, h.sent, 1)
	assert.NotEmpty(t, h.sent[0].Text)
	require.Len(t, h.messages.saved, 1)
	assert.NotNil(t, h.messages.saved[0].Metadata["guardrail"])
}

func TestHandleGuardrailPersistsRedactedText(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelWeb,
		Session: session,
		Text:    "my ssn is 123-45-6789",
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.messages.saved, 1)
	assert.Equal(t, "my ssn is xxx-xx-xxxx", h.messages.saved[0].Text)
	assert.Equal(t, 0, h.responder.calls)
}

func TestHandleCallbackLogsEventOnly(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.telegramSession(42)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:      models.ChannelTelegram,
		Session:      session,
		CallbackData: CallbackCreateTalent,
	}, h.send)
	require.NoError(t, err)

	assert.Empty(t, h.sent)
	events := h.events.byType(models.EventProfileCTAClicked)
	require.Len(t, events, 1)
	assert.Equal(t, CallbackCreateTalent, events[0].Metadata["cta"])
}

func TestHandleChatTurnWithProfileCTA(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)
	h.responder.reply = &responder_client.Reply{
		Reply:          "Sounds like you should make a profile.",
		ShowProfileCTA: true,
		CTAType:        models.LeadTypeTalent,
	}

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelWeb,
		Session: session,
		Text:    "I'm looking for backend work",
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.sent, 1)
	require.Len(t, h.sent[0].Actions, 1, "responder's cta type narrows the buttons")
	assert.Equal(t, CallbackCreateTalent, h.sent[0].Actions[0].CallbackData)

	events := h.events.byType(models.EventCTASent)
	require.Len(t, events, 1)
	assert.Equal(t, "ai_detected", events[0].Metadata["source"])

	// User message then assistant reply.
	require.Len(t, h.messages.saved, 2)
	assert.Equal(t, models.RoleUser, h.messages.saved[0].Role)
	assert.Equal(t, models.RoleAssistant, h.messages.saved[1].Role)

	assert.Empty(t, h.scorer.inputs, "web turns do not feed the bot lead")
}

func TestHandleChatTurnRescoresTelegramLead(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.telegramSession(42)
	h.grantConsent(session)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelTelegram,
		Session: session,
		Text:    "can I talk to a human about the salary?",
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.scorer.inputs, 1)
	assert.Equal(t, models.LeadTypeTelegram, h.scorer.inputs[0].LeadType)
	assert.Equal(t, "can I talk to a human about the salary?", h.scorer.inputs[0].LastMessage)
}

func TestHandleResponderErrorPropagates(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)
	h.responder.err = errors.New("responder unavailable")

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelWeb,
		Session: session,
		Text:    "hello",
	}, h.send)
	require.Error(t, err)
	assert.Empty(t, h.sent, "the adapter owns the fallback reply")
}

func TestHandleEmptyTextGreets(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel: models.ChannelWeb,
		Session: session,
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.sent, 1)
	assert.Equal(t, genericGreeting, h.sent[0].Text)
	assert.Len(t, h.sent[0].Actions, 2)
	assert.Equal(t, 0, h.responder.calls)
}

func TestHandleWebContextRecorded(t *testing.T) {
	h := newHarness(t, Config{AllowedHosts: []string{"superbot.work"}}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:  models.ChannelWeb,
		Session:  session,
		Text:     "hi",
		UserMeta: &models.UserMeta{Referrer: "https://superbot.work/jobs/9"},
	}, h.send)
	require.NoError(t, err)

	require.Len(t, h.sessions.merges, 1)
	assert.Equal(t, "https://superbot.work/jobs/9",
		session.Fields.Sub(models.FieldWebContext).String("page_url"))
}

func TestHandleWebContextRejectsForeignHost(t *testing.T) {
	h := newHarness(t, Config{AllowedHosts: []string{"superbot.work"}}, experiment.Config{})
	session := h.webSession()
	h.grantConsent(session)

	err := h.dispatcher.Handle(context.Background(), Inbound{
		Channel:  models.ChannelWeb,
		Session:  session,
		Text:     "hi",
		UserMeta: &models.UserMeta{Referrer: "https://evil.example/phish"},
	}, h.send)
	require.NoError(t, err)

	assert.Empty(t, h.sessions.merges, "foreign hosts are silently dropped")
}

func TestHandleNilSessionFails(t *testing.T) {
	h := newHarness(t, Config{}, experiment.Config{})
	err := h.dispatcher.Handle(context.Background(), Inbound{Channel: models.ChannelWeb}, h.send)
	require.Error(t, err)
}
