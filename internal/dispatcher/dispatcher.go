// Package dispatcher is the single entry point for inbound conversational
// events. One Handle call runs guardrails, the consent gate, start and
// callback branching, and the chat turn, invoking the external responder
// when needed and delivering replies through the adapter's send callback.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"superbot/internal/eventlog"
	"superbot/internal/experiment"
	"superbot/internal/guardrail"
	"superbot/internal/models"
	"superbot/internal/repository"
	"superbot/internal/responder_client"
	"superbot/internal/scoring"
)

// Action is one suggested next step attached to a reply. The transport
// decides how to render it: a URL button, a callback button, or both.
type Action struct {
	Label        string `json:"label"`
	Value        string `json:"value,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Outgoing is one message the engine asks the adapter to deliver.
type Outgoing struct {
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// SendFunc delivers one outgoing message over the adapter's transport.
type SendFunc func(out Outgoing) error

// Responder is the external generative collaborator.
type Responder interface {
	Generate(ctx context.Context, text, history, channel string) (*responder_client.Reply, error)
}

// LeadScorer upserts and rescores leads.
type LeadScorer interface {
	Score(ctx context.Context, input scoring.Input) (*models.SuperbotLead, error)
}

// Inbound is one adapter event.
type Inbound struct {
	Channel      string
	Session      *models.ChatSession
	Text         string
	CallbackData string
	StartPayload string
	UserMeta     *models.UserMeta
}

// Config holds the dispatcher's deployment knobs.
type Config struct {
	// BaseURL is the product's public base URL, used for deep-link
	// fallbacks and profile buttons.
	BaseURL string
	// AllowedHosts is the allow-list for sanitizing referrer deep-links.
	AllowedHosts []string
	// HistoryLimit is how many prior turns feed the responder transcript.
	HistoryLimit int
	// ResponderTimeout bounds the external responder call.
	ResponderTimeout time.Duration
}

const (
	defaultHistoryLimit     = 10
	defaultResponderTimeout = 30 * time.Second

	CallbackCreateTalent  = "create_talent"
	CallbackCreateCompany = "create_company"

	consentInstruction = "Please send /start to begin our conversation."
	genericGreeting    = "Hi! How can I help you today?"
	profilePrompt      = "Want to get the most out of the platform? Create a profile:"
	mergeConfirmation  = "You're all set — this chat is now linked to your web session. Pick up right where you left off:"

	welcomeTextA = "Welcome! I'm the assistant for the talent marketplace. Ask me anything about finding work or hiring, and I'll point you in the right direction."
	welcomeTextB = "Hi there! I can help you find your next role or your next hire. What brings you here today?"
)

type Dispatcher struct {
	sessions    repository.SessionRepository
	messages    repository.MessageRepository
	consents    repository.ConsentRepository
	content     repository.ContentRepository
	scorer      LeadScorer
	events      *eventlog.Logger
	experiments *experiment.Assigner
	responder   Responder
	cfg         Config
	logger      *zap.Logger
}

func New(
	sessionRepo repository.SessionRepository,
	messageRepo repository.MessageRepository,
	consentRepo repository.ConsentRepository,
	contentRepo repository.ContentRepository,
	scorer LeadScorer,
	events *eventlog.Logger,
	experiments *experiment.Assigner,
	responder Responder,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.ResponderTimeout <= 0 {
		cfg.ResponderTimeout = defaultResponderTimeout
	}
	return &Dispatcher{
		sessions:    sessionRepo,
		messages:    messageRepo,
		consents:    consentRepo,
		content:     contentRepo,
		scorer:      scorer,
		events:      events,
		experiments: experiments,
		responder:   responder,
		cfg:         cfg,
		logger:      logger,
	}
}

// Handle processes one inbound event for an already-resolved session.
// Store failures on the primary path and responder failures propagate to
// the adapter; event-log and notification failures never do.
func (d *Dispatcher) Handle(ctx context.Context, in Inbound, send SendFunc) error {
	if in.Session == nil {
		return fmt.Errorf("dispatch requires a resolved session")
	}

	// Web context update: remember the referring page when it survives
	// the allow-list. Bad URLs are a silent no-op.
	if in.Channel == models.ChannelWeb && in.UserMeta != nil {
		if page := SanitizeReferrerURL(in.UserMeta.Referrer, d.cfg.AllowedHosts); page != "" {
			webContext := models.WebContext{PageURL: page, SeenAt: time.Now().UTC()}
			if err := d.sessions.MergeFields(in.Session.ID, models.Doc(models.FieldWebContext, webContext)); err != nil {
				return fmt.Errorf("failed to record web context: %w", err)
			}
			if in.Session.Fields == nil {
				in.Session.Fields = models.JSONMap{}
			}
			in.Session.Fields[models.FieldWebContext] = map[string]interface{}{
				"page_url": page,
				"seen_at":  webContext.SeenAt.Format(time.RFC3339),
			}
		}
	}

	// Profile CTA button press: audit only, the button's URL already
	// navigated on the transport side.
	switch in.CallbackData {
	case CallbackCreateTalent, CallbackCreateCompany:
		d.events.Log(in.Session.ID, models.EventProfileCTAClicked, models.JSONMap{
			"cta": in.CallbackData,
		})
		return nil
	}

	if payload, isStart := startPayload(in); isStart {
		return d.handleStart(ctx, in, payload, send)
	}

	text := strings.TrimSpace(in.Text)

	// Guardrails run before anything else touches the text, and the
	// message is persisted (redacted when the verdict says so) before a
	// refusal goes out.
	if text != "" {
		verdict := guardrail.Evaluate(text)
		stored := text
		var metadata models.JSONMap
		if verdict.Blocked {
			if verdict.Redacted != "" {
				stored = verdict.Redacted
			}
			metadata = models.JSONMap{"guardrail": verdict.Reason}
		}
		msg := &models.ChatMessage{
			SessionID: in.Session.ID,
			Role:      models.RoleUser,
			Text:      stored,
			Metadata:  metadata,
		}
		if err := d.messages.Save(msg); err != nil {
			return fmt.Errorf("failed to persist user message: %w", err)
		}
		if verdict.Blocked {
			safety := verdict.SafetyMessage
			if safety == "" {
				safety = "Sorry, I can't help with that request."
			}
			return send(Outgoing{Text: safety})
		}
	}

	// Consent gate. Bot sessions must /start first; web sessions are
	// granted consent on the spot.
	granted, err := d.consents.Exists(in.Session.ID, in.Channel)
	if err != nil {
		return fmt.Errorf("failed to check consent: %w", err)
	}
	if !granted {
		if in.Channel == models.ChannelTelegram {
			return send(Outgoing{Text: consentInstruction})
		}
		consent := &models.ConsentRecord{
			SessionID: in.Session.ID,
			Channel:   in.Channel,
			Type:      models.ConsentWebStart,
			Metadata:  consentMetadata(in.UserMeta),
		}
		if err := d.consents.Create(consent); err != nil {
			return fmt.Errorf("failed to record web consent: %w", err)
		}
	}

	if text == "" {
		return send(Outgoing{Text: genericGreeting, Actions: d.profileActions("")})
	}

	return d.chatTurn(ctx, in, text, send)
}

// chatTurn feeds the transcript and the new text to the responder and
// delivers its reply. Responder errors propagate untouched; the adapter
// owns the user-visible fallback.
func (d *Dispatcher) chatTurn(ctx context.Context, in Inbound, text string, send SendFunc) error {
	history, err := d.messages.GetRecent(in.Session.ID, d.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}
	transcript := buildTranscript(history)

	rctx, cancel := context.WithTimeout(ctx, d.cfg.ResponderTimeout)
	defer cancel()
	reply, err := d.responder.Generate(rctx, text, transcript, in.Channel)
	if err != nil {
		return err
	}

	assistantMsg := &models.ChatMessage{
		SessionID: in.Session.ID,
		Role:      models.RoleAssistant,
		Text:      reply.Reply,
	}
	if reply.ShowProfileCTA {
		assistantMsg.Metadata = models.JSONMap{"cta_type": reply.CTAType}
	}
	if err := d.messages.Save(assistantMsg); err != nil {
		return fmt.Errorf("failed to persist assistant message: %w", err)
	}

	if reply.ShowProfileCTA {
		if err := send(Outgoing{Text: reply.Reply, Actions: d.profileActions(reply.CTAType)}); err != nil {
			return err
		}
		d.events.Log(in.Session.ID, models.EventCTASent, models.JSONMap{
			"source":   "ai_detected",
			"cta_type": reply.CTAType,
		})
	} else {
		if err := send(Outgoing{Text: reply.Reply}); err != nil {
			return err
		}
	}

	// Conversation signals feed the bot lead's score on every turn.
	if in.Channel == models.ChannelTelegram {
		if _, err := d.scorer.Score(ctx, scoring.Input{
			SessionID:   in.Session.ID,
			LeadType:    models.LeadTypeTelegram,
			LastMessage: text,
		}); err != nil {
			return fmt.Errorf("failed to rescore lead: %w", err)
		}
	}

	return nil
}

// profileActions returns the standard profile CTAs, narrowed by the
// responder's requested type when given.
func (d *Dispatcher) profileActions(ctaType string) []Action {
	talent := Action{
		Label:        "Create talent profile",
		Value:        models.LeadTypeTalent,
		CallbackData: CallbackCreateTalent,
		URL:          d.cfg.BaseURL + "/talent/new",
	}
	company := Action{
		Label:        "Create company profile",
		Value:        models.LeadTypeCompany,
		CallbackData: CallbackCreateCompany,
		URL:          d.cfg.BaseURL + "/company/new",
	}
	switch ctaType {
	case models.LeadTypeTalent:
		return []Action{talent}
	case models.LeadTypeCompany:
		return []Action{company}
	}
	return []Action{talent, company}
}

// startPayload extracts the explicit start payload, or parses one from a
// literal "/start ..." command.
func startPayload(in Inbound) (string, bool) {
	if in.StartPayload != "" {
		return in.StartPayload, true
	}
	text := strings.TrimSpace(in.Text)
	if text == "/start" {
		return "", true
	}
	if strings.HasPrefix(text, "/start ") {
		return strings.TrimSpace(strings.TrimPrefix(text, "/start ")), true
	}
	return "", false
}

func buildTranscript(history []*models.ChatMessage) string {
	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func consentMetadata(meta *models.UserMeta) models.JSONMap {
	if meta == nil {
		return nil
	}
	out := models.JSONMap{}
	if meta.UserAgent != "" {
		out["user_agent"] = meta.UserAgent
	}
	if meta.Referrer != "" {
		out["referrer"] = meta.Referrer
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
