package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"superbot/internal/models"
	"superbot/internal/scoring"
	"superbot/internal/sessions"
)

// handleStart runs the start sub-cases in order: web→bot identity merge,
// content-item deep link, plain welcome.
func (d *Dispatcher) handleStart(ctx context.Context, in Inbound, payload string, send SendFunc) error {
	if in.Channel == models.ChannelTelegram && strings.HasPrefix(payload, "web_") {
		webID := strings.TrimPrefix(payload, "web_")
		if sessions.IsSessionID(webID) {
			merged, err := d.mergeWebSession(ctx, in, webID, payload, send)
			if err != nil {
				return err
			}
			if merged {
				return nil
			}
		}
	}

	if sessions.IsSessionID(payload) {
		item, err := d.content.GetActiveByID(payload)
		if err != nil {
			return fmt.Errorf("failed to resolve content item: %w", err)
		}
		if item != nil {
			return d.startWithContent(ctx, in, payload, item, send)
		}
	}

	return d.startPlain(ctx, in, payload, send)
}

// mergeWebSession moves the bot identity from the stub session created by
// this contact onto the web session the payload names, so the whole
// conversation continues on one row. Returns false when the payload does
// not resolve to a mergeable session.
func (d *Dispatcher) mergeWebSession(ctx context.Context, in Inbound, webID, payload string, send SendFunc) (bool, error) {
	target, err := d.sessions.GetByID(webID)
	if err != nil {
		return false, fmt.Errorf("failed to look up web session: %w", err)
	}
	if target == nil || target.ExternalID != nil || in.Session.ExternalID == nil {
		return false, nil
	}
	chatID := *in.Session.ExternalID

	// Free the chat id from the stub row first; the per-channel unique
	// constraint would otherwise reject the attach.
	if target.ID != in.Session.ID {
		if err := d.sessions.DetachExternalID(in.Session.ID); err != nil {
			return false, fmt.Errorf("failed to detach bot identity: %w", err)
		}
	}
	if err := d.sessions.AttachIdentity(target.ID, models.ChannelTelegram, chatID, models.SessionStepChat); err != nil {
		return false, fmt.Errorf("failed to attach bot identity: %w", err)
	}

	// Rebind so every later write in this dispatch lands on the merged
	// session.
	in.Session.ID = target.ID
	in.Session.Channel = models.ChannelTelegram
	in.Session.Step = models.SessionStepChat
	in.Session.Flow = nil
	in.Session.Fields = target.Fields
	in.Session.ExternalID = &chatID

	consent := &models.ConsentRecord{
		SessionID: target.ID,
		Channel:   models.ChannelTelegram,
		Type:      models.ConsentTelegramStart,
		Metadata: models.JSONMap{
			"source":  "web_to_telegram_handoff",
			"payload": payload,
		},
	}
	if err := d.consents.Create(consent); err != nil {
		return false, fmt.Errorf("failed to record merge consent: %w", err)
	}

	if _, err := d.scorer.Score(ctx, scoring.Input{
		SessionID: target.ID,
		LeadType:  models.LeadTypeTelegram,
		Fields:    botLeadFields(in.UserMeta, "web_to_telegram_handoff"),
	}); err != nil {
		return false, fmt.Errorf("failed to upsert bot lead: %w", err)
	}

	page := in.Session.Fields.Sub(models.FieldWebContext).String("page_url")
	if page == "" {
		page = d.cfg.BaseURL
	}
	actions := append([]Action{{Label: "Continue on site", URL: page}}, d.profileActions("")...)
	if err := send(Outgoing{Text: mergeConfirmation, Actions: actions}); err != nil {
		return false, err
	}
	return true, nil
}

// startWithContent delivers an authored content item for a deep-link
// payload, then the standard profile prompt.
func (d *Dispatcher) startWithContent(ctx context.Context, in Inbound, payload string, item *models.ContentItem, send SendFunc) error {
	consentType := models.ConsentWebStart
	if in.Channel == models.ChannelTelegram {
		consentType = models.ConsentTelegramStart
	}
	consent := &models.ConsentRecord{
		SessionID: in.Session.ID,
		Channel:   in.Channel,
		Type:      consentType,
		Metadata: models.JSONMap{
			"payload":         payload,
			"content_item_id": item.ID,
		},
	}
	if err := d.consents.Create(consent); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}

	if in.Channel == models.ChannelTelegram {
		if _, err := d.scorer.Score(ctx, scoring.Input{
			SessionID: in.Session.ID,
			LeadType:  models.LeadTypeTelegram,
			Fields:    botLeadFields(in.UserMeta, "telegram_start"),
		}); err != nil {
			return fmt.Errorf("failed to upsert bot lead: %w", err)
		}
	}

	if err := d.sessions.SetStep(in.Session.ID, models.SessionStepChat); err != nil {
		return fmt.Errorf("failed to advance session step: %w", err)
	}
	in.Session.Step = models.SessionStepChat
	in.Session.Flow = nil

	content := Outgoing{Text: item.Title + "\n\n" + item.Body}
	if item.CTALabel != "" && item.CTAURL != "" {
		content.Actions = []Action{{Label: item.CTALabel, URL: item.CTAURL}}
	}
	if err := send(content); err != nil {
		return err
	}
	d.events.Log(in.Session.ID, models.EventCTASent, models.JSONMap{
		"source":          "content_item",
		"content_item_id": item.ID,
	})

	return send(Outgoing{Text: profilePrompt, Actions: d.profileActions("")})
}

// startPlain handles a bare /start: consent, bot lead, welcome copy picked
// by the session's experiment variant.
func (d *Dispatcher) startPlain(ctx context.Context, in Inbound, payload string, send SendFunc) error {
	consentType := models.ConsentWebStart
	if in.Channel == models.ChannelTelegram {
		consentType = models.ConsentTelegramStart
	}
	var metadata models.JSONMap
	if payload != "" {
		metadata = models.JSONMap{"payload": payload}
	}
	consent := &models.ConsentRecord{
		SessionID: in.Session.ID,
		Channel:   in.Channel,
		Type:      consentType,
		Metadata:  metadata,
	}
	if err := d.consents.Create(consent); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}

	if in.Channel == models.ChannelTelegram {
		if _, err := d.scorer.Score(ctx, scoring.Input{
			SessionID: in.Session.ID,
			LeadType:  models.LeadTypeTelegram,
			Fields:    botLeadFields(in.UserMeta, "telegram_start"),
		}); err != nil {
			return fmt.Errorf("failed to upsert bot lead: %w", err)
		}
	}

	variant, err := d.experiments.Assign(in.Session)
	if err != nil {
		return err
	}
	welcome := welcomeTextA
	if variant == "welcome_b" {
		welcome = welcomeTextB
	}

	if err := send(Outgoing{Text: welcome, Actions: d.profileActions("")}); err != nil {
		return err
	}
	d.events.Log(in.Session.ID, models.EventWelcomeSent, models.JSONMap{
		"variant": variant,
	})
	return nil
}

func botLeadFields(meta *models.UserMeta, source string) models.JSONMap {
	info := models.BotLeadInfo{Source: source}
	if meta != nil {
		info.Username = meta.Username
		info.FirstName = meta.FirstName
		info.LastName = meta.LastName
	}
	return models.Doc(models.FieldBotLead, info)
}
