// Package notifier fans out best-effort operator alerts over a Telegram
// channel and a transactional email channel. Delivery failures never
// propagate; a database-backed cooldown suppresses repeats per key.
package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"superbot/internal/eventlog"
	"superbot/internal/models"
	"superbot/internal/repository"
)

// DefaultCooldown is the suppression window for repeated notifications on
// the same key.
const DefaultCooldown = 5 * time.Minute

// AlertSender delivers a bot-style operator alert.
type AlertSender interface {
	SendAlert(ctx context.Context, text string) error
}

// MailSender delivers a transactional email.
type MailSender interface {
	SendMail(ctx context.Context, subject, body string) error
}

// Notification is one alert request.
type Notification struct {
	Title     string
	Body      string
	SessionID string
	LeadID    int64
	Metadata  models.JSONMap
}

type Notifier struct {
	alerts    AlertSender // nil when the Telegram channel is unconfigured
	mail      MailSender  // nil when the email channel is unconfigured
	cooldowns repository.CooldownRepository
	events    *eventlog.Logger
	window    time.Duration
	logger    *zap.Logger
}

func New(alerts AlertSender, mail MailSender, cooldowns repository.CooldownRepository, events *eventlog.Logger, window time.Duration, logger *zap.Logger) *Notifier {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Notifier{
		alerts:    alerts,
		mail:      mail,
		cooldowns: cooldowns,
		events:    events,
		window:    window,
		logger:    logger,
	}
}

// Notify dispatches to both channels concurrently. Checking the cooldown
// also claims it; a suppressed call performs no dispatch and logs no
// event. Per-channel failures are recorded in the event metadata only.
func (n *Notifier) Notify(ctx context.Context, note Notification) {
	key := n.cooldownKey(note)
	free, err := n.cooldowns.Claim(key, n.window)
	if err != nil {
		// A broken cooldown store should not silence alerts.
		n.logger.Error("Failed to check notification cooldown", zap.String("key", key), zap.Error(err))
		free = true
	}
	if !free {
		n.logger.Debug("Notification suppressed by cooldown", zap.String("key", key))
		return
	}

	var alertOK, mailOK bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if n.alerts == nil {
			return nil
		}
		if err := n.alerts.SendAlert(gctx, note.Title+"\n\n"+note.Body); err != nil {
			n.logger.Error("Failed to send Telegram alert", zap.Error(err))
			return nil
		}
		alertOK = true
		return nil
	})
	g.Go(func() error {
		if n.mail == nil {
			return nil
		}
		if err := n.mail.SendMail(gctx, note.Title, note.Body); err != nil {
			n.logger.Error("Failed to send email alert", zap.Error(err))
			return nil
		}
		mailOK = true
		return nil
	})
	_ = g.Wait()

	if note.SessionID == "" {
		return
	}
	metadata := models.JSONMap{
		"telegram_sent": alertOK,
		"email_sent":    mailOK,
	}
	for k, v := range note.Metadata {
		metadata[k] = v
	}
	if note.LeadID != 0 {
		metadata["lead_id"] = note.LeadID
	}
	n.events.Log(note.SessionID, models.EventNotificationSent, metadata)
}

func (n *Notifier) cooldownKey(note Notification) string {
	if note.LeadID != 0 {
		return fmt.Sprintf("handoff:%d", note.LeadID)
	}
	return fmt.Sprintf("handoff:%s", note.SessionID)
}
