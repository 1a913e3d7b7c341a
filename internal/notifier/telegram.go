package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramAlerter sends operator alerts to a fixed chat.
type TelegramAlerter struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramAlerter creates the Telegram alert channel. Returns nil when
// the token or chat id is unset, which disables the channel.
func NewTelegramAlerter(token string, chatID int64, logger *zap.Logger) (*TelegramAlerter, error) {
	if token == "" || chatID == 0 {
		logger.Info("Telegram alert channel is disabled (no token or chat id)")
		return nil, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram alert API: %w", err)
	}

	logger.Info("Telegram alert channel authorized", zap.String("username", api.Self.UserName))
	return &TelegramAlerter{api: api, chatID: chatID, logger: logger}, nil
}

func (t *TelegramAlerter) SendAlert(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}
