package telegram_bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"superbot/internal/dispatcher"
	"superbot/internal/models"
	"superbot/internal/sessions"
)

const fallbackReply = "Sorry, something went wrong on our side. Please try again in a moment."

// Bot is the Telegram adapter: it resolves sessions for inbound updates
// and hands them to the dispatcher, rendering replies as Telegram
// messages with inline keyboards.
type Bot struct {
	api        *tgbotapi.BotAPI
	sessions   *sessions.Manager
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewBot creates a new Telegram bot adapter. Returns nil when no token is
// configured, which disables the channel.
func NewBot(token string, sessionManager *sessions.Manager, disp *dispatcher.Dispatcher, logger *zap.Logger) (*Bot, error) {
	if token == "" {
		logger.Info("Telegram bot is disabled (no token configured)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:        botAPI,
		sessions:   sessionManager,
		dispatcher: disp,
		logger:     logger,
	}, nil
}

// Start begins listening for updates from Telegram
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil // Bot is disabled
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(ctx, update.CallbackQuery)
			} else if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// handleMessage dispatches one inbound message on its chat's session.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	session, err := b.sessions.ResolveTelegram(chatID)
	if err != nil {
		b.logger.Error("Failed to resolve telegram session", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendText(chatID, fallbackReply)
		return
	}

	in := dispatcher.Inbound{
		Channel:  models.ChannelTelegram,
		Session:  session,
		Text:     message.Text,
		UserMeta: userMeta(message.From),
	}
	if message.IsCommand() && message.Command() == "start" {
		in.StartPayload = message.CommandArguments()
		in.Text = "/start"
	}

	if err := b.dispatcher.Handle(ctx, in, b.sendFunc(chatID)); err != nil {
		b.logger.Error("Dispatch failed",
			zap.String("session_id", session.ID),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendText(chatID, fallbackReply)
	}
}

// handleCallbackQuery acknowledges the button press and dispatches it.
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}

	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	session, err := b.sessions.ResolveTelegram(chatID)
	if err != nil {
		b.logger.Error("Failed to resolve telegram session", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	in := dispatcher.Inbound{
		Channel:      models.ChannelTelegram,
		Session:      session,
		CallbackData: query.Data,
		UserMeta:     userMeta(query.From),
	}
	if err := b.dispatcher.Handle(ctx, in, b.sendFunc(chatID)); err != nil {
		b.logger.Error("Callback dispatch failed",
			zap.String("session_id", session.ID),
			zap.String("data", query.Data),
			zap.Error(err))
	}
}

// sendFunc renders dispatcher output as a Telegram message. Actions with
// a URL become URL buttons; the rest become callback buttons.
func (b *Bot) sendFunc(chatID int64) dispatcher.SendFunc {
	return func(out dispatcher.Outgoing) error {
		msg := tgbotapi.NewMessage(chatID, out.Text)
		if len(out.Actions) > 0 {
			var rows [][]tgbotapi.InlineKeyboardButton
			for _, action := range out.Actions {
				var button tgbotapi.InlineKeyboardButton
				if action.URL != "" {
					button = tgbotapi.NewInlineKeyboardButtonURL(action.Label, action.URL)
				} else {
					button = tgbotapi.NewInlineKeyboardButtonData(action.Label, action.CallbackData)
				}
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
			}
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		}
		if _, err := b.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
		return nil
	}
}

// sendText is a helper to send a simple text message
func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func userMeta(user *tgbotapi.User) *models.UserMeta {
	if user == nil {
		return nil
	}
	return &models.UserMeta{
		Username:  user.UserName,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}
