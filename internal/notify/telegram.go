// File: internal/notify/telegram.go

// Package notify pushes per-user run summaries to an operator channel.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier delivers a short status message for a user's run. chatID selects
// the destination; zero falls back to the operator channel.
type Notifier interface {
	Push(ctx context.Context, chatID int64, text string) error
}

// Noop swallows all notifications. Used when no bot token is configured.
type Noop struct{}

func (Noop) Push(context.Context, int64, string) error { return nil }

// Telegram delivers notifications through a bot account.
type Telegram struct {
	log            *zap.Logger
	bot            *tgbotapi.BotAPI
	operatorChatID int64
}

// NewTelegram authenticates the bot against the Telegram API.
func NewTelegram(token string, operatorChatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: authenticating telegram bot: %w", err)
	}
	log := logger.Named("notify")
	log.Info("Telegram notifier ready", zap.String("bot", bot.Self.UserName))
	return &Telegram{
		log:            log,
		bot:            bot,
		operatorChatID: operatorChatID,
	}, nil
}

// Push sends a message. The bot API has no context plumbing of its own, so
// cancellation is only honored between the call and the send.
func (t *Telegram) Push(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if chatID == 0 {
		chatID = t.operatorChatID
	}
	if chatID == 0 {
		return nil
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.log.Warn("Telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	return nil
}
