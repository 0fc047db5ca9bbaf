package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier delivers reminders and export notices to users who
// linked a Telegram chat to their account.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	logger *zerolog.Logger
}

func NewTelegramNotifier(token string, logger *zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot api: %w", err)
	}
	logger.Info().Str("bot_username", api.Self.UserName).Msg("Telegram notifier authorized")
	return &TelegramNotifier{api: api, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, message string) error {
	if chatID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// NopNotifier is used when notifications are disabled in config.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, chatID int64, message string) error {
	return nil
}
