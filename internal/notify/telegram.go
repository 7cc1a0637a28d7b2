package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramSender delivers alerts through the Telegram bot API.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := s.bot.Send(msg)
	return err
}

// LogSender writes alerts to the log instead of a chat channel. Used when
// no bot token is configured, mirroring how a notifier with no credentials
// degrades to a no-op.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(ctx context.Context, chatID int64, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("alert", zap.Int64("chat_id", chatID), zap.String("text", text))
	return nil
}
