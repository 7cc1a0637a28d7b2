package bot

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"burnscope/internal/model"
	"burnscope/internal/notify"
	"burnscope/internal/storage"
)

// Intent is one recognized chat command.
type Intent string

const (
	IntentSubscribe   Intent = "subscribe"
	IntentUnsubscribe Intent = "unsubscribe"
	IntentStatus      Intent = "status"
	IntentHelp        Intent = "help"
	IntentUnknown     Intent = "unknown"
)

var intentTable = map[string]Intent{
	"/start":       IntentSubscribe,
	"/subscribe":   IntentSubscribe,
	"/unsubscribe": IntentUnsubscribe,
	"/stop":        IntentUnsubscribe,
	"/status":      IntentStatus,
	"/help":        IntentHelp,
}

// ParseIntent maps raw message text to an intent. The command may carry a
// @botname suffix when sent in a group chat.
func ParseIntent(text string) Intent {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return IntentUnknown
	}
	command := strings.ToLower(fields[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	if intent, ok := intentTable[command]; ok {
		return intent
	}
	return IntentUnknown
}

const helpText = "This bot sends 🔥 burn alerts.\n" +
	"• /subscribe – receive burn alerts\n" +
	"• /unsubscribe – stop burn alerts\n" +
	"• /status – rolling burn totals\n" +
	"• /help – this message"

// Handler answers chat commands against the subscriber store.
type Handler struct {
	topic  string
	symbol string
	subs   storage.SubscriberStore
	events storage.EventStore
	logger *zap.Logger
}

func NewHandler(topic, symbol string, subs storage.SubscriberStore, events storage.EventStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{topic: topic, symbol: symbol, subs: subs, events: events, logger: logger}
}

// HandleMessage executes the message's intent and returns the reply text.
// An empty reply means no response should be sent.
func (h *Handler) HandleMessage(ctx context.Context, chatID int64, text string) string {
	switch ParseIntent(text) {
	case IntentSubscribe:
		if err := h.subs.Add(ctx, h.topic, chatID); err != nil {
			h.logger.Error("subscribe failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return "Something went wrong, please try again later."
		}
		return "✅ Subscribed to 🔥 burn alerts.\n\n" + helpText

	case IntentUnsubscribe:
		if err := h.subs.Remove(ctx, h.topic, chatID); err != nil {
			h.logger.Error("unsubscribe failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return "Something went wrong, please try again later."
		}
		return "🛑 Unsubscribed from 🔥 burn alerts."

	case IntentStatus:
		return h.status(ctx)

	case IntentHelp:
		return helpText

	default:
		return ""
	}
}

func (h *Handler) status(ctx context.Context) string {
	totals, err := h.events.RollingSums(ctx, time.Now(), model.DefaultWindows)
	if err != nil {
		h.logger.Error("status totals failed", zap.Error(err))
		return "Something went wrong, please try again later."
	}

	var b strings.Builder
	b.WriteString("🔥 Burn totals")
	for _, window := range model.DefaultWindows {
		sums := totals[window]
		b.WriteString("\n📊 ")
		b.WriteString(notify.FormatWindowLine(window, sums, h.symbol))
	}
	return b.String()
}
