package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"burnscope/internal/model"
)

// Sender delivers one rendered alert to one chat. Best effort, one way.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Dispatcher fans one alert out to every subscriber. Sends are isolated:
// one unreachable recipient never blocks the rest, and failed sends are
// logged, not retried within the cycle.
type Dispatcher struct {
	sender      Sender
	symbol      string
	explorerURL string
	logger      *zap.Logger
}

func NewDispatcher(sender Sender, symbol, explorerURL string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, symbol: symbol, explorerURL: explorerURL, logger: logger}
}

// Notify renders the event once and attempts delivery to each subscriber.
// Returns the number of successful sends.
func (d *Dispatcher) Notify(ctx context.Context, ev model.BurnEvent, totals map[time.Duration]model.WindowTotals, subscribers []int64) int {
	if d.sender == nil || len(subscribers) == 0 {
		return 0
	}

	text := FormatAlert(ev, totals, d.symbol, d.explorerURL)

	sent := 0
	for _, chatID := range subscribers {
		if err := d.sender.Send(ctx, chatID, text); err != nil {
			d.logger.Warn("send alert failed",
				zap.Int64("chat_id", chatID),
				zap.String("signature", ev.Signature),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}
