package notify

import (
	"context"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

// Console delivers notifications through the application logger.
type Console struct {
	logger ports.Logger
}

// NewConsole creates a logger-backed notifier.
func NewConsole(logger ports.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) SendTradeNotification(ctx context.Context, trade *domain.Trade) error {
	fields := map[string]interface{}{"symbol": trade.Symbol, "pnl": trade.PNL, "reason": trade.CloseReason}
	if trade.PNL > 0 {
		c.logger.Info(ctx, TradeMessage(trade), fields)
	} else {
		c.logger.Warn(ctx, TradeMessage(trade), fields)
	}
	return nil
}

func (c *Console) SendSignalNotification(ctx context.Context, signal *domain.TradingSignal) error {
	c.logger.Info(ctx, SignalMessage(signal), map[string]interface{}{"symbol": signal.Symbol, "confidence": signal.Confidence})
	return nil
}

func (c *Console) SendErrorNotification(ctx context.Context, message string) error {
	c.logger.Error(ctx, nil, ErrorMessage(message))
	return nil
}
