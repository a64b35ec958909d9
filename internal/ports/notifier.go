package ports

import (
	"context"

	"cryptoSpotBot/internal/domain"
)

// Notifier delivers user-facing notifications. Delivery failures are returned
// for logging only; callers never retry them.
type Notifier interface {
	SendTradeNotification(ctx context.Context, trade *domain.Trade) error
	SendSignalNotification(ctx context.Context, signal *domain.TradingSignal) error
	SendErrorNotification(ctx context.Context, message string) error
}
