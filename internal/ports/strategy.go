package ports

import (
	"context"

	"cryptoSpotBot/internal/domain"
)

// Strategy turns market data into an optional entry signal.
type Strategy interface {
	// Name identifies the strategy in logs and signals.
	Name() string
	// RequiredDataPoints returns the minimum number of klines needed for the indicators it reads.
	RequiredDataPoints() int
	// Analyze returns a signal, or nil when no entry is warranted.
	Analyze(ctx context.Context, data *domain.MarketData) *domain.TradingSignal
}
