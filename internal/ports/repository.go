package ports

import (
	"context"

	"cryptoSpotBot/internal/domain"
)

// TradeJournal records closed trades for historical reporting.
type TradeJournal interface {
	// RecordTrade saves a closed trade.
	RecordTrade(ctx context.Context, trade *domain.Trade) error
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// FindAll retrieves every recorded trade, oldest exit first.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
	// CountToday counts the trades closed today across all symbols.
	CountToday(ctx context.Context) (int, error)
	// GetTotalProfit sums the PNL of all recorded trades.
	GetTotalProfit(ctx context.Context) (float64, error)
}
