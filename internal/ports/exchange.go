package ports

import (
	"context"
	"time"

	"cryptoSpotBot/internal/domain"
)

// Fill is a single execution reported for an order.
type Fill struct {
	Price           float64
	Quantity        float64
	Commission      float64
	CommissionAsset string
}

// OrderResponse represents the essential details of an exchange order.
type OrderResponse struct {
	OrderID            int64   // Exchange's order ID
	OrderListID        int64   // OCO order-list id, -1 when the order is not part of a list
	Symbol             string  // Symbol for the order
	ClientOrderID      string  // User-defined order ID
	Price              float64 // Limit price (0 for market orders)
	StopPrice          float64
	OrigQuantity       float64 // Original quantity requested
	ExecutedQty        float64 // Quantity filled
	CumulativeQuoteQty float64 // Quote spent/received across fills
	Status             domain.OrderStatus
	Type               string // Order type (e.g., MARKET, LIMIT, STOP_LOSS_LIMIT, LIMIT_MAKER)
	Side               string // Order side (BUY, SELL)
	Fills              []Fill
	Timestamp          time.Time
}

// AvgPrice derives the average execution price from quote and base quantities.
func (o *OrderResponse) AvgPrice() float64 {
	if o.ExecutedQty <= 0 {
		return 0
	}
	return o.CumulativeQuoteQty / o.ExecutedQty
}

// OCORequest describes a sell-side OCO (take-profit limit + stop-limit) order list.
type OCORequest struct {
	Symbol            string
	Side              domain.OrderSide
	Quantity          string
	Price             string // Take-profit limit price
	StopPrice         string
	StopLimitPrice    string
	ListClientOrderID string
}

// OCOResponse is the exchange acknowledgement of an OCO order list.
type OCOResponse struct {
	OrderListID     int64
	Symbol          string
	ListOrderStatus string
	Orders          []*OrderResponse
	Timestamp       time.Time
}

// Ticker24h holds rolling 24h statistics for a symbol.
type Ticker24h struct {
	Symbol             string
	LastPrice          float64
	PriceChangePercent float64
	QuoteVolume        float64
}

// MarketData provides prices, candles, balances and trading rules.
type MarketData interface {
	// GetPrice returns the latest traded price for the symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)
	// GetKlines retrieves the most recent klines, oldest first.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)
	// GetFreeBalance returns the free (unlocked) balance of an asset. Missing assets report 0.
	GetFreeBalance(ctx context.Context, asset string) (float64, error)
	// GetSymbolFilters returns the LOT_SIZE/PRICE_FILTER/NOTIONAL rules of a symbol.
	GetSymbolFilters(ctx context.Context, symbol string) (*domain.SymbolFilters, error)
}

// TradingClient places and inspects orders.
type TradingClient interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, clientOrderID string) (*OrderResponse, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price, clientOrderID string) (*OrderResponse, error)
	PlaceOCOOrder(ctx context.Context, req OCORequest) (*OCOResponse, error)
	// GetOrder returns the current state of an order. Missing orders yield ErrOrderNotFound.
	GetOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)
	CancelOCOOrder(ctx context.Context, symbol string, orderListID int64) error
	// GetOCOStatus returns the aggregate state of an OCO order list.
	GetOCOStatus(ctx context.Context, symbol string, orderListID int64) (*domain.OCOStatus, error)
	// GetOpenOrders lists the open orders of a symbol, including OCO legs.
	GetOpenOrders(ctx context.Context, symbol string) ([]*OrderResponse, error)
}

// MarketScanner exposes the market-wide data used to build a watchlist.
type MarketScanner interface {
	Get24hTickers(ctx context.Context) ([]*Ticker24h, error)
	// GetTradingSymbols returns the symbols currently in TRADING status for a quote asset.
	GetTradingSymbols(ctx context.Context, quoteAsset string) (map[string]bool, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)
}

// ExchangeClient is the full capability set of a spot exchange adapter.
type ExchangeClient interface {
	MarketData
	TradingClient
	MarketScanner
	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error
}
