package binanceclient

import (
	"context"
	"errors"
	"testing"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "logger is required")

	c, err := New(Config{Logger: &mockLogger{}, UseTestnet: true, RateLimitPerSec: 10, RateBurst: 5})
	require.NoError(t, err)
	assert.Equal(t, baseURLTestnet, c.spotClient.BaseURL)
	assert.Equal(t, 5, c.limiter.Burst())
}

func TestHandleError_APICodes(t *testing.T) {
	tests := []struct {
		name string
		err  *common.APIError
		want error
	}{
		{"insufficient balance", &common.APIError{Code: -2010, Message: "Account has insufficient balance for requested action."}, ports.ErrInsufficientFunds},
		{"other new order rejection", &common.APIError{Code: -2010, Message: "Market is closed."}, ports.ErrOrderPlacementFailed},
		{"filter failure", &common.APIError{Code: -1013, Message: "Filter failure: NOTIONAL"}, ports.ErrFilterFailure},
		{"invalid symbol", &common.APIError{Code: -1121, Message: "Invalid symbol."}, ports.ErrSymbolNotFound},
		{"bad parameter", &common.APIError{Code: -1102, Message: "Mandatory parameter 'quantity' was not sent"}, ports.ErrInvalidRequest},
		{"unknown order on cancel", &common.APIError{Code: -2011, Message: "Unknown order sent."}, ports.ErrOrderNotFound},
		{"order does not exist", &common.APIError{Code: -2013, Message: "Order does not exist."}, ports.ErrOrderNotFound},
		{"rate limited", &common.APIError{Code: -1003, Message: "Too many requests"}, ports.ErrRateLimited},
		{"server busy", &common.APIError{Code: -1008, Message: "Server is currently overloaded"}, ports.ErrExchangeUnavailable},
		{"bad key", &common.APIError{Code: -2015, Message: "Invalid API-key"}, ports.ErrInvalidAPIKeys},
		{"unmapped", &common.APIError{Code: -9999, Message: "?"}, ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			c := &Client{logger: logger}
			got := c.handleError(context.Background(), tt.err, "PlaceOCOOrder")
			assert.ErrorIs(t, got, tt.want)
			var apiErr *common.APIError
			assert.True(t, errors.As(got, &apiErr), "original API error stays wrapped")
			assert.Len(t, logger.errorMsgs, 1)
		})
	}
}

func TestHandleError_NonAPI(t *testing.T) {
	c := &Client{logger: &mockLogger{}}
	ctx := context.Background()

	assert.Nil(t, c.handleError(ctx, nil, "op"))
	assert.ErrorIs(t, c.handleError(ctx, context.DeadlineExceeded, "op"), ports.ErrTimeout)
	assert.ErrorIs(t, c.handleError(ctx, context.Canceled, "op"), ports.ErrContextCanceled)
	assert.ErrorIs(t, c.handleError(ctx, errors.New("dial tcp: connection refused"), "op"), ports.ErrConnectionFailed)
	assert.ErrorIs(t, c.handleError(ctx, errors.New("boom"), "op"), ports.ErrUnknown)
	assert.True(t, ports.IsTransient(c.handleError(ctx, &common.APIError{Code: -1003}, "op")))
}

func TestClassifyOCOLegs(t *testing.T) {
	leg := func(status domain.OrderStatus, executed, quote float64) *ports.OrderResponse {
		return &ports.OrderResponse{OrderListID: 42, Status: status, ExecutedQty: executed, CumulativeQuoteQty: quote}
	}

	tests := []struct {
		name      string
		legs      []*ports.OrderResponse
		wantState domain.OCOState
		wantPrice float64
		wantQty   float64
		wantErr   error
	}{
		{
			name:    "no legs",
			wantErr: ports.ErrOrderNotFound,
		},
		{
			name:      "take profit filled, stop expired",
			legs:      []*ports.OrderResponse{leg(domain.OrderStatusExpired, 0, 0), leg(domain.OrderStatusFilled, 0.1, 5200)},
			wantState: domain.OCOStateAllDone,
			wantPrice: 52000,
			wantQty:   0.1,
		},
		{
			name:      "partial fill then cancel counts as executed",
			legs:      []*ports.OrderResponse{leg(domain.OrderStatusCanceled, 0.04, 1920), leg(domain.OrderStatusCanceled, 0, 0)},
			wantState: domain.OCOStateAllDone,
			wantPrice: 48000,
			wantQty:   0.04,
		},
		{
			name:      "manually cancelled",
			legs:      []*ports.OrderResponse{leg(domain.OrderStatusCanceled, 0, 0), leg(domain.OrderStatusCanceled, 0, 0)},
			wantState: domain.OCOStateCanceled,
		},
		{
			name:      "rejected",
			legs:      []*ports.OrderResponse{leg(domain.OrderStatusRejected, 0, 0), leg(domain.OrderStatusExpired, 0, 0)},
			wantState: domain.OCOStateRejected,
		},
		{
			name:      "expired",
			legs:      []*ports.OrderResponse{leg(domain.OrderStatusExpired, 0, 0), leg(domain.OrderStatusExpired, 0, 0)},
			wantState: domain.OCOStateExpired,
		},
		{
			name:      "still working",
			legs:      []*ports.OrderResponse{leg(domain.OrderStatusPartiallyFilled, 0.02, 1040), leg(domain.OrderStatusNew, 0, 0)},
			wantState: domain.OCOStateExecuting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := classifyOCOLegs(42, tt.legs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(42), status.OrderListID)
			assert.Equal(t, tt.wantState, status.State)
			assert.InDelta(t, tt.wantPrice, status.FilledPrice, 1e-9)
			assert.InDelta(t, tt.wantQty, status.FilledQuantity, 1e-12)
		})
	}
}

func TestLegsOf(t *testing.T) {
	orders := []*ports.OrderResponse{
		{OrderID: 1, OrderListID: -1},
		{OrderID: 2, OrderListID: 7},
		{OrderID: 3, OrderListID: 7},
		{OrderID: 4, OrderListID: 8},
	}
	legs := legsOf(orders, 7)
	require.Len(t, legs, 2)
	assert.Equal(t, int64(2), legs[0].OrderID)
	assert.Empty(t, legsOf(orders, 9))
}

func TestTranslateSymbolFilters(t *testing.T) {
	sym := &binance.Symbol{
		Symbol:     "BTCUSDT",
		Status:     "TRADING",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		Filters: []map[string]interface{}{
			{"filterType": "PRICE_FILTER", "minPrice": "0.01000000", "maxPrice": "1000000.00000000", "tickSize": "0.01000000"},
			{"filterType": "LOT_SIZE", "minQty": "0.00001000", "maxQty": "9000.00000000", "stepSize": "0.00001000"},
			{"filterType": "NOTIONAL", "minNotional": "5.00000000", "applyMinToMarket": true},
			{"filterType": "MAX_NUM_ORDERS", "maxNumOrders": float64(200)},
		},
	}

	f, err := translateSymbolFilters(sym)
	require.NoError(t, err)
	assert.Equal(t, "BTC", f.BaseAsset)
	assert.Equal(t, "USDT", f.QuoteAsset)
	assert.Equal(t, 0.00001, f.StepSize)
	assert.Equal(t, 0.00001, f.MinQty)
	assert.Equal(t, 9000.0, f.MaxQty)
	assert.Equal(t, 0.01, f.TickSize)
	assert.Equal(t, 5.0, f.MinNotional)

	sym.Filters = sym.Filters[2:]
	_, err = translateSymbolFilters(sym)
	assert.Error(t, err, "missing lot size and price filter")
}

func TestTranslateCreateOrderResponse(t *testing.T) {
	resp := translateCreateOrderResponse(&binance.CreateOrderResponse{
		Symbol:                   "BTCUSDT",
		OrderID:                  99,
		ClientOrderID:            "csb_abc",
		OrigQuantity:             "0.10000000",
		ExecutedQuantity:         "0.10000000",
		CummulativeQuoteQuantity: "5001.00000000",
		Status:                   binance.OrderStatusTypeFilled,
		Type:                     binance.OrderTypeMarket,
		Side:                     binance.SideTypeBuy,
		TransactTime:             1700000000000,
		Fills: []*binance.Fill{
			{Price: "50000.00", Quantity: "0.06", Commission: "0.00006", CommissionAsset: "BTC"},
			{Price: "50025.00", Quantity: "0.04", Commission: "0.00004", CommissionAsset: "BTC"},
		},
	})

	assert.Equal(t, int64(99), resp.OrderID)
	assert.Equal(t, int64(-1), resp.OrderListID)
	assert.Equal(t, domain.OrderStatusFilled, resp.Status)
	assert.InDelta(t, 50010.0, resp.AvgPrice(), 1e-6)
	require.Len(t, resp.Fills, 2)
	assert.Equal(t, 0.04, resp.Fills[1].Quantity)
	assert.Nil(t, translateCreateOrderResponse(nil))
}

func TestTranslateBinanceKline(t *testing.T) {
	k, err := translateBinanceKline(&binance.Kline{
		OpenTime: 1700000000000, CloseTime: 1700003599999,
		Open: "100", High: "110", Low: "95", Close: "105", Volume: "12.5",
	}, "ETHUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", k.Symbol)
	assert.Equal(t, 105.0, k.Close)
	assert.Equal(t, 12.5, k.Volume)

	_, err = translateBinanceKline(&binance.Kline{Open: "x"}, "ETHUSDT", "1h")
	assert.Error(t, err)
	_, err = translateBinanceKline(nil, "ETHUSDT", "1h")
	assert.Error(t, err)
}
