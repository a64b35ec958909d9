package execution

import (
	"context"
	"fmt"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

// mockExchange scripts exchange answers and counts calls.
type mockExchange struct {
	filters    map[string]*domain.SymbolFilters
	filtersErr error
	balances   []float64 // successive GetFreeBalance answers; last one repeats
	balanceErr error

	ocoErrs     []error // successive PlaceOCOOrder errors; nil means success
	ocoRequests []ports.OCORequest

	marketResp *ports.OrderResponse
	marketErr  error
	limitResp  *ports.OrderResponse
	limitErr   error
	orders     map[int64]*ports.OrderResponse
	openOrders []*ports.OrderResponse
	cancelErr  error

	calls map[string]int
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		filters: map[string]*domain.SymbolFilters{
			"BTCUSDT": {Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", Status: "TRADING",
				StepSize: 0.00001, MinQty: 0.00001, MaxQty: 9000, TickSize: 0.01, MinNotional: 5},
			"XYZUSDT": {Symbol: "XYZUSDT", BaseAsset: "XYZ", QuoteAsset: "USDT", Status: "TRADING",
				StepSize: 0.01, MinQty: 0.01, MaxQty: 100000, TickSize: 0.0001, MinNotional: 5},
		},
		orders: make(map[int64]*ports.OrderResponse),
		calls:  make(map[string]int),
	}
}

func (m *mockExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.calls["GetPrice"]++
	return 0, nil
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	return nil, nil
}

func (m *mockExchange) GetFreeBalance(ctx context.Context, asset string) (float64, error) {
	m.calls["GetFreeBalance"]++
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	if len(m.balances) == 0 {
		return 0, nil
	}
	idx := m.calls["GetFreeBalance"] - 1
	if idx >= len(m.balances) {
		idx = len(m.balances) - 1
	}
	return m.balances[idx], nil
}

func (m *mockExchange) GetSymbolFilters(ctx context.Context, symbol string) (*domain.SymbolFilters, error) {
	m.calls["GetSymbolFilters"]++
	if m.filtersErr != nil {
		return nil, m.filtersErr
	}
	f, ok := m.filters[symbol]
	if !ok {
		return nil, fmt.Errorf("GetSymbolFilters failed: %w", ports.ErrSymbolNotFound)
	}
	return f, nil
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, clientOrderID string) (*ports.OrderResponse, error) {
	m.calls["PlaceMarketOrder_"+string(side)]++
	return m.marketResp, m.marketErr
}

func (m *mockExchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price, clientOrderID string) (*ports.OrderResponse, error) {
	m.calls["PlaceLimitOrder"]++
	return m.limitResp, m.limitErr
}

func (m *mockExchange) PlaceOCOOrder(ctx context.Context, req ports.OCORequest) (*ports.OCOResponse, error) {
	m.calls["PlaceOCOOrder"]++
	m.ocoRequests = append(m.ocoRequests, req)
	idx := len(m.ocoRequests) - 1
	if idx < len(m.ocoErrs) && m.ocoErrs[idx] != nil {
		return nil, m.ocoErrs[idx]
	}
	return &ports.OCOResponse{OrderListID: 9001, Symbol: req.Symbol, ListOrderStatus: "EXECUTING", Timestamp: time.Now()}, nil
}

func (m *mockExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	m.calls["GetOrder"]++
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ports.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	m.calls["CancelOrder"]++
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	o := m.orders[orderID]
	o.Status = domain.OrderStatusCanceled
	return o, nil
}

func (m *mockExchange) CancelOCOOrder(ctx context.Context, symbol string, orderListID int64) error {
	m.calls["CancelOCOOrder"]++
	return m.cancelErr
}

func (m *mockExchange) GetOCOStatus(ctx context.Context, symbol string, orderListID int64) (*domain.OCOStatus, error) {
	m.calls["GetOCOStatus"]++
	return &domain.OCOStatus{OrderListID: orderListID, State: domain.OCOStateExecuting}, nil
}

func (m *mockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]*ports.OrderResponse, error) {
	m.calls["GetOpenOrders"]++
	return m.openOrders, nil
}
