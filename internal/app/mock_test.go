package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/execution"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/position"
	"cryptoSpotBot/internal/reconcile"
	"cryptoSpotBot/internal/risk"

	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

// mockExchange scripts a spot exchange for the executor and the bot.
type mockExchange struct {
	prices     map[string][]float64 // successive GetPrice answers, last one repeats
	klines     map[string][]*domain.Kline
	klinesErr  map[string]error
	balances   map[string]float64
	filters    map[string]*domain.SymbolFilters
	marketResp *ports.OrderResponse
	marketQtys []string

	limitResps  []*ports.OrderResponse // successive PlaceLimitOrder answers
	limitPrices []string
	limitQtys   []string
	orders      map[int64]*ports.OrderResponse // GetOrder answers
	cancelResps map[int64]*ports.OrderResponse

	ocoErr       error
	ocoRequests  []ports.OCORequest
	ocoStatus    map[int64]*domain.OCOStatus
	ocoStatusErr error

	calls map[string]int
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		prices:    make(map[string][]float64),
		klines:    make(map[string][]*domain.Kline),
		klinesErr: make(map[string]error),
		balances:  make(map[string]float64),
		filters: map[string]*domain.SymbolFilters{
			"BTCUSDT": {Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", Status: "TRADING",
				StepSize: 0.00001, MinQty: 0.00001, MaxQty: 9000, TickSize: 0.01, MinNotional: 5},
			"ETHUSDT": {Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT", Status: "TRADING",
				StepSize: 0.0001, MinQty: 0.0001, MaxQty: 9000, TickSize: 0.01, MinNotional: 5},
		},
		orders:      make(map[int64]*ports.OrderResponse),
		cancelResps: make(map[int64]*ports.OrderResponse),
		ocoStatus:   make(map[int64]*domain.OCOStatus),
		calls:       make(map[string]int),
	}
}

func (m *mockExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.calls["GetPrice_"+symbol]++
	answers := m.prices[symbol]
	if len(answers) == 0 {
		return 0, ports.ErrSymbolNotFound
	}
	idx := m.calls["GetPrice_"+symbol] - 1
	if idx >= len(answers) {
		idx = len(answers) - 1
	}
	return answers[idx], nil
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	m.calls["GetKlines"]++
	if err := m.klinesErr[symbol]; err != nil {
		return nil, err
	}
	return m.klines[symbol], nil
}

func (m *mockExchange) GetFreeBalance(ctx context.Context, asset string) (float64, error) {
	m.calls["GetFreeBalance_"+asset]++
	return m.balances[asset], nil
}

func (m *mockExchange) GetSymbolFilters(ctx context.Context, symbol string) (*domain.SymbolFilters, error) {
	f, ok := m.filters[symbol]
	if !ok {
		return nil, fmt.Errorf("GetSymbolFilters failed: %w", ports.ErrSymbolNotFound)
	}
	return f, nil
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, clientOrderID string) (*ports.OrderResponse, error) {
	m.calls["PlaceMarketOrder_"+string(side)]++
	m.marketQtys = append(m.marketQtys, quantity)
	if m.marketResp == nil {
		return nil, fmt.Errorf("PlaceMarketOrder failed: %w", ports.ErrOrderPlacementFailed)
	}
	return m.marketResp, nil
}

func (m *mockExchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price, clientOrderID string) (*ports.OrderResponse, error) {
	m.calls["PlaceLimitOrder"]++
	m.limitQtys = append(m.limitQtys, quantity)
	m.limitPrices = append(m.limitPrices, price)
	idx := len(m.limitQtys) - 1
	if idx >= len(m.limitResps) {
		return nil, fmt.Errorf("PlaceLimitOrder failed: %w", ports.ErrOrderPlacementFailed)
	}
	return m.limitResps[idx], nil
}

func (m *mockExchange) PlaceOCOOrder(ctx context.Context, req ports.OCORequest) (*ports.OCOResponse, error) {
	m.calls["PlaceOCOOrder"]++
	m.ocoRequests = append(m.ocoRequests, req)
	if m.ocoErr != nil {
		return nil, m.ocoErr
	}
	if _, ok := m.ocoStatus[9001]; !ok {
		m.ocoStatus[9001] = &domain.OCOStatus{OrderListID: 9001, State: domain.OCOStateExecuting}
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
	o, ok := m.cancelResps[orderID]
	if !ok {
		return nil, fmt.Errorf("CancelOrder failed: %w", ports.ErrOrderCancelFailed)
	}
	return o, nil
}

func (m *mockExchange) CancelOCOOrder(ctx context.Context, symbol string, orderListID int64) error {
	m.calls["CancelOCOOrder"]++
	return nil
}

func (m *mockExchange) GetOCOStatus(ctx context.Context, symbol string, orderListID int64) (*domain.OCOStatus, error) {
	m.calls["GetOCOStatus"]++
	if m.ocoStatusErr != nil {
		return nil, m.ocoStatusErr
	}
	s, ok := m.ocoStatus[orderListID]
	if !ok {
		return nil, ports.ErrOrderNotFound
	}
	return s, nil
}

func (m *mockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]*ports.OrderResponse, error) {
	m.calls["GetOpenOrders"]++
	return nil, nil
}

// stubStrategy returns a fixed signal for the listed symbols.
type stubStrategy struct {
	signals map[string]*domain.TradingSignal
	calls   int
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) RequiredDataPoints() int { return 3 }

func (s *stubStrategy) Analyze(ctx context.Context, data *domain.MarketData) *domain.TradingSignal {
	s.calls++
	sig, ok := s.signals[data.Symbol]
	if !ok {
		return nil
	}
	c := *sig
	return &c
}

type stubIndicators struct{}

func (stubIndicators) Calculate(ctx context.Context, symbol string, klines []*domain.Kline) (domain.Indicators, error) {
	return domain.Indicators{"RSI_14": 55}, nil
}

type recordingNotifier struct {
	trades  []*domain.Trade
	signals []*domain.TradingSignal
	errors  []string
}

func (r *recordingNotifier) SendTradeNotification(ctx context.Context, trade *domain.Trade) error {
	r.trades = append(r.trades, trade)
	return nil
}

func (r *recordingNotifier) SendSignalNotification(ctx context.Context, signal *domain.TradingSignal) error {
	r.signals = append(r.signals, signal)
	return nil
}

func (r *recordingNotifier) SendErrorNotification(ctx context.Context, message string) error {
	r.errors = append(r.errors, message)
	return nil
}

func klinesAt(symbol string, price float64, n int) []*domain.Kline {
	out := make([]*domain.Kline, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = &domain.Kline{
			OpenTime: base.Add(time.Duration(i) * 4 * time.Hour),
			Symbol:   symbol, Interval: "4h",
			Open: price, High: price, Low: price, Close: price, Volume: 10,
		}
	}
	return out
}

// harness wires real executor, ledger, risk and reconciler around the mock exchange.
type harness struct {
	exchange *mockExchange
	ledger   *position.Manager
	path     string
	strategy *stubStrategy
	notifier *recordingNotifier
	logger   *mockLogger
	bot      *Bot
	sleeps   []time.Duration
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		exchange: newMockExchange(),
		strategy: &stubStrategy{signals: make(map[string]*domain.TradingSignal)},
		notifier: &recordingNotifier{},
		logger:   &mockLogger{},
	}

	h.path = filepath.Join(t.TempDir(), "active_trades.json")
	ledger, err := position.NewManager(h.path, h.logger)
	require.NoError(t, err)
	h.ledger = ledger

	ids := 0
	exec, err := execution.NewExecutor(execution.Config{
		Exchange:   h.exchange,
		Logger:     h.logger,
		QuoteAsset: "USDT",
		NewClientOrderID: func() string {
			ids++
			return fmt.Sprintf("test_%d", ids)
		},
	})
	require.NoError(t, err)

	riskMgr, err := risk.NewRiskManager(risk.RiskConfig{
		MinBalance:              100,
		RiskPerTradePercent:     2,
		FallbackPositionPercent: 2,
		MaxTradeValuePercent:    60,
		StopLossPercent:         5,
		TakeProfitPercent:       10,
	}, h.logger)
	require.NoError(t, err)

	rec, err := reconcile.NewReconciler(reconcile.Config{
		Ledger:   ledger,
		Orders:   exec,
		Prices:   h.exchange,
		Notifier: h.notifier,
		Logger:   h.logger,
	})
	require.NoError(t, err)

	if cfg.Symbols == nil {
		cfg.Symbols = []string{"BTCUSDT"}
	}
	bot, err := NewBot(cfg, Deps{
		Market:     h.exchange,
		Trader:     exec,
		Ledger:     ledger,
		Reconciler: rec,
		Risk:       riskMgr,
		Strategy:   h.strategy,
		Indicators: stubIndicators{},
		Notifier:   h.notifier,
		Logger:     h.logger,
	})
	require.NoError(t, err)
	bot.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	bot.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	h.bot = bot
	return h
}

// btcSignal is the reference entry: 50000 with stop 48000 and target 52000.
func (h *harness) btcSignal() {
	h.exchange.klines["BTCUSDT"] = klinesAt("BTCUSDT", 50000, 10)
	h.exchange.prices["BTCUSDT"] = []float64{50000}
	h.exchange.balances["USDT"] = 10000
	h.exchange.balances["BTC"] = 0.1
	h.strategy.signals["BTCUSDT"] = &domain.TradingSignal{
		Symbol:       "BTCUSDT",
		Direction:    domain.Buy,
		Price:        50000,
		Confidence:   0.8,
		StopLoss:     48000,
		TakeProfit:   52000,
		StrategyName: "stub",
	}
}
