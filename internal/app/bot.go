// Package app drives the trading cycle: reconcile open positions, scan the
// watchlist for entries, execute and protect new positions.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/execution"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/reconcile"
	"cryptoSpotBot/internal/risk"
	"cryptoSpotBot/internal/watcher"
)

// EntryOrderType selects how entries are bought.
type EntryOrderType string

const (
	EntryMarket EntryOrderType = "market"
	EntryLimit  EntryOrderType = "limit"
)

// Trader is the order capability the bot drives, normally an *execution.Executor.
type Trader interface {
	Filters(ctx context.Context, symbol string) (*domain.SymbolFilters, error)
	FreeBalance(ctx context.Context, asset string) (float64, error)
	MarketBuy(ctx context.Context, symbol string, qty float64) *domain.OrderResult
	LimitBuy(ctx context.Context, symbol string, qty, price float64) *domain.OrderResult
	OrderStatus(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (*execution.CancelResult, error)
	ExecuteOCO(ctx context.Context, symbol string, qty, stopPrice, limitPrice float64) *domain.OrderResult
}

// Ledger is the position store, normally a *position.Manager.
type Ledger interface {
	Symbols() []string
	GetPositions() map[string]*domain.Position
	HasPosition(symbol string) bool
	AddPosition(ctx context.Context, p *domain.Position) error
	UpdatePositionData(symbol string, quantity, entryPrice float64) error
	UpdatePositionOCOID(symbol, ocoOrderID string) error
	TotalExposure() float64
	TotalUnrealizedPnL() float64
}

// Reconciler aligns open positions with the exchange.
type Reconciler interface {
	ReconcileAll(ctx context.Context) []reconcile.Outcome
}

// IndicatorSource computes the indicator snapshot for a symbol.
type IndicatorSource interface {
	Calculate(ctx context.Context, symbol string, klines []*domain.Kline) (domain.Indicators, error)
}

// WatchlistRefresher rewrites the watchlist file.
type WatchlistRefresher interface {
	Refresh(ctx context.Context, path string) (*watcher.Watchlist, error)
}

// Config holds the orchestration settings.
type Config struct {
	QuoteAsset          string
	Symbols             []string // Fallback when no watchlist is available
	Timeframe           string
	KlineLimit          int
	ScanInterval        time.Duration
	WatchlistFile       string
	WatchlistMaxSymbols int
	RefreshWatchlist    bool

	EntryOrderType   EntryOrderType
	LimitOffsetPct   float64 // Percent below the market price for limit entries
	LimitWait        time.Duration
	LimitMaxAttempts int

	MaxConsecutiveErrors int
	ErrorBackoffMin      time.Duration
	ErrorBackoffMax      time.Duration
}

// Deps are the collaborators of a Bot. Watcher is optional.
type Deps struct {
	Market     ports.MarketData
	Trader     Trader
	Ledger     Ledger
	Reconciler Reconciler
	Risk       *risk.RiskManager
	Strategy   ports.Strategy
	Indicators IndicatorSource
	Notifier   ports.Notifier
	Watcher    WatchlistRefresher
	Logger     ports.Logger
}

// Bot is the trading orchestrator. Cycles run on one goroutine; Status may
// be called concurrently.
type Bot struct {
	cfg        Config
	market     ports.MarketData
	trader     Trader
	ledger     Ledger
	reconciler Reconciler
	risk       *risk.RiskManager
	strategy   ports.Strategy
	indicators IndicatorSource
	notifier   ports.Notifier
	watcher    WatchlistRefresher
	logger     ports.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time

	mu                sync.Mutex
	running           bool
	cycles            int
	lastCycle         time.Time
	consecutiveErrors int
	lastSymbols       []string
}

// NewBot validates cfg and deps and applies defaults.
func NewBot(cfg Config, deps Deps) (*Bot, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required for trading bot")
	}
	if deps.Market == nil || deps.Trader == nil || deps.Ledger == nil || deps.Reconciler == nil ||
		deps.Risk == nil || deps.Strategy == nil || deps.Indicators == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for trading bot")
	}

	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "4h"
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 100
	}
	if cfg.KlineLimit < deps.Strategy.RequiredDataPoints() {
		return nil, fmt.Errorf("%w: kline limit %d below the %d points %s needs",
			ports.ErrConfigurationError, cfg.KlineLimit, deps.Strategy.RequiredDataPoints(), deps.Strategy.Name())
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 5 * time.Minute
	}
	switch cfg.EntryOrderType {
	case "":
		cfg.EntryOrderType = EntryMarket
	case EntryMarket, EntryLimit:
	default:
		return nil, fmt.Errorf("%w: unknown entry order type %q", ports.ErrConfigurationError, cfg.EntryOrderType)
	}
	if cfg.LimitOffsetPct < 0 || cfg.LimitOffsetPct >= 100 {
		return nil, fmt.Errorf("%w: limit offset must be in [0, 100)", ports.ErrConfigurationError)
	}
	if cfg.LimitWait <= 0 {
		cfg.LimitWait = 10 * time.Second
	}
	if cfg.LimitMaxAttempts <= 0 {
		cfg.LimitMaxAttempts = 3
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 5
	}
	if cfg.ErrorBackoffMin <= 0 {
		cfg.ErrorBackoffMin = 30 * time.Second
	}
	if cfg.ErrorBackoffMax < cfg.ErrorBackoffMin {
		cfg.ErrorBackoffMax = 10 * cfg.ErrorBackoffMin
	}
	cfg.QuoteAsset = strings.ToUpper(cfg.QuoteAsset)

	return &Bot{
		cfg:        cfg,
		market:     deps.Market,
		trader:     deps.Trader,
		ledger:     deps.Ledger,
		reconciler: deps.Reconciler,
		risk:       deps.Risk,
		strategy:   deps.Strategy,
		indicators: deps.Indicators,
		notifier:   deps.Notifier,
		watcher:    deps.Watcher,
		logger:     deps.Logger,
		sleep:      sleepContext,
		now:        time.Now,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Status is a point-in-time snapshot of the bot.
type Status struct {
	Running           bool
	Strategy          string
	ActivePositions   int
	PositionSymbols   []string
	TotalExposure     float64
	UnrealizedPnL     float64
	Cycles            int
	LastCycle         time.Time
	ConsecutiveErrors int
	Watchlist         []string
}

// Status reports the ledger totals and loop state.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Running:           b.running,
		Strategy:          b.strategy.Name(),
		ActivePositions:   len(b.ledger.Symbols()),
		PositionSymbols:   b.ledger.Symbols(),
		TotalExposure:     b.ledger.TotalExposure(),
		UnrealizedPnL:     b.ledger.TotalUnrealizedPnL(),
		Cycles:            b.cycles,
		LastCycle:         b.lastCycle,
		ConsecutiveErrors: b.consecutiveErrors,
		Watchlist:         append([]string(nil), b.lastSymbols...),
	}
}

func (b *Bot) notifyError(ctx context.Context, msg string) {
	if err := b.notifier.SendErrorNotification(ctx, msg); err != nil {
		b.logger.Warn(ctx, "Error notification failed", map[string]interface{}{"error": err.Error()})
	}
}
