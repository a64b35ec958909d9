// Package execution places spot orders on the exchange and recovers from the
// predictable rejections around OCO exit orders.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/format"
	"cryptoSpotBot/internal/ports"
)

// Exchange is the subset of the exchange client the executor needs.
type Exchange interface {
	ports.MarketData
	ports.TradingClient
}

// Config holds the dependencies and tuning of an Executor.
type Config struct {
	Exchange   Exchange
	Logger     ports.Logger
	QuoteAsset string

	// BalanceToleranceAbs and BalanceTolerancePct define the OCO pre-flight band:
	// tolerance = max(abs, pct × rounded quantity).
	BalanceToleranceAbs float64
	BalanceTolerancePct float64
	// RetryDelay is the wait before re-querying the balance after an
	// insufficient-balance OCO rejection.
	RetryDelay time.Duration
	// RetryBufferPct is the fraction shaved off the re-queried balance.
	RetryBufferPct float64
	// MaxOCORetries is the OCO retry budget.
	MaxOCORetries int
	// StopLimitOffsetPct places the stop-limit leg below the stop trigger.
	StopLimitOffsetPct float64

	// NewClientOrderID overrides the uuid-based id generator.
	NewClientOrderID func() string
}

// Defaults used when Config fields are left zero.
const (
	DefaultBalanceToleranceAbs = 0.001
	DefaultBalanceTolerancePct = 0.001
	DefaultRetryDelay          = 2 * time.Second
	DefaultRetryBufferPct      = 0.001
	DefaultMaxOCORetries       = 1
	DefaultStopLimitOffsetPct  = 0.001
)

// Executor submits orders after making them compliant with symbol filters.
type Executor struct {
	exchange Exchange
	logger   ports.Logger
	cfg      Config
	filters  *filterCache
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExecutor validates cfg and applies defaults.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Exchange == nil {
		return nil, errors.New("exchange client is required for executor")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required for executor")
	}
	if cfg.BalanceToleranceAbs < 0 || cfg.BalanceTolerancePct < 0 || cfg.RetryBufferPct < 0 || cfg.StopLimitOffsetPct < 0 {
		return nil, fmt.Errorf("%w: executor tolerances must not be negative", ports.ErrConfigurationError)
	}
	if cfg.BalanceToleranceAbs == 0 {
		cfg.BalanceToleranceAbs = DefaultBalanceToleranceAbs
	}
	if cfg.BalanceTolerancePct == 0 {
		cfg.BalanceTolerancePct = DefaultBalanceTolerancePct
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RetryBufferPct == 0 {
		cfg.RetryBufferPct = DefaultRetryBufferPct
	}
	if cfg.MaxOCORetries == 0 {
		cfg.MaxOCORetries = DefaultMaxOCORetries
	}
	if cfg.StopLimitOffsetPct == 0 {
		cfg.StopLimitOffsetPct = DefaultStopLimitOffsetPct
	}
	if cfg.NewClientOrderID == nil {
		cfg.NewClientOrderID = func() string {
			return "csb_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
		}
	}
	return &Executor{
		exchange: cfg.Exchange,
		logger:   cfg.Logger,
		cfg:      cfg,
		filters:  newFilterCache(),
		sleep:    sleepContext,
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

// Filters returns the cached trading rules of symbol.
func (e *Executor) Filters(ctx context.Context, symbol string) (*domain.SymbolFilters, error) {
	return e.filters.get(ctx, symbol, e.exchange)
}

// filtersOrDegraded returns nil filters when the lookup fails so the
// formatter falls back to fixed precision instead of failing the order.
func (e *Executor) filtersOrDegraded(ctx context.Context, op, symbol string) *domain.SymbolFilters {
	f, err := e.Filters(ctx, symbol)
	if err != nil {
		e.logger.Warn(ctx, op+": symbol filters unavailable, using fixed precision", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return nil
	}
	return f
}

// BaseAsset returns the base asset of symbol, e.g. BTC for BTCUSDT.
func (e *Executor) BaseAsset(ctx context.Context, symbol string) string {
	if f, err := e.Filters(ctx, symbol); err == nil && f.BaseAsset != "" {
		return f.BaseAsset
	}
	return baseAssetFromSymbol(symbol, e.cfg.QuoteAsset)
}

// FreeBalance returns the unlocked balance of asset.
func (e *Executor) FreeBalance(ctx context.Context, asset string) (float64, error) {
	return e.exchange.GetFreeBalance(ctx, asset)
}

// MarketBuy buys qty of symbol at market.
func (e *Executor) MarketBuy(ctx context.Context, symbol string, qty float64) *domain.OrderResult {
	return e.marketOrder(ctx, symbol, domain.Buy, qty)
}

// MarketSell sells qty of symbol at market.
func (e *Executor) MarketSell(ctx context.Context, symbol string, qty float64) *domain.OrderResult {
	return e.marketOrder(ctx, symbol, domain.Sell, qty)
}

func (e *Executor) marketOrder(ctx context.Context, symbol string, side domain.OrderSide, qty float64) *domain.OrderResult {
	op := "MarketBuy"
	if side == domain.Sell {
		op = "MarketSell"
	}
	filters := e.filtersOrDegraded(ctx, op, symbol)

	rounded, err := format.Quantity(qty, filters)
	if err != nil {
		e.logger.Warn(ctx, op+": quantity rejected locally", map[string]interface{}{
			"symbol":    symbol,
			"requested": qty,
			"error":     err.Error(),
		})
		return domain.FailedOrder(domain.ErrorKindLocalValidation, err.Error())
	}

	e.logger.Info(ctx, op+": submitting order", map[string]interface{}{
		"symbol":    symbol,
		"requested": qty,
		"rounded":   rounded,
	})
	resp, err := e.exchange.PlaceMarketOrder(ctx, symbol, side, format.Render(rounded), e.cfg.NewClientOrderID())
	if err != nil {
		kind := ClassifyError(err)
		e.logger.Error(ctx, err, op+": order failed", map[string]interface{}{
			"symbol":   symbol,
			"quantity": rounded,
			"kind":     kind,
		})
		return domain.FailedOrder(kind, err.Error())
	}

	result := resultFromResponse(resp)
	result.Quantity = rounded
	e.logger.Info(ctx, op+": order executed", map[string]interface{}{
		"symbol":       symbol,
		"order_id":     result.OrderID,
		"filled_qty":   result.FilledQuantity,
		"filled_price": result.FilledPrice,
		"commission":   result.Commission,
	})
	return result
}

// LimitBuy places a GTC limit buy after checking the minimum notional locally.
func (e *Executor) LimitBuy(ctx context.Context, symbol string, qty, price float64) *domain.OrderResult {
	op := "LimitBuy"
	filters := e.filtersOrDegraded(ctx, op, symbol)

	rounded, err := format.Quantity(qty, filters)
	if err != nil {
		return domain.FailedOrder(domain.ErrorKindLocalValidation, err.Error())
	}
	limit := format.Price(price, filters)
	if limit <= 0 {
		return domain.FailedOrder(domain.ErrorKindLocalValidation, fmt.Sprintf("invalid limit price %s", format.Render(price)))
	}
	if err := format.CheckNotional(rounded, limit, filters); err != nil {
		e.logger.Warn(ctx, op+": notional below minimum, not submitting", map[string]interface{}{
			"symbol":   symbol,
			"quantity": rounded,
			"price":    limit,
		})
		return domain.FailedOrder(domain.ErrorKindLocalValidation, err.Error())
	}

	resp, err := e.exchange.PlaceLimitOrder(ctx, symbol, domain.Buy, format.Render(rounded), format.Render(limit), e.cfg.NewClientOrderID())
	if err != nil {
		kind := ClassifyError(err)
		e.logger.Error(ctx, err, op+": order failed", map[string]interface{}{
			"symbol": symbol, "quantity": rounded, "price": limit, "kind": kind,
		})
		return domain.FailedOrder(kind, err.Error())
	}
	result := resultFromResponse(resp)
	result.Quantity = rounded
	e.logger.Info(ctx, op+": order placed", map[string]interface{}{
		"symbol": symbol, "order_id": result.OrderID, "quantity": rounded, "price": limit, "status": result.Status,
	})
	return result
}

// OrderStatus fetches the current state of an order.
func (e *Executor) OrderStatus(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: order id %q", ports.ErrInvalidRequest, orderID)
	}
	return e.exchange.GetOrder(ctx, symbol, id)
}

// CancelResult describes the outcome of CancelOrder.
type CancelResult struct {
	Canceled    bool // cancel request accepted by the exchange
	NotNeeded   bool // order was already terminal, no cancel sent
	Status      domain.OrderStatus
	ExecutedQty float64
	AvgPrice    float64
}

// CancelOrder cancels an order unless it is already terminal.
func (e *Executor) CancelOrder(ctx context.Context, symbol, orderID string) (*CancelResult, error) {
	op := "CancelOrder"
	current, err := e.OrderStatus(ctx, symbol, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s status lookup failed: %w", op, err)
	}
	if current.Status.IsTerminal() {
		e.logger.Info(ctx, op+": no cancel needed", map[string]interface{}{
			"symbol": symbol, "order_id": orderID, "status": current.Status,
		})
		return &CancelResult{NotNeeded: true, Status: current.Status, ExecutedQty: current.ExecutedQty, AvgPrice: current.AvgPrice()}, nil
	}

	resp, err := e.exchange.CancelOrder(ctx, symbol, current.OrderID)
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			// Filled or cancelled between the two calls.
			latest, lerr := e.exchange.GetOrder(ctx, symbol, current.OrderID)
			if lerr == nil {
				return &CancelResult{NotNeeded: true, Status: latest.Status, ExecutedQty: latest.ExecutedQty, AvgPrice: latest.AvgPrice()}, nil
			}
		}
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	e.logger.Info(ctx, op+": order canceled", map[string]interface{}{
		"symbol": symbol, "order_id": orderID, "executed_qty": resp.ExecutedQty,
	})
	return &CancelResult{Canceled: true, Status: resp.Status, ExecutedQty: resp.ExecutedQty, AvgPrice: resp.AvgPrice()}, nil
}

// CancelOCO cancels an OCO order list. A list that no longer exists is not an error.
func (e *Executor) CancelOCO(ctx context.Context, symbol, orderListID string) error {
	id, err := strconv.ParseInt(orderListID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: order list id %q", ports.ErrInvalidRequest, orderListID)
	}
	if err := e.exchange.CancelOCOOrder(ctx, symbol, id); err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			e.logger.Warn(ctx, "CancelOCO: order list already gone", map[string]interface{}{"symbol": symbol, "order_list_id": orderListID})
			return nil
		}
		return err
	}
	e.logger.Info(ctx, "CancelOCO: order list canceled", map[string]interface{}{"symbol": symbol, "order_list_id": orderListID})
	return nil
}

// OCOStatus returns the aggregate state of an OCO order list.
func (e *Executor) OCOStatus(ctx context.Context, symbol, orderListID string) (*domain.OCOStatus, error) {
	id, err := strconv.ParseInt(orderListID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: order list id %q", ports.ErrInvalidRequest, orderListID)
	}
	return e.exchange.GetOCOStatus(ctx, symbol, id)
}

// FindOpenOCO returns the order-list id of an open OCO for symbol, if any.
func (e *Executor) FindOpenOCO(ctx context.Context, symbol string) (string, bool, error) {
	orders, err := e.exchange.GetOpenOrders(ctx, symbol)
	if err != nil {
		return "", false, err
	}
	for _, o := range orders {
		if o.OrderListID > 0 {
			return strconv.FormatInt(o.OrderListID, 10), true, nil
		}
	}
	return "", false, nil
}

// ClassifyError maps an exchange error to an ErrorKind.
func ClassifyError(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return domain.ErrorKindNone
	case errors.Is(err, ports.ErrInsufficientFunds):
		return domain.ErrorKindInsufficientBalance
	case errors.Is(err, ports.ErrFilterFailure):
		return domain.ErrorKindFilterFailure
	case errors.Is(err, ports.ErrInvalidRequest), errors.Is(err, ports.ErrSymbolNotFound):
		return domain.ErrorKindInvalidParameters
	case errors.Is(err, ports.ErrQuantityTooSmall), errors.Is(err, ports.ErrBelowMinNotional):
		return domain.ErrorKindLocalValidation
	case ports.IsTransient(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.ErrorKindTransient
	default:
		return domain.ErrorKindRejected
	}
}

// resultFromResponse converts an order response, averaging across fills.
func resultFromResponse(resp *ports.OrderResponse) *domain.OrderResult {
	result := &domain.OrderResult{
		Success:        true,
		OrderID:        strconv.FormatInt(resp.OrderID, 10),
		Status:         resp.Status,
		FilledQuantity: resp.ExecutedQty,
		Raw:            resp,
	}

	if len(resp.Fills) > 0 {
		qty, quote, commission := decimal.Zero, decimal.Zero, decimal.Zero
		for _, f := range resp.Fills {
			q := decimal.NewFromFloat(f.Quantity)
			qty = qty.Add(q)
			quote = quote.Add(q.Mul(decimal.NewFromFloat(f.Price)))
			commission = commission.Add(decimal.NewFromFloat(f.Commission))
		}
		if qty.IsPositive() {
			result.FilledPrice, _ = quote.Div(qty).Truncate(12).Float64()
		}
		if result.FilledQuantity == 0 {
			result.FilledQuantity, _ = qty.Float64()
		}
		result.Commission, _ = commission.Float64()
		return result
	}

	if avg := resp.AvgPrice(); avg > 0 {
		result.FilledPrice = avg
	} else if resp.ExecutedQty > 0 {
		result.FilledPrice = resp.Price
	}
	return result
}
