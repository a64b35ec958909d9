package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/format"
)

// processSignal sizes, buys, records and protects a new position.
func (b *Bot) processSignal(ctx context.Context, signal *domain.TradingSignal) error {
	op := "processSignal"
	symbol := signal.Symbol
	b.risk.ApplyDefaultLevels(signal)

	balance, err := b.trader.FreeBalance(ctx, b.cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("%s balance lookup: %w", b.cfg.QuoteAsset, err)
	}
	filters, err := b.trader.Filters(ctx, symbol)
	if err != nil {
		return fmt.Errorf("filters for %s: %w", symbol, err)
	}
	size, err := b.risk.Assess(ctx, signal, balance, filters)
	if err != nil {
		return fmt.Errorf("%w: %v", errEntryRejected, err)
	}

	fill := b.buy(ctx, symbol, size)
	if !fill.Success || fill.FilledQuantity <= 0 {
		b.notifyError(ctx, fmt.Sprintf("Entry for %s failed: %s", symbol, fill.ErrorMessage))
		return fmt.Errorf("entry order for %s failed (%s): %s", symbol, fill.ErrorKind, fill.ErrorMessage)
	}
	entryPrice := fill.FilledPrice
	if entryPrice <= 0 {
		entryPrice = signal.Price
	}

	pos := &domain.Position{
		Symbol:       symbol,
		Quantity:     fill.FilledQuantity,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		EntryTime:    b.now(),
		StopLoss:     signal.StopLoss,
		TakeProfit:   signal.TakeProfit,
	}
	if err := b.ledger.AddPosition(ctx, pos); err != nil {
		b.notifyError(ctx, fmt.Sprintf("Bought %s %s but could not record the position: %v",
			format.Render(fill.FilledQuantity), symbol, err))
		return fmt.Errorf("record position %s: %w", symbol, err)
	}
	b.logger.Info(ctx, op+": position opened", map[string]interface{}{
		"symbol":      symbol,
		"quantity":    pos.Quantity,
		"entry_price": pos.EntryPrice,
		"stop_loss":   pos.StopLoss,
		"take_profit": pos.TakeProfit,
		"commission":  fill.Commission,
	})

	// The entry stands without its OCO; reconciliation's price check covers it.
	if err := b.protect(ctx, pos); err != nil {
		b.logger.Warn(ctx, op+": position open without exit protection", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
	}

	if err := b.notifier.SendSignalNotification(ctx, signal); err != nil {
		b.logger.Warn(ctx, op+": signal notification failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}
	return nil
}

// protect places the OCO exit for a position. Failure leaves the position
// unprotected; reconciliation's price check still applies.
func (b *Bot) protect(ctx context.Context, pos *domain.Position) error {
	op := "protect"
	if pos.StopLoss <= 0 || pos.TakeProfit <= 0 {
		b.logger.Warn(ctx, op+": no exit levels, position left unprotected", map[string]interface{}{"symbol": pos.Symbol})
		return fmt.Errorf("no exit levels for %s", pos.Symbol)
	}
	res := b.trader.ExecuteOCO(ctx, pos.Symbol, pos.Quantity, pos.StopLoss, pos.TakeProfit)
	if !res.Success {
		b.logger.Warn(ctx, op+": OCO placement failed, position unprotected", map[string]interface{}{
			"symbol": pos.Symbol,
			"kind":   res.ErrorKind,
			"error":  res.ErrorMessage,
		})
		b.notifyError(ctx, fmt.Sprintf("OCO for %s failed (%s): %s", pos.Symbol, res.ErrorKind, res.ErrorMessage))
		return fmt.Errorf("OCO for %s failed (%s): %s", pos.Symbol, res.ErrorKind, res.ErrorMessage)
	}
	if res.Quantity > 0 && res.Quantity < pos.Quantity {
		if err := b.ledger.UpdatePositionData(pos.Symbol, res.Quantity, pos.EntryPrice); err != nil {
			b.logger.Error(ctx, err, op+": failed to record clamped quantity", map[string]interface{}{"symbol": pos.Symbol})
		}
	}
	if err := b.ledger.UpdatePositionOCOID(pos.Symbol, res.OrderID); err != nil {
		b.logger.Error(ctx, err, op+": failed to record OCO id", map[string]interface{}{
			"symbol": pos.Symbol, "order_list_id": res.OrderID,
		})
		return err
	}
	return nil
}

// buy acquires size of symbol with the configured entry order type.
func (b *Bot) buy(ctx context.Context, symbol string, size float64) *domain.OrderResult {
	if b.cfg.EntryOrderType == EntryLimit {
		return b.limitFill(ctx, symbol, size)
	}
	return b.trader.MarketBuy(ctx, symbol, size)
}

// fills accumulates partial executions into one average.
type fills struct {
	qty, quote, commission decimal.Decimal
}

func (f *fills) add(qty, price, commission float64) {
	if qty <= 0 {
		return
	}
	q := decimal.NewFromFloat(qty)
	f.qty = f.qty.Add(q)
	f.quote = f.quote.Add(q.Mul(decimal.NewFromFloat(price)))
	f.commission = f.commission.Add(decimal.NewFromFloat(commission))
}

func (f *fills) remaining(size float64) float64 {
	out, _ := decimal.NewFromFloat(size).Sub(f.qty).Float64()
	return out
}

func (f *fills) avgPrice() float64 {
	if !f.qty.IsPositive() {
		return 0
	}
	out, _ := f.quote.Div(f.qty).Truncate(12).Float64()
	return out
}

func (f *fills) result() *domain.OrderResult {
	if !f.qty.IsPositive() {
		return domain.FailedOrder(domain.ErrorKindRejected, "limit entry filled nothing")
	}
	qty, _ := f.qty.Float64()
	price := f.avgPrice()
	commission, _ := f.commission.Float64()
	return &domain.OrderResult{
		Success:        true,
		Status:         domain.OrderStatusFilled,
		Quantity:       qty,
		FilledQuantity: qty,
		FilledPrice:    price,
		Commission:     commission,
	}
}

// limitFill places a limit buy below the live price, waits, and re-prices
// from the latest market price on each attempt. Partial fills accumulate.
// Whatever is unfilled after the last attempt is bought at market, unless an
// order could not be cancelled and may still be working.
func (b *Bot) limitFill(ctx context.Context, symbol string, size float64) *domain.OrderResult {
	op := "limitFill"
	acc := &fills{}
	fallback := true

	for attempt := 1; attempt <= b.cfg.LimitMaxAttempts; attempt++ {
		remaining := acc.remaining(size)
		if remaining <= 0 {
			break
		}
		price, err := b.market.GetPrice(ctx, symbol)
		if err != nil || price <= 0 {
			b.logger.Warn(ctx, op+": price unavailable, falling back to market", map[string]interface{}{"symbol": symbol, "attempt": attempt})
			break
		}
		limit, _ := decimal.NewFromFloat(price).
			Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(b.cfg.LimitOffsetPct).Div(decimal.NewFromInt(100)))).
			Float64()
		fields := map[string]interface{}{
			"symbol":    symbol,
			"attempt":   attempt,
			"market":    price,
			"limit":     limit,
			"remaining": remaining,
		}

		placed := b.trader.LimitBuy(ctx, symbol, remaining, limit)
		if !placed.Success {
			fields["error"] = placed.ErrorMessage
			b.logger.Warn(ctx, op+": limit order not placed", fields)
			break
		}
		if placed.Status == domain.OrderStatusFilled {
			acc.add(placed.FilledQuantity, placed.FilledPrice, placed.Commission)
			b.logger.Info(ctx, op+": filled on placement", fields)
			return acc.result()
		}

		if err := b.sleep(ctx, b.cfg.LimitWait); err != nil {
			// Shutting down: pull the order and keep what already filled.
			b.cancelAndCollect(context.WithoutCancel(ctx), symbol, placed.OrderID, acc)
			return acc.result()
		}

		status, err := b.trader.OrderStatus(ctx, symbol, placed.OrderID)
		if err == nil && status.Status == domain.OrderStatusFilled {
			acc.add(status.ExecutedQty, status.AvgPrice(), 0)
			b.logger.Info(ctx, op+": limit order filled", fields)
			return acc.result()
		}

		if !b.cancelAndCollect(ctx, symbol, placed.OrderID, acc) {
			fallback = false
			break
		}
		b.logger.Info(ctx, op+": limit order not filled, repricing", map[string]interface{}{
			"symbol": symbol, "attempt": attempt, "filled_so_far": acc.qty.String(),
		})
	}

	remaining := acc.remaining(size)
	if !fallback || remaining <= 0 {
		return acc.result()
	}
	if acc.qty.IsPositive() {
		filters := b.filtersOrNil(ctx, symbol)
		rounded, err := format.Quantity(remaining, filters)
		if err != nil || format.CheckNotional(rounded, acc.avgPrice(), filters) != nil {
			b.logger.Info(ctx, op+": remainder below tradable size, keeping partial fill", map[string]interface{}{
				"symbol": symbol, "remaining": remaining,
			})
			return acc.result()
		}
	}

	b.logger.Info(ctx, op+": falling back to market order", map[string]interface{}{"symbol": symbol, "remaining": remaining})
	market := b.trader.MarketBuy(ctx, symbol, remaining)
	if market.Success {
		acc.add(market.FilledQuantity, market.FilledPrice, market.Commission)
	} else if !acc.qty.IsPositive() {
		return market
	}
	return acc.result()
}

// cancelAndCollect cancels an entry order and adds any partial fill. It
// reports false when the order's state is unknown.
func (b *Bot) cancelAndCollect(ctx context.Context, symbol, orderID string, acc *fills) bool {
	res, err := b.trader.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		b.logger.Error(ctx, err, "limitFill: cancel failed, not buying more", map[string]interface{}{
			"symbol": symbol, "order_id": orderID,
		})
		return false
	}
	acc.add(res.ExecutedQty, res.AvgPrice, 0)
	return true
}

func (b *Bot) filtersOrNil(ctx context.Context, symbol string) *domain.SymbolFilters {
	f, err := b.trader.Filters(ctx, symbol)
	if err != nil {
		return nil
	}
	return f
}
