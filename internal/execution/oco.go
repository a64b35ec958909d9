package execution

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/format"
	"cryptoSpotBot/internal/ports"
)

// ocoStep is a state of the OCO submission state machine.
type ocoStep int

const (
	ocoSubmit ocoStep = iota
	ocoRecover
	ocoDone
	ocoFailed
)

func (s ocoStep) String() string {
	switch s {
	case ocoSubmit:
		return "submit"
	case ocoRecover:
		return "recover"
	case ocoDone:
		return "done"
	case ocoFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ocoRun carries the mutable state of one ExecuteOCO call.
type ocoRun struct {
	symbol    string
	asset     string
	filters   *domain.SymbolFilters
	quantity  float64
	price     float64
	stop      float64
	stopLimit float64
	retries   int
	attempts  int
	backoff   *backoff.Backoff
	result    *domain.OrderResult
}

// ExecuteOCO protects a long position with a sell OCO: a take-profit limit at
// limitPrice and a stop-limit triggered at stopPrice.
//
// Quantities are checked against the free base-asset balance first. A balance
// inside the tolerance band clamps the quantity; anything lower aborts without
// a network call. An insufficient-balance rejection is retried once after
// re-reading the balance; other rejections are returned as they are.
func (e *Executor) ExecuteOCO(ctx context.Context, symbol string, qty, stopPrice, limitPrice float64) *domain.OrderResult {
	op := "ExecuteOCO"
	filters := e.filtersOrDegraded(ctx, op, symbol)

	run := &ocoRun{
		symbol:  symbol,
		asset:   e.BaseAsset(ctx, symbol),
		filters: filters,
		retries: e.cfg.MaxOCORetries,
		backoff: &backoff.Backoff{
			Min:    e.cfg.RetryDelay,
			Max:    e.cfg.RetryDelay * 4,
			Factor: 2,
		},
	}

	rounded, err := format.Quantity(qty, filters)
	if err != nil {
		e.logger.Warn(ctx, op+": quantity rejected locally", map[string]interface{}{
			"symbol": symbol, "requested": qty, "error": err.Error(),
		})
		return domain.FailedOrder(domain.ErrorKindLocalValidation, err.Error())
	}
	run.quantity = rounded
	run.price = format.Price(limitPrice, filters)
	run.stop = format.Price(stopPrice, filters)
	stopLimit, _ := decimal.NewFromFloat(run.stop).
		Mul(decimal.NewFromFloat(1 - e.cfg.StopLimitOffsetPct)).Float64()
	run.stopLimit = format.Price(stopLimit, filters)

	e.logger.Info(ctx, op+": formatted order values", map[string]interface{}{
		"symbol":           symbol,
		"raw_quantity":     qty,
		"quantity":         run.quantity,
		"raw_stop":         stopPrice,
		"stop":             run.stop,
		"stop_limit":       run.stopLimit,
		"raw_limit":        limitPrice,
		"limit":            run.price,
		"stop_offset_pct":  e.cfg.StopLimitOffsetPct,
		"filters_degraded": filters == nil,
	})

	if run.stop <= 0 || run.stopLimit <= 0 || run.price <= run.stop {
		msg := fmt.Sprintf("invalid OCO prices: stop %s, stop-limit %s, limit %s",
			format.Render(run.stop), format.Render(run.stopLimit), format.Render(run.price))
		e.logger.Warn(ctx, op+": "+msg, map[string]interface{}{"symbol": symbol})
		return domain.FailedOrder(domain.ErrorKindLocalValidation, msg)
	}

	if res := e.preflightBalance(ctx, run); res != nil {
		return res
	}

	if err := format.CheckNotional(run.quantity, run.stopLimit, filters); err != nil {
		e.logger.Warn(ctx, op+": stop-limit leg below minimum notional", map[string]interface{}{
			"symbol": symbol, "quantity": run.quantity, "stop_limit": run.stopLimit,
		})
		return domain.FailedOrder(domain.ErrorKindLocalValidation, err.Error())
	}

	return e.runOCO(ctx, run)
}

// preflightBalance compares the free balance with the rounded quantity.
// It returns a failed result to abort, or nil to continue (possibly clamped).
func (e *Executor) preflightBalance(ctx context.Context, run *ocoRun) *domain.OrderResult {
	op := "ExecuteOCO"
	available, err := e.FreeBalance(ctx, run.asset)
	if err != nil {
		e.logger.Error(ctx, err, op+": balance lookup failed, not submitting", map[string]interface{}{
			"symbol": run.symbol, "asset": run.asset,
		})
		return domain.FailedOrder(ClassifyError(err), fmt.Sprintf("balance lookup failed: %v", err))
	}

	tolerance := e.tolerance(run.quantity)
	fields := map[string]interface{}{
		"symbol":    run.symbol,
		"asset":     run.asset,
		"required":  run.quantity,
		"available": available,
		"tolerance": tolerance,
		"shortfall": run.quantity - available,
	}

	switch {
	case available >= run.quantity:
		e.logger.Debug(ctx, op+": balance check passed", fields)
		return nil
	case available >= run.quantity-tolerance:
		clamped, err := format.Quantity(available, run.filters)
		if err != nil {
			e.logger.Warn(ctx, op+": balance within tolerance but not tradable", fields)
			return domain.FailedOrder(domain.ErrorKindLocalValidation, err.Error())
		}
		fields["clamped"] = clamped
		e.logger.Info(ctx, op+": balance within tolerance, clamping quantity", fields)
		run.quantity = clamped
		return nil
	default:
		e.logger.Warn(ctx, op+": insufficient balance, not submitting", fields)
		return domain.FailedOrder(domain.ErrorKindInsufficientBalance, fmt.Sprintf(
			"insufficient %s balance: available %s, required %s (tolerance %s)",
			run.asset, format.Render(available), format.Render(run.quantity), format.Render(tolerance)))
	}
}

func (e *Executor) tolerance(qty float64) float64 {
	return math.Max(e.cfg.BalanceToleranceAbs, qty*e.cfg.BalanceTolerancePct)
}

// runOCO drives submit -> recover -> submit until done or failed.
func (e *Executor) runOCO(ctx context.Context, run *ocoRun) *domain.OrderResult {
	step := ocoSubmit
	for {
		switch step {
		case ocoSubmit:
			step = e.submitOCO(ctx, run)
		case ocoRecover:
			step = e.recoverOCO(ctx, run)
		case ocoDone, ocoFailed:
			return run.result
		}
	}
}

func (e *Executor) submitOCO(ctx context.Context, run *ocoRun) ocoStep {
	op := "ExecuteOCO"
	run.attempts++
	req := ports.OCORequest{
		Symbol:            run.symbol,
		Side:              domain.Sell,
		Quantity:          format.Render(run.quantity),
		Price:             format.Render(run.price),
		StopPrice:         format.Render(run.stop),
		StopLimitPrice:    format.Render(run.stopLimit),
		ListClientOrderID: e.cfg.NewClientOrderID(),
	}
	e.logger.Info(ctx, op+": submitting OCO", map[string]interface{}{
		"symbol":     run.symbol,
		"attempt":    run.attempts,
		"quantity":   req.Quantity,
		"limit":      req.Price,
		"stop":       req.StopPrice,
		"stop_limit": req.StopLimitPrice,
	})

	resp, err := e.exchange.PlaceOCOOrder(ctx, req)
	if err == nil {
		run.result = &domain.OrderResult{
			Success:  true,
			OrderID:  strconv.FormatInt(resp.OrderListID, 10),
			Status:   domain.OrderStatusNew,
			Quantity: run.quantity,
			Raw:      resp,
		}
		e.logger.Info(ctx, op+": OCO placed", map[string]interface{}{
			"symbol": run.symbol, "order_list_id": resp.OrderListID, "quantity": run.quantity, "attempt": run.attempts,
		})
		return ocoDone
	}

	kind := ClassifyError(err)
	fields := map[string]interface{}{
		"symbol":          run.symbol,
		"attempt":         run.attempts,
		"kind":            kind,
		"quantity":        run.quantity,
		"retries_left":    run.retries,
		"diagnosis":       diagnose(kind),
		"stop":            run.stop,
		"limit":           run.price,
		"stop_limit":      run.stopLimit,
		"filters_present": run.filters != nil,
	}
	if kind == domain.ErrorKindInsufficientBalance && run.retries > 0 {
		run.retries--
		e.logger.Warn(ctx, op+": exchange reported insufficient balance, will retry", fields)
		return ocoRecover
	}

	e.logger.Error(ctx, err, op+": OCO rejected", fields)
	run.result = domain.FailedOrder(kind, err.Error())
	run.result.Quantity = run.quantity
	return ocoFailed
}

func (e *Executor) recoverOCO(ctx context.Context, run *ocoRun) ocoStep {
	op := "ExecuteOCO"
	delay := run.backoff.Duration()
	if err := e.sleep(ctx, delay); err != nil {
		run.result = domain.FailedOrder(domain.ErrorKindTransient, fmt.Sprintf("OCO retry aborted: %v", err))
		return ocoFailed
	}

	available, err := e.FreeBalance(ctx, run.asset)
	if err != nil {
		e.logger.Error(ctx, err, op+": balance re-query failed", map[string]interface{}{"symbol": run.symbol, "asset": run.asset})
		run.result = domain.FailedOrder(domain.ErrorKindTransient, fmt.Sprintf("balance re-query failed: %v", err))
		return ocoFailed
	}

	buffered := available * (1 - e.cfg.RetryBufferPct)
	fields := map[string]interface{}{
		"symbol":     run.symbol,
		"asset":      run.asset,
		"delay":      delay.String(),
		"available":  available,
		"buffer_pct": e.cfg.RetryBufferPct,
		"buffered":   buffered,
		"previous":   run.quantity,
	}
	if buffered <= 0 {
		e.logger.Warn(ctx, op+": no balance left to protect", fields)
		run.result = domain.FailedOrder(domain.ErrorKindInsufficientBalance,
			fmt.Sprintf("no free %s balance after retry delay", run.asset))
		return ocoFailed
	}

	qty, err := format.Quantity(math.Min(buffered, run.quantity), run.filters)
	if err != nil {
		fields["error"] = err.Error()
		e.logger.Warn(ctx, op+": recovered balance not tradable", fields)
		run.result = domain.FailedOrder(domain.ErrorKindInsufficientBalance, err.Error())
		return ocoFailed
	}
	fields["quantity"] = qty
	e.logger.Info(ctx, op+": retrying with recovered balance", fields)
	run.quantity = qty
	return ocoSubmit
}

func diagnose(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorKindInsufficientBalance:
		return "free balance lower than order quantity; a recent fill may not have settled"
	case domain.ErrorKindFilterFailure:
		return "quantity or price violates LOT_SIZE/PRICE_FILTER/NOTIONAL; check rounding against symbol filters"
	case domain.ErrorKindInvalidParameters:
		return "malformed request; check price ordering (limit > last > stop) and symbol"
	case domain.ErrorKindTransient:
		return "network or exchange availability problem"
	default:
		return "rejected by exchange"
	}
}
