// Package reconcile aligns the local position ledger with the order state
// reported by the exchange.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

// Ledger is the position store being reconciled.
type Ledger interface {
	Symbols() []string
	GetPosition(symbol string) (*domain.Position, error)
	UpdatePosition(symbol string, currentPrice float64) error
	UpdatePositionOCOID(symbol, ocoOrderID string) error
	UpdateTrailingStop(symbol string, price, percent float64) (bool, error)
	ClosePosition(ctx context.Context, symbol string, exitPrice float64, reason domain.CloseReason) (*domain.Trade, error)
	RemovePosition(ctx context.Context, symbol string) error
}

// Orders is the order-side capability, normally an *execution.Executor.
type Orders interface {
	OCOStatus(ctx context.Context, symbol, orderListID string) (*domain.OCOStatus, error)
	FindOpenOCO(ctx context.Context, symbol string) (string, bool, error)
	CancelOCO(ctx context.Context, symbol, orderListID string) error
	MarketSell(ctx context.Context, symbol string, qty float64) *domain.OrderResult
	BaseAsset(ctx context.Context, symbol string) string
	FreeBalance(ctx context.Context, asset string) (float64, error)
}

// PriceSource returns the latest price of a symbol.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Action is what a reconciliation pass did to a position.
type Action string

const (
	ActionNone         Action = "none"          // position stays open
	ActionNotFound     Action = "not_found"     // nothing to reconcile
	ActionClosed       Action = "closed"        // OCO executed on the exchange
	ActionRemoved      Action = "removed"       // OCO gone without execution, protection lost
	ActionAdoptedOCO   Action = "adopted_oco"   // open OCO found and recorded
	ActionUnprotected  Action = "unprotected"   // no OCO on the exchange
	ActionFallbackExit Action = "fallback_exit" // market sell after stop/target crossed
)

// State names the position state before the pass.
type State string

const (
	StateOpenWithOCO    State = "OPEN_WITH_OCO"
	StateOpenWithoutOCO State = "OPEN_WITHOUT_OCO"
)

// Outcome reports one position's reconciliation.
type Outcome struct {
	Symbol   string
	State    State
	OCOState domain.OCOState
	Action   Action
	Price    float64
	Trade    *domain.Trade
	Err      error
}

// Config wires a Reconciler. Journal and Notifier are optional.
type Config struct {
	Ledger   Ledger
	Orders   Orders
	Prices   PriceSource
	Journal  ports.TradeJournal
	Notifier ports.Notifier
	Logger   ports.Logger
	// TrailingStopPercent enables the trailing stop when positive.
	TrailingStopPercent float64
}

// Reconciler runs the per-position state machine.
type Reconciler struct {
	cfg    Config
	logger ports.Logger
}

// NewReconciler validates cfg.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Ledger == nil || cfg.Orders == nil || cfg.Prices == nil {
		return nil, errors.New("ledger, orders and price source are required for reconciler")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required for reconciler")
	}
	if cfg.TrailingStopPercent < 0 {
		return nil, fmt.Errorf("%w: trailing stop percent must not be negative", ports.ErrConfigurationError)
	}
	return &Reconciler{cfg: cfg, logger: cfg.Logger}, nil
}

// ReconcileAll reconciles every open position. A failure on one position does
// not stop the others.
func (r *Reconciler) ReconcileAll(ctx context.Context) []Outcome {
	symbols := r.cfg.Ledger.Symbols()
	outcomes := make([]Outcome, 0, len(symbols))
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, r.ReconcilePosition(ctx, symbol))
	}
	return outcomes
}

// ReconcilePosition runs one pass for symbol. Exits are only taken on
// exchange-reported state, so running it twice never exits twice.
func (r *Reconciler) ReconcilePosition(ctx context.Context, symbol string) Outcome {
	op := "ReconcilePosition"
	out := Outcome{Symbol: symbol, Action: ActionNone}

	pos, err := r.cfg.Ledger.GetPosition(symbol)
	if err != nil {
		out.Action = ActionNotFound
		if !errors.Is(err, ports.ErrPositionNotFound) {
			out.Err = err
		}
		return out
	}

	r.refreshPrice(ctx, pos, &out)

	out.State = StateOpenWithoutOCO
	if pos.IsProtected() {
		out.State = StateOpenWithOCO
		if done := r.checkOCO(ctx, pos, &out); done {
			return out
		}
	}
	// checkOCO clears an OCO id the exchange no longer knows.
	if !pos.IsProtected() {
		if err := r.adoptOCO(ctx, pos, &out); err != nil {
			return out
		}
	}

	r.fallbackExit(ctx, pos, &out)
	if out.Err != nil {
		r.logger.Error(ctx, out.Err, op+": reconciliation incomplete", map[string]interface{}{"symbol": symbol})
	}
	return out
}

func (r *Reconciler) refreshPrice(ctx context.Context, pos *domain.Position, out *Outcome) {
	price, err := r.cfg.Prices.GetPrice(ctx, pos.Symbol)
	if err != nil || price <= 0 {
		r.logger.Warn(ctx, "ReconcilePosition: price unavailable, skipping price-based checks", map[string]interface{}{
			"symbol": pos.Symbol, "error": fmt.Sprint(err),
		})
		return
	}
	out.Price = price
	pos.CurrentPrice = price
	if err := r.cfg.Ledger.UpdatePosition(pos.Symbol, price); err != nil {
		r.logger.Error(ctx, err, "ReconcilePosition: failed to store current price", map[string]interface{}{"symbol": pos.Symbol})
	}

	if r.cfg.TrailingStopPercent <= 0 {
		return
	}
	changed, err := r.cfg.Ledger.UpdateTrailingStop(pos.Symbol, price, r.cfg.TrailingStopPercent)
	if err != nil {
		r.logger.Error(ctx, err, "ReconcilePosition: failed to update trailing stop", map[string]interface{}{"symbol": pos.Symbol})
		return
	}
	if changed {
		if latest, err := r.cfg.Ledger.GetPosition(pos.Symbol); err == nil {
			pos.TrailingStop = latest.TrailingStop
			r.logger.Debug(ctx, "ReconcilePosition: trailing stop raised", map[string]interface{}{
				"symbol": pos.Symbol, "trailing_stop": *pos.TrailingStop, "price": price,
			})
		}
	}
}

// checkOCO applies the exchange-reported OCO state. It returns true when the
// pass is finished for this position.
func (r *Reconciler) checkOCO(ctx context.Context, pos *domain.Position, out *Outcome) bool {
	op := "ReconcilePosition"
	ocoID := *pos.OCOOrderID
	status, err := r.cfg.Orders.OCOStatus(ctx, pos.Symbol, ocoID)
	if errors.Is(err, ports.ErrOrderNotFound) {
		// Not a lookup hiccup: the list is unknown or aged out of the order
		// history, so this id will never resolve.
		r.logger.Warn(ctx, op+": OCO not found on exchange, clearing it", map[string]interface{}{
			"symbol": pos.Symbol, "oco_order_id": ocoID, "error": err.Error(),
		})
		if err := r.cfg.Ledger.UpdatePositionOCOID(pos.Symbol, ""); err != nil {
			out.Err = err
			return true
		}
		pos.OCOOrderID = nil
		return false
	}
	if err != nil {
		r.logger.Warn(ctx, op+": OCO status unavailable, leaving position open", map[string]interface{}{
			"symbol": pos.Symbol, "oco_order_id": ocoID, "error": err.Error(),
		})
		out.Err = err
		return true
	}
	out.OCOState = status.State

	switch {
	case status.Executed():
		r.closeFromOCO(ctx, pos, status, out)
		return true
	case status.State == domain.OCOStateCanceled, status.State == domain.OCOStateRejected, status.State == domain.OCOStateExpired:
		r.protectionLost(ctx, pos, status, out)
		return true
	case status.Active():
		r.logger.Debug(ctx, op+": OCO still active", map[string]interface{}{
			"symbol": pos.Symbol, "oco_order_id": ocoID, "state": status.State,
		})
		return false
	default:
		r.logger.Warn(ctx, op+": unrecognized OCO state, leaving position open", map[string]interface{}{
			"symbol": pos.Symbol, "oco_order_id": ocoID, "state": status.State,
		})
		return true
	}
}

func (r *Reconciler) closeFromOCO(ctx context.Context, pos *domain.Position, status *domain.OCOStatus, out *Outcome) {
	exit := status.FilledPrice
	if exit <= 0 {
		exit = pos.CurrentPrice
	}
	trade, err := r.cfg.Ledger.ClosePosition(ctx, pos.Symbol, exit, closeReasonForExit(pos, exit))
	if err != nil {
		out.Err = err
		return
	}
	out.Action = ActionClosed
	out.Trade = trade
	r.logger.Info(ctx, "ReconcilePosition: OCO executed on exchange, position closed", map[string]interface{}{
		"symbol":        pos.Symbol,
		"oco_order_id":  *pos.OCOOrderID,
		"state":         status.State,
		"exit_price":    exit,
		"reported_fill": status.FilledPrice,
		"pnl":           trade.PNL,
	})
	r.recordTrade(ctx, trade)
}

func (r *Reconciler) protectionLost(ctx context.Context, pos *domain.Position, status *domain.OCOStatus, out *Outcome) {
	if err := r.cfg.Ledger.RemovePosition(ctx, pos.Symbol); err != nil {
		out.Err = err
		return
	}
	out.Action = ActionRemoved
	r.logger.Warn(ctx, "ReconcilePosition: exit protection lost, OCO ended without execution; position removed", map[string]interface{}{
		"symbol":       pos.Symbol,
		"oco_order_id": *pos.OCOOrderID,
		"state":        status.State,
		"quantity":     pos.Quantity,
	})
	r.notifyError(ctx, fmt.Sprintf("%s: exit protection lost (OCO %s %s); position removed from ledger, holdings untouched",
		pos.Symbol, *pos.OCOOrderID, status.State))
}

// adoptOCO looks for an open OCO of an unprotected position.
func (r *Reconciler) adoptOCO(ctx context.Context, pos *domain.Position, out *Outcome) error {
	op := "ReconcilePosition"
	id, found, err := r.cfg.Orders.FindOpenOCO(ctx, pos.Symbol)
	if err != nil {
		r.logger.Warn(ctx, op+": open orders unavailable, leaving position open", map[string]interface{}{
			"symbol": pos.Symbol, "error": err.Error(),
		})
		out.Err = err
		return err
	}
	if !found {
		out.Action = ActionUnprotected
		r.logger.Warn(ctx, op+": position has no exit protection, relying on price checks", map[string]interface{}{
			"symbol": pos.Symbol, "stop_loss": pos.StopLoss, "take_profit": pos.TakeProfit,
		})
		return nil
	}
	if err := r.cfg.Ledger.UpdatePositionOCOID(pos.Symbol, id); err != nil {
		out.Err = err
		return err
	}
	pos.OCOOrderID = &id
	out.Action = ActionAdoptedOCO
	r.logger.Info(ctx, op+": adopted open OCO", map[string]interface{}{"symbol": pos.Symbol, "oco_order_id": id})
	return nil
}

// fallbackExit sells at market when the price crossed the stop or target.
func (r *Reconciler) fallbackExit(ctx context.Context, pos *domain.Position, out *Outcome) {
	op := "FallbackExit"
	price := out.Price
	if price <= 0 {
		return
	}
	reason, hit := exitTrigger(pos, price)
	if !hit {
		return
	}

	fields := map[string]interface{}{
		"symbol":        pos.Symbol,
		"price":         price,
		"stop_loss":     pos.StopLoss,
		"take_profit":   pos.TakeProfit,
		"trailing_stop": derefOr(pos.TrailingStop, 0),
		"reason":        reason,
	}
	r.logger.Info(ctx, op+": exit level crossed", fields)

	if pos.IsProtected() {
		ocoID := *pos.OCOOrderID
		if err := r.cfg.Orders.CancelOCO(ctx, pos.Symbol, ocoID); err != nil {
			r.logger.Error(ctx, err, op+": could not cancel OCO, not selling", fields)
			out.Err = err
			return
		}
		// The OCO may have executed between the status check and the cancel.
		status, err := r.cfg.Orders.OCOStatus(ctx, pos.Symbol, ocoID)
		if err != nil {
			r.logger.Warn(ctx, op+": OCO state unknown after cancel, not selling", fields)
			out.Err = err
			return
		}
		if status.Executed() {
			r.closeFromOCO(ctx, pos, status, out)
			return
		}
		if err := r.cfg.Ledger.UpdatePositionOCOID(pos.Symbol, ""); err != nil {
			r.logger.Error(ctx, err, op+": failed to clear OCO id", fields)
		}
	}

	qty := pos.Quantity
	asset := r.cfg.Orders.BaseAsset(ctx, pos.Symbol)
	if free, err := r.cfg.Orders.FreeBalance(ctx, asset); err == nil {
		fields["free_balance"] = free
		if free <= 0 {
			r.logger.Warn(ctx, op+": no free balance to sell, removing position", fields)
			if err := r.cfg.Ledger.RemovePosition(ctx, pos.Symbol); err != nil {
				out.Err = err
				return
			}
			out.Action = ActionRemoved
			r.notifyError(ctx, fmt.Sprintf("%s: %s hit but no %s balance was left to sell; position removed", pos.Symbol, reason, asset))
			return
		}
		qty = math.Min(qty, free)
	}

	res := r.cfg.Orders.MarketSell(ctx, pos.Symbol, qty)
	if !res.Success {
		out.Err = fmt.Errorf("%s market sell failed (%s): %s", op, res.ErrorKind, res.ErrorMessage)
		r.notifyError(ctx, fmt.Sprintf("%s: %s exit failed: %s", pos.Symbol, reason, res.ErrorMessage))
		return
	}

	exit := res.FilledPrice
	if exit <= 0 {
		exit = price
	}
	trade, err := r.cfg.Ledger.ClosePosition(ctx, pos.Symbol, exit, reason)
	if err != nil {
		out.Err = err
		return
	}
	out.Action = ActionFallbackExit
	out.Trade = trade
	fields["exit_price"] = exit
	fields["pnl"] = trade.PNL
	r.logger.Info(ctx, op+": position closed at market", fields)
	r.recordTrade(ctx, trade)
}

// exitTrigger reports whether price crossed the effective stop or target.
func exitTrigger(pos *domain.Position, price float64) (domain.CloseReason, bool) {
	stop := pos.StopLoss
	reason := domain.CloseReasonStopLoss
	if pos.TrailingStop != nil && *pos.TrailingStop > stop {
		stop = *pos.TrailingStop
		reason = domain.CloseReasonTrailingStop
	}
	if stop > 0 && price <= stop {
		return reason, true
	}
	if pos.TakeProfit > 0 && price >= pos.TakeProfit {
		return domain.CloseReasonTakeProfit, true
	}
	return "", false
}

func closeReasonForExit(pos *domain.Position, exit float64) domain.CloseReason {
	switch {
	case pos.TakeProfit > 0 && exit >= pos.TakeProfit*0.995:
		return domain.CloseReasonTakeProfit
	case pos.StopLoss > 0 && exit <= pos.StopLoss*1.005:
		return domain.CloseReasonStopLoss
	default:
		return domain.CloseReasonOCOFilled
	}
}

func (r *Reconciler) recordTrade(ctx context.Context, trade *domain.Trade) {
	if r.cfg.Journal != nil {
		if err := r.cfg.Journal.RecordTrade(ctx, trade); err != nil {
			r.logger.Error(ctx, err, "Failed to journal closed trade", map[string]interface{}{"trade_id": trade.ID})
		}
	}
	if r.cfg.Notifier != nil {
		if err := r.cfg.Notifier.SendTradeNotification(ctx, trade); err != nil {
			r.logger.Warn(ctx, "Trade notification failed", map[string]interface{}{"trade_id": trade.ID, "error": err.Error()})
		}
	}
}

func (r *Reconciler) notifyError(ctx context.Context, msg string) {
	if r.cfg.Notifier == nil {
		return
	}
	if err := r.cfg.Notifier.SendErrorNotification(ctx, msg); err != nil {
		r.logger.Warn(ctx, "Error notification failed", map[string]interface{}{"error": err.Error()})
	}
}

func derefOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
