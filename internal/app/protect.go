package app

import (
	"context"
	"sort"
)

// ProtectOutcome reports what ProtectOpenPositions did for one position.
type ProtectOutcome struct {
	Symbol     string
	StopLoss   float64
	TakeProfit float64
	Protected  bool // an OCO was placed (always false on a dry run)
	Err        error
}

// ProtectOpenPositions places OCO exits for ledger positions that have none.
// Reconciliation runs first, so OCOs already on the exchange are adopted
// rather than duplicated. Positions without recorded levels get the risk
// manager's default stop and target. With dryRun nothing is submitted.
func (b *Bot) ProtectOpenPositions(ctx context.Context, dryRun bool) []ProtectOutcome {
	op := "ProtectOpenPositions"
	b.reconciler.ReconcileAll(ctx)

	positions := b.ledger.GetPositions()
	symbols := make([]string, 0, len(positions))
	for symbol, pos := range positions {
		if !pos.IsProtected() {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	outcomes := make([]ProtectOutcome, 0, len(symbols))
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		pos := positions[symbol]
		if pos.StopLoss <= 0 {
			pos.StopLoss = b.risk.GetStopLoss(pos.EntryPrice)
		}
		if pos.TakeProfit <= 0 {
			pos.TakeProfit = b.risk.GetTakeProfit(pos.EntryPrice)
		}
		out := ProtectOutcome{Symbol: symbol, StopLoss: pos.StopLoss, TakeProfit: pos.TakeProfit}

		if dryRun {
			b.logger.Info(ctx, op+": dry run, OCO not placed", map[string]interface{}{
				"symbol": symbol, "quantity": pos.Quantity, "stop_loss": pos.StopLoss, "take_profit": pos.TakeProfit,
			})
			outcomes = append(outcomes, out)
			continue
		}

		out.Err = b.protect(ctx, pos)
		out.Protected = out.Err == nil
		outcomes = append(outcomes, out)
	}
	return outcomes
}
