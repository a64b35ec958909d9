package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/reconcile"
	"cryptoSpotBot/internal/watcher"
)

// CycleReport summarises one RunCycle.
type CycleReport struct {
	Reconciled      int
	Closed          int // positions closed or removed by reconciliation
	ReconcileFailed int
	Scanned         int
	Signals         int
	Entered         int
	Failed          int
	Symbols         []string
}

// errEntryRejected marks a signal that risk or sizing turned down.
var errEntryRejected = errors.New("entry rejected")

// RunCycle reconciles open positions, then scans every unpositioned
// watchlist symbol for an entry. A failing position or symbol is logged and
// skipped; the cycle only fails when every reconciled position and every
// scanned symbol failed, or on cancellation.
func (b *Bot) RunCycle(ctx context.Context) (*CycleReport, error) {
	op := "RunCycle"
	report := &CycleReport{}

	outcomes := b.reconciler.ReconcileAll(ctx)
	report.Reconciled = len(outcomes)
	var lastErr error
	for _, o := range outcomes {
		if o.Err != nil {
			report.ReconcileFailed++
			lastErr = o.Err
		}
		switch o.Action {
		case reconcile.ActionClosed, reconcile.ActionRemoved, reconcile.ActionFallbackExit:
			report.Closed++
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	symbols := b.resolveWatchlist(ctx)
	report.Symbols = symbols
	b.mu.Lock()
	b.lastSymbols = symbols
	b.mu.Unlock()

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if b.ledger.HasPosition(symbol) {
			continue
		}
		if err := b.risk.CheckPortfolioLimits(ctx, len(b.ledger.Symbols())); err != nil {
			b.logger.Info(ctx, op+": portfolio full, scan stopped", map[string]interface{}{"reason": err.Error()})
			break
		}

		report.Scanned++
		entered, signaled, err := b.scanSymbol(ctx, symbol)
		if signaled {
			report.Signals++
		}
		if entered {
			report.Entered++
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			report.Failed++
			lastErr = err
			b.logger.Error(ctx, err, op+": symbol failed", map[string]interface{}{"symbol": symbol})
		}
	}

	b.logger.Info(ctx, op+": cycle complete", map[string]interface{}{
		"reconciled": report.Reconciled,
		"closed":     report.Closed,
		"rec_failed": report.ReconcileFailed,
		"scanned":    report.Scanned,
		"signals":    report.Signals,
		"entered":    report.Entered,
		"failed":     report.Failed,
	})
	attempts := report.Reconciled + report.Scanned
	if failures := report.ReconcileFailed + report.Failed; attempts > 0 && failures == attempts {
		return report, fmt.Errorf("all %d reconciled positions and %d scanned symbols failed, last: %w",
			report.ReconcileFailed, report.Failed, lastErr)
	}
	return report, nil
}

// scanSymbol runs klines, indicators, strategy, risk and entry for one symbol.
func (b *Bot) scanSymbol(ctx context.Context, symbol string) (entered, signaled bool, err error) {
	op := "scanSymbol"
	klines, err := b.market.GetKlines(ctx, symbol, b.cfg.Timeframe, b.cfg.KlineLimit)
	if err != nil {
		return false, false, fmt.Errorf("klines for %s: %w", symbol, err)
	}
	if len(klines) < b.strategy.RequiredDataPoints() {
		b.logger.Debug(ctx, op+": not enough history", map[string]interface{}{
			"symbol": symbol, "klines": len(klines), "required": b.strategy.RequiredDataPoints(),
		})
		return false, false, nil
	}

	price, err := b.market.GetPrice(ctx, symbol)
	if err != nil || price <= 0 {
		price = klines[len(klines)-1].Close
		b.logger.Debug(ctx, op+": price unavailable, using last close", map[string]interface{}{"symbol": symbol, "price": price})
	}

	ind, err := b.indicators.Calculate(ctx, symbol, klines)
	if err != nil {
		return false, false, fmt.Errorf("indicators for %s: %w", symbol, err)
	}

	signal := b.strategy.Analyze(ctx, &domain.MarketData{
		Symbol:       symbol,
		CurrentPrice: price,
		Klines:       klines,
		Indicators:   ind,
		Timestamp:    b.now(),
	})
	if signal == nil {
		return false, false, nil
	}
	if signal.Symbol == "" {
		signal.Symbol = symbol
	}
	b.logger.Info(ctx, op+": signal generated", map[string]interface{}{
		"symbol":      symbol,
		"strategy":    signal.StrategyName,
		"price":       signal.Price,
		"confidence":  signal.Confidence,
		"stop_loss":   signal.StopLoss,
		"take_profit": signal.TakeProfit,
	})

	err = b.processSignal(ctx, signal)
	switch {
	case errors.Is(err, errEntryRejected):
		return false, true, nil
	case err != nil:
		return false, true, err
	}
	return true, true, nil
}

// resolveWatchlist returns the symbols to scan: the watchlist file when it
// lists any, otherwise the configured symbols.
func (b *Bot) resolveWatchlist(ctx context.Context) []string {
	op := "resolveWatchlist"
	if b.cfg.RefreshWatchlist && b.watcher != nil && b.cfg.WatchlistFile != "" {
		if _, err := b.watcher.Refresh(ctx, b.cfg.WatchlistFile); err != nil {
			b.logger.Warn(ctx, op+": watchlist refresh failed, using last file", map[string]interface{}{"error": err.Error()})
		}
	}

	if b.cfg.WatchlistFile != "" {
		list, err := watcher.LoadWatchlist(b.cfg.WatchlistFile)
		switch {
		case err == nil && len(list.Symbols) > 0:
			symbols := normalizeSymbols(list.SymbolNames())
			if limit := b.cfg.WatchlistMaxSymbols; limit > 0 && len(symbols) > limit {
				symbols = symbols[:limit]
			}
			return symbols
		case err != nil && !errors.Is(err, os.ErrNotExist):
			b.logger.Warn(ctx, op+": watchlist unreadable, using configured symbols", map[string]interface{}{
				"path": b.cfg.WatchlistFile, "error": err.Error(),
			})
		}
	}
	return normalizeSymbols(b.cfg.Symbols)
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
