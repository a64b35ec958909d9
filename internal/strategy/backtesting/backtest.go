// Package backtesting replays a strategy over historical klines with the live
// risk sizing and OCO-style exits. Fills are idealised: entries at the signal
// bar's close, exits exactly at the stop or target.
package backtesting

import (
	"context"
	"errors"
	"fmt"

	"cryptoSpotBot/internal/analytics"
	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/risk"
)

// IndicatorSource computes the indicator snapshot for a window of klines.
type IndicatorSource interface {
	Calculate(ctx context.Context, symbol string, klines []*domain.Kline) (domain.Indicators, error)
}

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Symbol       string
	InitialFunds float64
	Window       int     // Klines handed to the strategy per bar, like the live KLINE_LIMIT
	FeeRate      float64 // Per leg, as a fraction of notional (0.001 = 0.1%)
	Filters      *domain.SymbolFilters
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Signals  int
	Rejected int // signals turned down by risk
	Trades   []*domain.Trade
	Metrics  *analytics.PerformanceMetrics
}

type openPosition struct {
	pos  *domain.Position
	fees float64
}

// Backtest walks klines bar by bar. While a position is open each bar is
// checked against its levels, stop first when both are inside the bar's
// range. A position still open at the end is closed at the last close.
func Backtest(ctx context.Context, strat ports.Strategy, ind IndicatorSource, riskMgr *risk.RiskManager, klines []*domain.Kline, config BacktestConfig) (*BacktestResult, error) {
	if strat == nil || ind == nil || riskMgr == nil {
		return nil, errors.New("strategy, indicators and risk manager are required")
	}
	if config.InitialFunds <= 0 {
		return nil, fmt.Errorf("%w: initial funds must be positive", ports.ErrConfigurationError)
	}
	required := strat.RequiredDataPoints()
	if len(klines) <= required {
		return nil, fmt.Errorf("not enough data points for strategy: have %d, need more than %d", len(klines), required)
	}
	window := config.Window
	if window < required {
		window = required
	}

	result := &BacktestResult{}
	balance := config.InitialFunds
	var open *openPosition

	closeAt := func(k *domain.Kline, exit float64, reason domain.CloseReason) {
		p := open.pos
		fees := open.fees + exit*p.Quantity*config.FeeRate
		pnl := (exit-p.EntryPrice)*p.Quantity - fees
		balance += p.EntryPrice*p.Quantity + pnl
		result.Trades = append(result.Trades, &domain.Trade{
			ID:          fmt.Sprintf("%s_%d", p.Symbol, k.OpenTime.Unix()),
			Symbol:      p.Symbol,
			Direction:   domain.Buy,
			Quantity:    p.Quantity,
			EntryPrice:  p.EntryPrice,
			ExitPrice:   exit,
			EntryTime:   p.EntryTime,
			ExitTime:    k.OpenTime,
			Status:      domain.TradeStatusClosed,
			PNL:         pnl,
			CloseReason: reason,
		})
		open = nil
	}

	for i := required; i < len(klines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := klines[i]

		if open != nil {
			p := open.pos
			switch {
			case bar.Low <= p.StopLoss:
				closeAt(bar, p.StopLoss, domain.CloseReasonStopLoss)
			case bar.High >= p.TakeProfit:
				closeAt(bar, p.TakeProfit, domain.CloseReasonTakeProfit)
			}
			// No re-entry on the bar that closed a position.
			continue
		}

		start := i + 1 - window
		if start < 0 {
			start = 0
		}
		history := klines[start : i+1]
		indicators, err := ind.Calculate(ctx, config.Symbol, history)
		if err != nil {
			continue
		}
		signal := strat.Analyze(ctx, &domain.MarketData{
			Symbol:       config.Symbol,
			CurrentPrice: bar.Close,
			Klines:       history,
			Indicators:   indicators,
			Timestamp:    bar.CloseTime,
		})
		if signal == nil {
			continue
		}
		result.Signals++
		signal.Symbol = config.Symbol
		signal.Price = bar.Close
		riskMgr.ApplyDefaultLevels(signal)

		size, err := riskMgr.Assess(ctx, signal, balance, config.Filters)
		if err != nil {
			result.Rejected++
			continue
		}
		fee := bar.Close * size * config.FeeRate
		balance -= bar.Close*size + fee
		open = &openPosition{
			pos: &domain.Position{
				Symbol:       config.Symbol,
				Quantity:     size,
				EntryPrice:   bar.Close,
				CurrentPrice: bar.Close,
				EntryTime:    bar.OpenTime,
				StopLoss:     signal.StopLoss,
				TakeProfit:   signal.TakeProfit,
			},
			fees: fee,
		}
	}

	if open != nil {
		last := klines[len(klines)-1]
		closeAt(last, last.Close, domain.CloseReasonManual)
	}

	result.Metrics = analytics.AnalyzePerformance(result.Trades, config.InitialFunds)
	return result, nil
}
