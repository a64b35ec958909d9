package risk

import (
	"context"
	"errors"
	"fmt"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/format"
	"cryptoSpotBot/internal/ports"
)

// RiskConfig holds configuration for risk management.
// Percentages are expressed in percent (2 means 2%).
type RiskConfig struct {
	MinBalance              float64 // Quote balance below which no trade is opened
	RiskPerTradePercent     float64 // Share of balance lost if the stop is hit
	FallbackPositionPercent float64 // Share of balance spent when a signal has no stop
	MaxPositionSize         float64 // Maximum base quantity per position, 0 disables
	MaxTradeValuePercent    float64 // Maximum trade value as share of balance
	MinTradeNotional        float64 // Lower clamp for the trade value
	MaxTradeNotional        float64 // Upper clamp for the trade value, 0 disables
	MinRiskReward           float64 // Optional reward/risk floor, 0 disables
	StopLossPercent         float64 // Default stop distance below entry
	TakeProfitPercent       float64 // Default target distance above entry
	MaxOpenPositions        int     // 0 disables
}

// Rejection reasons returned by Assess.
var (
	ErrBalanceTooLow      = errors.New("balance below minimum")
	ErrZeroSize           = errors.New("position size is zero")
	ErrSizeAboveMax       = errors.New("position size above maximum")
	ErrTradeValueAboveCap = errors.New("trade value above balance cap")
	ErrInvalidLevels      = errors.New("stop loss / take profit ordering invalid")
	ErrRiskRewardTooLow   = errors.New("risk:reward below minimum")
	ErrTooManyPositions   = errors.New("maximum open positions reached")
)

// RiskManager validates signals and sizes positions. It has no side effects
// beyond logging.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger
}

// NewRiskManager creates a new risk manager instance.
func NewRiskManager(config RiskConfig, logger ports.Logger) (*RiskManager, error) {
	if logger == nil {
		return nil, errors.New("logger is required for risk manager")
	}
	if config.RiskPerTradePercent <= 0 || config.RiskPerTradePercent > 100 {
		return nil, fmt.Errorf("%w: risk per trade must be in (0, 100], got %v", ports.ErrConfigurationError, config.RiskPerTradePercent)
	}
	if config.MaxTradeValuePercent <= 0 || config.MaxTradeValuePercent > 100 {
		return nil, fmt.Errorf("%w: max trade value percent must be in (0, 100], got %v", ports.ErrConfigurationError, config.MaxTradeValuePercent)
	}
	if config.MaxTradeNotional > 0 && config.MaxTradeNotional < config.MinTradeNotional {
		return nil, fmt.Errorf("%w: max trade notional below min trade notional", ports.ErrConfigurationError)
	}
	return &RiskManager{config: config, logger: logger}, nil
}

// ValidateTrade approves or rejects a signal.
func (r *RiskManager) ValidateTrade(ctx context.Context, signal *domain.TradingSignal, balance float64, filters *domain.SymbolFilters) bool {
	_, err := r.Assess(ctx, signal, balance, filters)
	return err == nil
}

// Assess runs the validation gates in order and returns the approved size or
// the first failing gate.
func (r *RiskManager) Assess(ctx context.Context, signal *domain.TradingSignal, balance float64, filters *domain.SymbolFilters) (float64, error) {
	op := "ValidateTrade"
	fields := map[string]interface{}{
		"symbol":      signal.Symbol,
		"balance":     balance,
		"entry":       signal.Price,
		"stop_loss":   signal.StopLoss,
		"take_profit": signal.TakeProfit,
	}
	reject := func(err error) (float64, error) {
		fields["reason"] = err.Error()
		r.logger.Info(ctx, op+": trade rejected", fields)
		return 0, err
	}

	if balance < r.config.MinBalance {
		return reject(fmt.Errorf("%w: %.2f < %.2f", ErrBalanceTooLow, balance, r.config.MinBalance))
	}

	size := r.CalculatePositionSize(ctx, signal, balance, filters)
	fields["size"] = size
	if size <= 0 {
		return reject(ErrZeroSize)
	}
	if r.config.MaxPositionSize > 0 && size > r.config.MaxPositionSize {
		return reject(fmt.Errorf("%w: %v > %v", ErrSizeAboveMax, size, r.config.MaxPositionSize))
	}

	value := size * signal.Price
	valueCap := balance * r.config.MaxTradeValuePercent / 100
	fields["trade_value"] = value
	if value > valueCap {
		return reject(fmt.Errorf("%w: %.2f > %.2f", ErrTradeValueAboveCap, value, valueCap))
	}

	if signal.StopLoss > 0 || signal.TakeProfit > 0 {
		if !(signal.StopLoss < signal.Price && signal.Price < signal.TakeProfit) {
			return reject(ErrInvalidLevels)
		}
	}

	if r.config.MinRiskReward > 0 {
		rr := signal.RiskReward()
		fields["risk_reward"] = rr
		if rr < r.config.MinRiskReward {
			return reject(fmt.Errorf("%w: %.2f < %.2f", ErrRiskRewardTooLow, rr, r.config.MinRiskReward))
		}
	}

	r.logger.Info(ctx, op+": trade approved", fields)
	return size, nil
}

// CalculatePositionSize returns the base quantity to buy, or 0 when the
// exchange minimum notional cannot be met with the available balance.
func (r *RiskManager) CalculatePositionSize(ctx context.Context, signal *domain.TradingSignal, balance float64, filters *domain.SymbolFilters) float64 {
	entry := signal.Price
	if entry <= 0 || balance <= 0 {
		return 0
	}

	var size float64
	if signal.StopLoss > 0 && signal.StopLoss < entry {
		riskAmount := balance * r.config.RiskPerTradePercent / 100
		size = riskAmount / (entry - signal.StopLoss)
	} else {
		size = balance * r.config.FallbackPositionPercent / 100 / entry
	}
	if adj := signal.VolatilityAdjustment; adj > 0 && adj != 1 {
		size *= adj
	}

	notional := size * entry
	if r.config.MinTradeNotional > 0 && notional < r.config.MinTradeNotional {
		notional = r.config.MinTradeNotional
	}
	if r.config.MaxTradeNotional > 0 && notional > r.config.MaxTradeNotional {
		notional = r.config.MaxTradeNotional
	}
	size = notional / entry

	rounded, err := format.Quantity(size, filters)
	if err != nil {
		rounded = 0
	}

	if filters != nil && format.CheckNotional(rounded, entry, filters) != nil {
		need := format.MinQuantityForNotional(entry, filters)
		if need*entry <= balance {
			r.logger.Debug(ctx, "CalculatePositionSize: bumped to exchange minimum notional", map[string]interface{}{
				"symbol": signal.Symbol, "from": rounded, "to": need, "min_notional": filters.MinNotional,
			})
			return need
		}
		r.logger.Info(ctx, "CalculatePositionSize: minimum notional not affordable", map[string]interface{}{
			"symbol": signal.Symbol, "required_quote": need * entry, "balance": balance,
		})
		return 0
	}
	return rounded
}

// CheckPortfolioLimits rejects a new position when the open-position cap is reached.
func (r *RiskManager) CheckPortfolioLimits(ctx context.Context, openPositions int) error {
	if r.config.MaxOpenPositions > 0 && openPositions >= r.config.MaxOpenPositions {
		return fmt.Errorf("%w: %d open, max %d", ErrTooManyPositions, openPositions, r.config.MaxOpenPositions)
	}
	return nil
}

// GetStopLoss returns the default stop for a long entered at entryPrice.
func (r *RiskManager) GetStopLoss(entryPrice float64) float64 {
	return entryPrice * (1 - r.config.StopLossPercent/100)
}

// GetTakeProfit returns the default target for a long entered at entryPrice.
func (r *RiskManager) GetTakeProfit(entryPrice float64) float64 {
	return entryPrice * (1 + r.config.TakeProfitPercent/100)
}

// ApplyDefaultLevels fills a missing stop or target from the configured percentages.
func (r *RiskManager) ApplyDefaultLevels(signal *domain.TradingSignal) {
	if signal.StopLoss <= 0 && r.config.StopLossPercent > 0 {
		signal.StopLoss = r.GetStopLoss(signal.Price)
	}
	if signal.TakeProfit <= 0 && r.config.TakeProfitPercent > 0 {
		signal.TakeProfit = r.GetTakeProfit(signal.Price)
	}
}
