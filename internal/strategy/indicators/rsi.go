package indicators

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the indicator key, e.g. RSI_14
func (r *RSI) Name() string {
	return keyed("RSI", r.Config.Period)
}

// RequiredDataPoints needs one extra kline for the first price change
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI value using Wilder's smoothing method
func (r *RSI) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	if r.Config.Period <= 0 || len(klines) <= r.Config.Period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(klines), r.Config.Period)
	}

	return rsiFromCloses(domain.Closes(klines), r.Config.Period), nil
}

// rsiFromCloses applies Wilder's smoothing over close-to-close changes.
func rsiFromCloses(closes []float64, period int) float64 {
	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}

	// Calculate initial average gain and loss
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Calculate smoothed average gain and loss using Wilder's smoothing
	for i := period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(period-1) + changes[i]) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - changes[i]) / float64(period)
		}
	}

	// Handle edge cases
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100 // Max RSI if only gains
	}

	// Calculate RSI
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	// Ensure RSI is within bounds
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}

	return rsi
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
