package indicators

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value for the given price data
	Calculate(ctx context.Context, klines []*domain.Kline) (float64, error)

	// RequiredDataPoints returns the minimum number of klines needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of klines needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// keyed appends the period to an indicator name, e.g. EMA_12.
func keyed(name string, period int) string {
	if period <= 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, period)
}

// emaSeries returns the EMA of values seeded with the SMA of the first period
// values. The result is aligned with values[period-1:].
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	k := 2.0 / float64(period+1)
	ema := seed
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
		out = append(out, ema)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
