package indicators

import (
	"context"
	"fmt"
	"math"
	"sort"

	"cryptoSpotBot/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
	// Lookback is the number of recent ATR values used for the ratio and percentile.
	Lookback int
}

// ATR implements the Average True Range indicator
type ATR struct {
	BaseIndicator
	config ATRConfig
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	if config.Lookback <= 0 {
		config.Lookback = 50
	}
	return &ATR{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints needs one extra kline for the first previous close
func (a *ATR) RequiredDataPoints() int {
	return a.config.Period + 1
}

// Calculate computes the Average True Range value for the given klines
func (a *ATR) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	series, err := a.Series(klines)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns the Wilder-smoothed ATR for every kline from index period-1 on.
func (a *ATR) Series(klines []*domain.Kline) ([]float64, error) {
	period := a.config.Period
	if period <= 0 || len(klines) < period+1 {
		return nil, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(klines))
	}

	trueRanges := make([]float64, len(klines))

	// First TR is just the high-low range
	trueRanges[0] = klines[0].High - klines[0].Low

	for i := 1; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. |Current High - Previous Close|
		// 3. |Current Low - Previous Close|
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)

		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	// First ATR is simple average of first 'period' true ranges,
	// then Wilder's smoothing for the rest.
	atr := mean(trueRanges[:period])
	series := make([]float64, 0, len(klines)-period+1)
	series = append(series, atr)
	for i := period; i < len(klines); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		series = append(series, atr)
	}
	return series, nil
}

// Ratio divides the latest ATR by the mean of the last Lookback ATR values.
// A ratio of 1 means volatility is at its recent average.
func (a *ATR) Ratio(series []float64) float64 {
	window := tail(series, a.config.Lookback)
	avg := mean(window)
	if avg <= 0 {
		return 1
	}
	return series[len(series)-1] / avg
}

// Percentile ranks the latest ATR among the last Lookback values (0-100).
// Ties count half, so a flat series ranks at 50.
func (a *ATR) Percentile(series []float64) float64 {
	window := tail(series, a.config.Lookback)
	if len(window) == 0 {
		return 50
	}
	current := window[len(window)-1]
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)
	below := sort.SearchFloat64s(sorted, current)
	equal := 0
	for i := below; i < len(sorted) && sorted[i] == current; i++ {
		equal++
	}
	return (float64(below) + 0.5*float64(equal)) / float64(len(window)) * 100
}

func tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
