package indicators

import (
	"context"
	"fmt"
	"math"

	"cryptoSpotBot/internal/domain"
)

// ADXConfig holds configuration for the Average Directional Index.
type ADXConfig struct {
	IndicatorConfig
}

// ADX measures trend strength (0-100) regardless of direction. Smoothing is a
// plain EMA seeded with the first value, which reacts faster than Wilder's.
type ADX struct {
	BaseIndicator
}

// NewADX creates an ADX indicator, defaulting to 14 periods.
func NewADX(config ADXConfig) *ADX {
	if config.Period <= 0 {
		config.Period = 14
	}
	return &ADX{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

func (a *ADX) Name() string { return "ADX" }

func (a *ADX) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate returns the latest ADX value.
func (a *ADX) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	if len(klines) < a.RequiredDataPoints() {
		return 0, fmt.Errorf("not enough data (%d) to calculate ADX for period %d", len(klines), a.Config.Period)
	}
	n := len(klines) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < len(klines); i++ {
		cur, prev := klines[i], klines[i-1]
		tr[i-1] = math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	period := a.Config.Period
	atr := seededEMA(tr, period)
	plusS := seededEMA(plusDM, period)
	minusS := seededEMA(minusDM, period)

	dx := make([]float64, n)
	for i := range dx {
		safe := math.Max(atr[i], 1e-10)
		plusDI := 100 * plusS[i] / safe
		minusDI := 100 * minusS[i] / safe
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI + 1e-10)
	}
	adx := seededEMA(dx, period)
	return adx[len(adx)-1], nil
}

// seededEMA is an EMA whose first value is the first input.
func seededEMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
