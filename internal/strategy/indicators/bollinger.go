package indicators

import (
	"context"
	"fmt"
	"math"

	"cryptoSpotBot/internal/domain"
)

// BollingerConfig holds the SMA period and the band width in standard deviations.
type BollingerConfig struct {
	IndicatorConfig
	StdDev float64
}

// BollingerBands is the latest band set.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
	// Width is (upper - lower) / middle.
	Width float64
}

// Position locates price within the bands: 0 at the lower band, 1 at the upper.
func (b BollingerBands) Position(price float64) float64 {
	if b.Upper == b.Lower {
		return 0.5
	}
	return (price - b.Lower) / (b.Upper - b.Lower)
}

// Bollinger implements Bollinger Bands over closes.
type Bollinger struct {
	BaseIndicator
	config BollingerConfig
}

// NewBollinger creates a Bollinger indicator, defaulting to 20 periods and 2 deviations.
func NewBollinger(config BollingerConfig) *Bollinger {
	if config.Period <= 0 {
		config.Period = 20
	}
	if config.StdDev <= 0 {
		config.StdDev = 2
	}
	return &Bollinger{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}, config: config}
}

func (b *Bollinger) Name() string { return "BB" }

// Calculate returns the band width.
func (b *Bollinger) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	bands, err := b.Compute(klines)
	if err != nil {
		return 0, err
	}
	return bands.Width, nil
}

// Compute returns the bands for the latest kline using the population deviation.
func (b *Bollinger) Compute(klines []*domain.Kline) (BollingerBands, error) {
	period := b.config.Period
	if len(klines) < period {
		return BollingerBands{}, fmt.Errorf("not enough data (%d) to calculate Bollinger Bands for period %d", len(klines), period)
	}
	window := domain.Closes(klines[len(klines)-period:])
	middle := mean(window)
	variance := 0.0
	for _, c := range window {
		variance += (c - middle) * (c - middle)
	}
	sd := math.Sqrt(variance / float64(period))

	bands := BollingerBands{
		Upper:  middle + b.config.StdDev*sd,
		Middle: middle,
		Lower:  middle - b.config.StdDev*sd,
	}
	if middle != 0 {
		bands.Width = (bands.Upper - bands.Lower) / middle
	}
	return bands, nil
}
