package indicators

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
)

// VolumeRatio compares the latest volume with its simple average.
type VolumeRatio struct {
	BaseIndicator
}

// NewVolumeRatio creates the indicator, defaulting to a 20-period average.
func NewVolumeRatio(config IndicatorConfig) *VolumeRatio {
	if config.Period <= 0 {
		config.Period = 20
	}
	return &VolumeRatio{BaseIndicator: BaseIndicator{Config: config}}
}

func (v *VolumeRatio) Name() string { return "VOLUME_RATIO" }

// Calculate returns last volume / mean volume of the last Period klines,
// or 1 when the average is zero.
func (v *VolumeRatio) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	period := v.Config.Period
	if len(klines) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate volume ratio for period %d", len(klines), period)
	}
	window := klines[len(klines)-period:]
	total := 0.0
	for _, k := range window {
		total += k.Volume
	}
	avg := total / float64(period)
	if avg <= 0 {
		return 1, nil
	}
	return klines[len(klines)-1].Volume / avg, nil
}
