package indicators

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the indicator key, e.g. EMA_26
func (m *MovingAverage) Name() string {
	return keyed(string(m.config.Type), m.Config.Period)
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.calculateSMA(klines)
	case ExponentialMovingAverage:
		return m.calculateEMA(klines)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// calculateSMA computes the Simple Moving Average
func (m *MovingAverage) calculateSMA(klines []*domain.Kline) (float64, error) {
	if m.Config.Period <= 0 || len(klines) < m.Config.Period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(klines), m.Config.Period)
	}
	return mean(domain.Closes(klines[len(klines)-m.Config.Period:])), nil
}

// calculateEMA computes the Exponential Moving Average
func (m *MovingAverage) calculateEMA(klines []*domain.Kline) (float64, error) {
	series := emaSeries(domain.Closes(klines), m.Config.Period)
	if len(series) == 0 {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(klines), m.Config.Period)
	}
	return series[len(series)-1], nil
}
