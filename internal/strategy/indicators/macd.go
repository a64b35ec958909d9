package indicators

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
)

// MACDConfig holds the fast/slow/signal periods.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

// MACDResult is the latest MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD implements Moving Average Convergence Divergence.
type MACD struct {
	config MACDConfig
}

// NewMACD creates a MACD indicator, defaulting to 12/26/9.
func NewMACD(config MACDConfig) *MACD {
	if config.Fast <= 0 {
		config.Fast = 12
	}
	if config.Slow <= 0 {
		config.Slow = 26
	}
	if config.Signal <= 0 {
		config.Signal = 9
	}
	return &MACD{config: config}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) RequiredDataPoints() int {
	return m.config.Slow + m.config.Signal - 1
}

// Calculate returns the MACD line value.
func (m *MACD) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	res, err := m.Compute(klines)
	if err != nil {
		return 0, err
	}
	return res.MACD, nil
}

// Compute returns all three MACD values for the latest kline.
func (m *MACD) Compute(klines []*domain.Kline) (MACDResult, error) {
	if len(klines) < m.RequiredDataPoints() {
		return MACDResult{}, fmt.Errorf("not enough data (%d) to calculate MACD, need %d", len(klines), m.RequiredDataPoints())
	}
	closes := domain.Closes(klines)
	fast := emaSeries(closes, m.config.Fast)
	slow := emaSeries(closes, m.config.Slow)

	// Align the fast series with the slow one.
	offset := len(fast) - len(slow)
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	signal := emaSeries(line, m.config.Signal)
	res := MACDResult{
		MACD:   line[len(line)-1],
		Signal: signal[len(signal)-1],
	}
	res.Histogram = res.MACD - res.Signal
	return res, nil
}
