package strategy

import (
	"fmt"
	"strings"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

// Kind selects a strategy implementation.
type Kind string

const (
	KindQualityGated Kind = "quality_gated"
	KindAdaptiveATR  Kind = "adaptive_atr"
)

// ParseKind validates a configured strategy name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindQualityGated, KindAdaptiveATR:
		return k, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want %s or %s)", s, KindQualityGated, KindAdaptiveATR)
	}
}

// New creates the strategy for kind. The choice is made once at startup.
func New(kind Kind, logger ports.Logger) (ports.Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	switch kind {
	case KindQualityGated:
		return NewQualityGated(logger), nil
	case KindAdaptiveATR:
		return NewAdaptiveATR(logger), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}

// condition is one named entry check, kept for the rejection log.
type condition struct {
	name   string
	passed bool
}

func countPassed(conds []condition) int {
	n := 0
	for _, c := range conds {
		if c.passed {
			n++
		}
	}
	return n
}

func conditionFields(conds []condition) map[string]interface{} {
	fields := make(map[string]interface{}, len(conds))
	for _, c := range conds {
		fields[c.name] = c.passed
	}
	return fields
}

// newSignal builds a BUY signal carrying a copy of the indicator snapshot.
func newSignal(data *domain.MarketData, name string, confidence, stopLoss, takeProfit float64, core int) *domain.TradingSignal {
	snapshot := make(domain.Indicators, len(data.Indicators))
	for k, v := range data.Indicators {
		snapshot[k] = v
	}
	return &domain.TradingSignal{
		Symbol:               data.Symbol,
		Direction:            domain.Buy,
		Price:                data.CurrentPrice,
		Confidence:           confidence,
		StopLoss:             stopLoss,
		TakeProfit:           takeProfit,
		StrategyName:         name,
		CoreConditionsCount:  core,
		Indicators:           snapshot,
		VolatilityAdjustment: 1.0,
		Timestamp:            data.Timestamp,
	}
}

// pctAbove returns how far a is above b in percent.
func pctAbove(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return (a - b) / b * 100
}
