package domain

import "time"

// Indicators maps indicator names to their latest value.
type Indicators map[string]float64

// Get returns the indicator value or def when missing.
func (i Indicators) Get(name string, def float64) float64 {
	if v, ok := i[name]; ok {
		return v
	}
	return def
}

// Has reports whether all names are present.
func (i Indicators) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := i[n]; !ok {
			return false
		}
	}
	return true
}

// MarketData is the input a strategy analyzes for one symbol.
type MarketData struct {
	Symbol       string
	CurrentPrice float64
	Klines       []*Kline
	Indicators   Indicators
	Timestamp    time.Time
}

// TradingSignal is an entry recommendation produced by a strategy.
// It is consumed once and never persisted.
type TradingSignal struct {
	Symbol              string
	Direction           OrderSide
	Price               float64
	Confidence          float64 // 0..1
	StopLoss            float64
	TakeProfit          float64
	StrategyName        string
	CoreConditionsCount int
	Indicators          Indicators
	// VolatilityAdjustment scales the risk-based position size (1.0 = unchanged).
	VolatilityAdjustment float64
	Timestamp            time.Time
}

// RiskReward returns reward/risk, or 0 when the stop is not below the entry.
func (s *TradingSignal) RiskReward() float64 {
	risk := s.Price - s.StopLoss
	if s.StopLoss <= 0 || risk <= 0 || s.TakeProfit <= 0 {
		return 0
	}
	return (s.TakeProfit - s.Price) / risk
}
