package strategy

import (
	"context"
	"math"
	"strings"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/strategy/indicators"
)

// MarketCondition classifies the regime the adaptive strategy trades in.
type MarketCondition string

const (
	TrendingHigh  MarketCondition = "trending_high_vol"
	TrendingMid   MarketCondition = "trending_medium_vol"
	TrendingLow   MarketCondition = "trending_low_vol"
	Consolidating MarketCondition = "consolidating"
	Volatile      MarketCondition = "volatile"
	Neutral       MarketCondition = "neutral"
)

func (c MarketCondition) trending() bool {
	return strings.HasPrefix(string(c), "trending")
}

// AdaptiveATRConfig holds the thresholds of the adaptive volatility strategy.
type AdaptiveATRConfig struct {
	MinATRPercentile float64
	MaxATRPercentile float64
	TrendingADX      float64
	ConsolidatingBB  float64 // max BB width for a consolidating market
	MinVolumeRatio   float64
	EntryRequired    int
	LowVolStop       float64 // ATR multipliers by percentile bucket
	MidVolStop       float64
	HighVolStop      float64
	TargetATR        float64
	MinRiskReward    float64
	MinConfidence    float64
}

// DefaultAdaptiveATRConfig returns the 4h adaptive parameters.
func DefaultAdaptiveATRConfig() AdaptiveATRConfig {
	return AdaptiveATRConfig{
		MinATRPercentile: 5,
		MaxATRPercentile: 95,
		TrendingADX:      25,
		ConsolidatingBB:  0.02,
		MinVolumeRatio:   1.2,
		EntryRequired:    4,
		LowVolStop:       1.0,
		MidVolStop:       1.5,
		HighVolStop:      2.0,
		TargetATR:        2.0,
		MinRiskReward:    1.5,
		MinConfidence:    0.65,
	}
}

// AdaptiveATR adapts entry bands, stop distance and position size to the
// current volatility percentile and market condition.
type AdaptiveATR struct {
	cfg    AdaptiveATRConfig
	logger ports.Logger
}

// NewAdaptiveATR creates the strategy with default parameters.
func NewAdaptiveATR(logger ports.Logger) *AdaptiveATR {
	return &AdaptiveATR{cfg: DefaultAdaptiveATRConfig(), logger: logger}
}

func (s *AdaptiveATR) Name() string { return "Adaptive ATR - 4H" }

// RequiredDataPoints covers the 50-period SMA.
func (s *AdaptiveATR) RequiredDataPoints() int { return 50 }

// Analyze returns a BUY signal or nil.
func (s *AdaptiveATR) Analyze(ctx context.Context, data *domain.MarketData) *domain.TradingSignal {
	if data == nil || data.CurrentPrice <= 0 {
		return nil
	}
	ind := data.Indicators
	if !ind.Has(indicators.KeyEMA12, indicators.KeyEMA26, indicators.KeyRSI14, indicators.KeyATR, indicators.KeyATRPercentile) {
		s.logger.Warn(ctx, "AdaptiveATR: missing critical indicators", map[string]interface{}{"symbol": data.Symbol})
		return nil
	}
	price := data.CurrentPrice
	pctl := ind.Get(indicators.KeyATRPercentile, 50)
	if pctl < s.cfg.MinATRPercentile || pctl > s.cfg.MaxATRPercentile {
		s.logger.Info(ctx, "AdaptiveATR: ATR percentile outside range", map[string]interface{}{
			"symbol": data.Symbol, "atrPercentile": pctl,
		})
		return nil
	}

	cond := s.Condition(ind)
	entry := s.entryConditions(price, cond, ind)
	count := countPassed(entry)
	if count < s.cfg.EntryRequired {
		fields := conditionFields(entry)
		fields["symbol"] = data.Symbol
		fields["condition"] = string(cond)
		fields["passed"] = count
		fields["required"] = s.cfg.EntryRequired
		s.logger.Info(ctx, "AdaptiveATR: entry conditions not met", fields)
		return nil
	}

	stopLoss, takeProfit := s.levels(price, pctl, cond, ind.Get(indicators.KeyATR, price*0.02))
	if stopLoss <= 0 || stopLoss >= price {
		s.logger.Info(ctx, "AdaptiveATR: stop distance exceeds price", map[string]interface{}{
			"symbol": data.Symbol, "stopLoss": stopLoss,
		})
		return nil
	}
	adjustment := VolatilityAdjustment(pctl)
	confidence := s.confidence(count, cond, pctl, ind.Get(indicators.KeyVolumeRatio, 1.0))
	if confidence < s.cfg.MinConfidence {
		s.logger.Info(ctx, "AdaptiveATR: confidence below threshold", map[string]interface{}{
			"symbol": data.Symbol, "confidence": confidence, "threshold": s.cfg.MinConfidence,
		})
		return nil
	}

	s.logger.Info(ctx, "AdaptiveATR: signal approved", map[string]interface{}{
		"symbol":               data.Symbol,
		"condition":            string(cond),
		"confidence":           confidence,
		"stopLoss":             stopLoss,
		"takeProfit":           takeProfit,
		"volatilityAdjustment": adjustment,
	})
	signal := newSignal(data, s.Name(), confidence, stopLoss, takeProfit, count)
	signal.VolatilityAdjustment = adjustment
	return signal
}

// Condition classifies the market from ADX, Bollinger width and ATR percentile.
func (s *AdaptiveATR) Condition(ind domain.Indicators) MarketCondition {
	adx := ind.Get(indicators.KeyADX, 20)
	width := ind.Get(indicators.KeyBBWidth, 0.05)
	pctl := ind.Get(indicators.KeyATRPercentile, 50)

	switch {
	case adx >= s.cfg.TrendingADX && pctl >= 70:
		return TrendingHigh
	case adx >= s.cfg.TrendingADX && pctl <= 30:
		return TrendingLow
	case adx >= s.cfg.TrendingADX:
		return TrendingMid
	case width <= s.cfg.ConsolidatingBB:
		return Consolidating
	case pctl >= 70:
		return Volatile
	default:
		return Neutral
	}
}

func (s *AdaptiveATR) entryConditions(price float64, cond MarketCondition, ind domain.Indicators) []condition {
	ema12 := ind.Get(indicators.KeyEMA12, 0)
	ema26 := ind.Get(indicators.KeyEMA26, 0)
	rsi := ind.Get(indicators.KeyRSI14, 50)
	sma50 := ind.Get(indicators.KeySMA50, 0)

	lo, hi := 35.0, 75.0
	switch {
	case cond.trending():
		lo, hi = 40, 80
	case cond == Consolidating:
		lo, hi = 30, 60
	}

	return []condition{
		{"ema12AboveEma26", ema12 > ema26},
		{"priceAboveEma12", price > ema12},
		{"rsiInBand", rsi >= lo && rsi <= hi},
		{"priceAboveSma50", sma50 <= 0 || price > sma50},
		{"volumeConfirmed", ind.Get(indicators.KeyVolumeRatio, 1.0) >= s.cfg.MinVolumeRatio},
	}
}

// levels returns the ATR stop and a target at least MinRiskReward times the risk.
func (s *AdaptiveATR) levels(price, pctl float64, cond MarketCondition, atr float64) (float64, float64) {
	mult := s.cfg.HighVolStop
	switch {
	case pctl <= 30:
		mult = s.cfg.LowVolStop
	case pctl <= 70:
		mult = s.cfg.MidVolStop
	}
	switch {
	case cond.trending():
		mult *= 0.8
	case cond == Volatile:
		mult *= 1.2
	}

	stopLoss := price - mult*atr
	risk := price - stopLoss
	takeProfit := math.Max(price+s.cfg.TargetATR*atr, price+risk*s.cfg.MinRiskReward)
	return stopLoss, takeProfit
}

func (s *AdaptiveATR) confidence(count int, cond MarketCondition, pctl, volumeRatio float64) float64 {
	c := 0.4 + float64(count)/float64(s.cfg.EntryRequired)*0.3

	switch {
	case cond.trending():
		c += 0.15
	case cond == Consolidating:
		c += 0.10
	case cond == Volatile:
		c += 0.05
	}
	if pctl >= 30 && pctl <= 70 {
		c += 0.1
	} else {
		c += 0.05
	}
	c += math.Min((volumeRatio-1.0)*0.05, 0.1)
	return math.Min(c, 1.0)
}

// VolatilityAdjustment scales position size down in high volatility and up in low.
func VolatilityAdjustment(atrPercentile float64) float64 {
	switch {
	case atrPercentile >= 80:
		return 0.7
	case atrPercentile >= 60:
		return 0.85
	case atrPercentile <= 20:
		return 1.15
	default:
		return 1.0
	}
}
