package strategy

import (
	"context"
	"math"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/strategy/indicators"
)

// QualityGatedConfig holds the thresholds of the quality-gated EMA strategy.
type QualityGatedConfig struct {
	MinAboveEMA55Pct    float64 // quality filter, e.g. 1.0
	MinATRRatio         float64
	MaxATRRatio         float64
	MinVolumeRatio      float64
	StrongAboveEMA55    float64 // core condition, e.g. 2.0
	MinEMASeparation    float64 // EMA12 over EMA26 in percent
	RSILower            float64
	RSIUpper            float64
	SupportTolerance    float64 // max distance to EMA26 as a fraction
	CoreRequired        int
	StopATRMultiplier   float64
	TargetATRMultiplier float64
	MaxStopFraction     float64 // stop is at most this fraction of price
	MinTargetFraction   float64 // target is at least this fraction of price
	MinRiskReward       float64
	MaxBandPosition     float64
	MaxEMA12Distance    float64
	MinConfidence       float64
}

// DefaultQualityGatedConfig returns the 4h "quality over quantity" parameters.
func DefaultQualityGatedConfig() QualityGatedConfig {
	return QualityGatedConfig{
		MinAboveEMA55Pct:    1.0,
		MinATRRatio:         0.5,
		MaxATRRatio:         5.0,
		MinVolumeRatio:      1.5,
		StrongAboveEMA55:    2.0,
		MinEMASeparation:    0.5,
		RSILower:            50,
		RSIUpper:            70,
		SupportTolerance:    0.02,
		CoreRequired:        3,
		StopATRMultiplier:   1.5,
		TargetATRMultiplier: 3.0,
		MaxStopFraction:     0.95,
		MinTargetFraction:   1.10,
		MinRiskReward:       1.5,
		MaxBandPosition:     0.5,
		MaxEMA12Distance:    0.03,
		MinConfidence:       0.8,
	}
}

// QualityGated trades EMA uptrends only after quality filters, a core
// condition vote and mandatory momentum confirmation all pass.
type QualityGated struct {
	cfg    QualityGatedConfig
	logger ports.Logger
}

// NewQualityGated creates the strategy with default parameters.
func NewQualityGated(logger ports.Logger) *QualityGated {
	return &QualityGated{cfg: DefaultQualityGatedConfig(), logger: logger}
}

func (s *QualityGated) Name() string { return "Quality Gated EMA Cross - 4H" }

// RequiredDataPoints covers the 55-period EMA.
func (s *QualityGated) RequiredDataPoints() int { return 55 }

// Analyze returns a BUY signal or nil.
func (s *QualityGated) Analyze(ctx context.Context, data *domain.MarketData) *domain.TradingSignal {
	if data == nil || data.CurrentPrice <= 0 {
		return nil
	}
	ind := data.Indicators
	if !ind.Has(indicators.KeyEMA12, indicators.KeyEMA26, indicators.KeyRSI21) {
		s.logger.Warn(ctx, "QualityGated: missing critical indicators", map[string]interface{}{"symbol": data.Symbol})
		return nil
	}
	price := data.CurrentPrice

	if !s.qualityFilters(ctx, data.Symbol, price, ind) {
		return nil
	}

	core := s.coreConditions(price, ind)
	coreCount := countPassed(core)
	if coreCount < s.cfg.CoreRequired {
		fields := conditionFields(core)
		fields["symbol"] = data.Symbol
		fields["passed"] = coreCount
		fields["required"] = s.cfg.CoreRequired
		s.logger.Info(ctx, "QualityGated: core conditions not met", fields)
		return nil
	}

	ema12 := ind.Get(indicators.KeyEMA12, 0)
	ema26 := ind.Get(indicators.KeyEMA26, 0)
	macdBullish := ind.Get(indicators.KeyMACD, 0) > ind.Get(indicators.KeyMACDSignal, 0) &&
		ind.Get(indicators.KeyMACDHistogram, 0) > 0
	aboveEMAs := price > ema12 && price > ema26
	if !macdBullish || !aboveEMAs {
		s.logger.Info(ctx, "QualityGated: momentum confirmation failed", map[string]interface{}{
			"symbol": data.Symbol, "macdBullish": macdBullish, "aboveEMAs": aboveEMAs,
		})
		return nil
	}

	atr := ind.Get(indicators.KeyATR, price*0.02)
	stopLoss := math.Min(price-s.cfg.StopATRMultiplier*atr, price*s.cfg.MaxStopFraction)
	takeProfit := math.Max(price+s.cfg.TargetATRMultiplier*atr, price*s.cfg.MinTargetFraction)
	if stopLoss >= price || takeProfit <= price {
		return nil
	}
	rr := (takeProfit - price) / (price - stopLoss)
	if rr < s.cfg.MinRiskReward {
		s.logger.Info(ctx, "QualityGated: risk/reward below minimum", map[string]interface{}{
			"symbol": data.Symbol, "riskReward": rr, "min": s.cfg.MinRiskReward,
		})
		return nil
	}

	final := s.finalConfirmations(price, ind)
	confidence := 0.5 + float64(coreCount)/4*0.25 + 0.15 +
		float64(countPassed(final))/float64(len(final))*0.10
	confidence = math.Min(confidence, 1.0)
	if confidence < s.cfg.MinConfidence {
		s.logger.Info(ctx, "QualityGated: confidence below threshold", map[string]interface{}{
			"symbol": data.Symbol, "confidence": confidence, "threshold": s.cfg.MinConfidence,
		})
		return nil
	}

	s.logger.Info(ctx, "QualityGated: signal approved", map[string]interface{}{
		"symbol":     data.Symbol,
		"core":       coreCount,
		"confidence": confidence,
		"riskReward": rr,
		"stopLoss":   stopLoss,
		"takeProfit": takeProfit,
	})
	return newSignal(data, s.Name(), confidence, stopLoss, takeProfit, coreCount)
}

func (s *QualityGated) qualityFilters(ctx context.Context, symbol string, price float64, ind domain.Indicators) bool {
	ema55 := ind.Get(indicators.KeyEMA55, 0)
	if ema55 <= 0 || pctAbove(price, ema55) < s.cfg.MinAboveEMA55Pct {
		s.logger.Info(ctx, "QualityGated: price not far enough above EMA55", map[string]interface{}{
			"symbol": symbol, "price": price, "ema55": ema55,
		})
		return false
	}
	atrRatio := ind.Get(indicators.KeyATRRatio, 1.0)
	if atrRatio < s.cfg.MinATRRatio || atrRatio > s.cfg.MaxATRRatio {
		s.logger.Info(ctx, "QualityGated: ATR ratio outside range", map[string]interface{}{
			"symbol": symbol, "atrRatio": atrRatio,
		})
		return false
	}
	volumeRatio := ind.Get(indicators.KeyVolumeRatio, 0)
	if volumeRatio < s.cfg.MinVolumeRatio {
		s.logger.Info(ctx, "QualityGated: volume ratio too low", map[string]interface{}{
			"symbol": symbol, "volumeRatio": volumeRatio, "min": s.cfg.MinVolumeRatio,
		})
		return false
	}
	return true
}

func (s *QualityGated) coreConditions(price float64, ind domain.Indicators) []condition {
	ema55 := ind.Get(indicators.KeyEMA55, 0)
	ema12 := ind.Get(indicators.KeyEMA12, 0)
	ema26 := ind.Get(indicators.KeyEMA26, 0)
	rsi := ind.Get(indicators.KeyRSI21, 50)

	return []condition{
		{"priceWellAboveEMA55", ema55 > 0 && pctAbove(price, ema55) >= s.cfg.StrongAboveEMA55},
		{"emaUptrend", ema26 > 0 && pctAbove(ema12, ema26) >= s.cfg.MinEMASeparation},
		{"rsiInRange", rsi >= s.cfg.RSILower && rsi <= s.cfg.RSIUpper},
		{"nearEMA26Support", ema26 > 0 && math.Abs(price-ema26)/ema26 <= s.cfg.SupportTolerance},
	}
}

func (s *QualityGated) finalConfirmations(price float64, ind domain.Indicators) []condition {
	bandFavorable := true
	upper := ind.Get(indicators.KeyBBUpper, 0)
	lower := ind.Get(indicators.KeyBBLower, 0)
	if upper > lower && lower > 0 {
		bandFavorable = (price-lower)/(upper-lower) <= s.cfg.MaxBandPosition
	}

	ema12 := ind.Get(indicators.KeyEMA12, price)
	distance := 0.0
	if ema12 > 0 {
		distance = math.Abs(price-ema12) / ema12
	}
	return []condition{
		{"lowerHalfOfBands", bandFavorable},
		{"nearEMA12", distance <= s.cfg.MaxEMA12Distance},
	}
}
