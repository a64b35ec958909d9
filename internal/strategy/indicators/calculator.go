package indicators

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
)

// Indicator keys produced by Calculator.
const (
	KeyEMA12         = "EMA_12"
	KeyEMA26         = "EMA_26"
	KeyEMA55         = "EMA_55"
	KeySMA50         = "SMA_50"
	KeyRSI14         = "RSI_14"
	KeyRSI21         = "RSI_21"
	KeyMACD          = "MACD"
	KeyMACDSignal    = "MACD_SIGNAL"
	KeyMACDHistogram = "MACD_HISTOGRAM"
	KeyBBUpper       = "BB_UPPER"
	KeyBBMiddle      = "BB_MIDDLE"
	KeyBBLower       = "BB_LOWER"
	KeyBBWidth       = "BB_WIDTH"
	KeyATR           = "ATR"
	KeyATRRatio      = "ATR_RATIO"
	KeyATRPercentile = "ATR_PERCENTILE"
	KeyVolumeRatio   = "VOLUME_RATIO"
	KeyADX           = "ADX"
)

// Calculator computes the full indicator snapshot a strategy reads.
// Indicators without enough history are left out of the result.
type Calculator struct {
	averages []*MovingAverage
	rsis     []*RSI
	macd     *MACD
	bands    *Bollinger
	atr      *ATR
	volume   *VolumeRatio
	adx      *ADX
}

// NewCalculator builds a calculator with the standard periods.
func NewCalculator() *Calculator {
	return &Calculator{
		averages: []*MovingAverage{
			NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 12}, Type: ExponentialMovingAverage}),
			NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 26}, Type: ExponentialMovingAverage}),
			NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 55}, Type: ExponentialMovingAverage}),
			NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 50}, Type: SimpleMovingAverage}),
		},
		rsis: []*RSI{
			NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Overbought: 70, Oversold: 30}),
			NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 21}, Overbought: 70, Oversold: 30}),
		},
		macd:   NewMACD(MACDConfig{}),
		bands:  NewBollinger(BollingerConfig{}),
		atr:    NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Lookback: 50}),
		volume: NewVolumeRatio(IndicatorConfig{Period: 20}),
		adx:    NewADX(ADXConfig{IndicatorConfig: IndicatorConfig{Period: 14}}),
	}
}

// RequiredDataPoints is the history needed for every indicator to be present.
func (c *Calculator) RequiredDataPoints() int {
	need := c.macd.RequiredDataPoints()
	for _, ma := range c.averages {
		if n := ma.RequiredDataPoints(); n > need {
			need = n
		}
	}
	return need
}

// Calculate returns the indicator snapshot for the latest kline.
func (c *Calculator) Calculate(ctx context.Context, symbol string, klines []*domain.Kline) (domain.Indicators, error) {
	if len(klines) < 2 {
		return nil, fmt.Errorf("not enough klines for %s: %d", symbol, len(klines))
	}
	out := make(domain.Indicators)

	for _, ma := range c.averages {
		if v, err := ma.Calculate(ctx, klines); err == nil {
			out[ma.Name()] = v
		}
	}
	for _, rsi := range c.rsis {
		if v, err := rsi.Calculate(ctx, klines); err == nil {
			out[rsi.Name()] = v
		}
	}
	if m, err := c.macd.Compute(klines); err == nil {
		out[KeyMACD] = m.MACD
		out[KeyMACDSignal] = m.Signal
		out[KeyMACDHistogram] = m.Histogram
	}
	if b, err := c.bands.Compute(klines); err == nil {
		out[KeyBBUpper] = b.Upper
		out[KeyBBMiddle] = b.Middle
		out[KeyBBLower] = b.Lower
		out[KeyBBWidth] = b.Width
	}
	if series, err := c.atr.Series(klines); err == nil {
		out[KeyATR] = series[len(series)-1]
		out[KeyATRRatio] = c.atr.Ratio(series)
		out[KeyATRPercentile] = c.atr.Percentile(series)
	}
	if v, err := c.volume.Calculate(ctx, klines); err == nil {
		out[KeyVolumeRatio] = v
	}
	if v, err := c.adx.Calculate(ctx, klines); err == nil {
		out[KeyADX] = v
	}
	return out, nil
}
