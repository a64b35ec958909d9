package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoSpotBot/internal/domain"
)

// trendKlines builds an uptrend with a small zig-zag so every indicator has data.
func trendKlines(n int) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	price := 100.0
	for i := 0; i < n; i++ {
		step := 0.8
		if i%3 == 2 {
			step = -0.5
		}
		open := price
		price += step
		out[i] = &domain.Kline{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1)*time.Hour - time.Millisecond),
			Open:      open,
			High:      math.Max(open, price) + 0.3,
			Low:       math.Min(open, price) - 0.3,
			Close:     price,
			Volume:    1000 + float64(i%5)*10,
		}
	}
	return out
}

func flatKlines(n int, price float64) []*domain.Kline {
	out := make([]*domain.Kline, n)
	for i := range out {
		out[i] = &domain.Kline{Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 500}
	}
	return out
}

func TestEMASeries(t *testing.T) {
	series := emaSeries([]float64{100, 102, 101, 103, 104}, 3)
	require.Len(t, series, 3)
	assert.InDelta(t, 101.0, series[0], 1e-9)
	assert.InDelta(t, 103.0, series[2], 1e-9)
	assert.Nil(t, emaSeries([]float64{1, 2}, 3))
}

func TestATR_SeriesMatchesCalculate(t *testing.T) {
	klines := trendKlines(80)
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	series, err := atr.Series(klines)
	require.NoError(t, err)
	assert.Len(t, series, 80-14+1)

	last, err := atr.Calculate(context.Background(), klines)
	require.NoError(t, err)
	assert.Equal(t, series[len(series)-1], last)

	_, err = atr.Calculate(context.Background(), klines[:14])
	assert.Error(t, err)
}

func TestATR_RatioAndPercentile(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Lookback: 4})

	assert.InDelta(t, 1.0, atr.Ratio([]float64{2, 2, 2, 2}), 1e-12)
	assert.InDelta(t, 50.0, atr.Percentile([]float64{2, 2, 2, 2}), 1e-12)

	rising := []float64{9, 1, 2, 3, 4}
	assert.InDelta(t, 4/2.5, atr.Ratio(rising), 1e-12)
	assert.InDelta(t, 87.5, atr.Percentile(rising), 1e-12)

	falling := []float64{4, 3, 2, 1}
	assert.InDelta(t, 12.5, atr.Percentile(falling), 1e-12)
}

func TestMACD(t *testing.T) {
	m := NewMACD(MACDConfig{})
	assert.Equal(t, 34, m.RequiredDataPoints())

	_, err := m.Compute(trendKlines(20))
	assert.Error(t, err)

	res, err := m.Compute(trendKlines(120))
	require.NoError(t, err)
	assert.Greater(t, res.MACD, 0.0, "uptrend has fast EMA above slow EMA")
	assert.InDelta(t, res.MACD-res.Signal, res.Histogram, 1e-12)

	flat, err := m.Compute(flatKlines(60, 10))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, flat.MACD, 1e-9)
	assert.InDelta(t, 0.0, flat.Histogram, 1e-9)
}

func TestBollinger(t *testing.T) {
	b := NewBollinger(BollingerConfig{})
	bands, err := b.Compute(flatKlines(25, 50))
	require.NoError(t, err)
	assert.Equal(t, 50.0, bands.Middle)
	assert.Equal(t, 0.0, bands.Width)
	assert.Equal(t, 0.5, bands.Position(50))

	klines := flatKlines(20, 10)
	for i := range klines {
		if i%2 == 0 {
			klines[i].Close = 12
		} else {
			klines[i].Close = 8
		}
	}
	bands, err = b.Compute(klines)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, bands.Middle, 1e-12)
	assert.InDelta(t, 14.0, bands.Upper, 1e-12)
	assert.InDelta(t, 6.0, bands.Lower, 1e-12)
	assert.InDelta(t, 0.8, bands.Width, 1e-12)
	assert.InDelta(t, 0.25, bands.Position(8), 1e-12)
}

func TestADX(t *testing.T) {
	adx := NewADX(ADXConfig{})
	trending, err := adx.Calculate(context.Background(), trendKlines(50))
	require.NoError(t, err)

	flat, err := adx.Calculate(context.Background(), flatKlines(50, 10))
	require.NoError(t, err)

	assert.Greater(t, trending, 20.0)
	assert.Less(t, flat, 1.0)
	assert.GreaterOrEqual(t, trending, 0.0)
	assert.LessOrEqual(t, trending, 100.0)

	_, err = adx.Calculate(context.Background(), trendKlines(10))
	assert.Error(t, err)
}

func TestVolumeRatio(t *testing.T) {
	v := NewVolumeRatio(IndicatorConfig{Period: 4})
	klines := flatKlines(6, 10)
	klines[5].Volume = 1100 // window: 500, 500, 500, 1100 -> mean 650
	ratio, err := v.Calculate(context.Background(), klines)
	require.NoError(t, err)
	assert.InDelta(t, 1100.0/650.0, ratio, 1e-12)

	for _, k := range klines {
		k.Volume = 0
	}
	ratio, err = v.Calculate(context.Background(), klines)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ratio)
}

func TestCalculator_ProducesAllKeys(t *testing.T) {
	c := NewCalculator()
	assert.Equal(t, 55, c.RequiredDataPoints())

	ind, err := c.Calculate(context.Background(), "BTCUSDT", trendKlines(150))
	require.NoError(t, err)
	for _, key := range []string{
		KeyEMA12, KeyEMA26, KeyEMA55, KeySMA50, KeyRSI14, KeyRSI21,
		KeyMACD, KeyMACDSignal, KeyMACDHistogram,
		KeyBBUpper, KeyBBMiddle, KeyBBLower, KeyBBWidth,
		KeyATR, KeyATRRatio, KeyATRPercentile, KeyVolumeRatio, KeyADX,
	} {
		assert.True(t, ind.Has(key), "missing %s", key)
	}
	assert.Greater(t, ind[KeyEMA12], ind[KeyEMA26])
	assert.GreaterOrEqual(t, ind[KeyATRPercentile], 0.0)
	assert.LessOrEqual(t, ind[KeyATRPercentile], 100.0)
}

func TestCalculator_PartialHistory(t *testing.T) {
	ind, err := NewCalculator().Calculate(context.Background(), "BTCUSDT", trendKlines(30))
	require.NoError(t, err)
	assert.True(t, ind.Has(KeyEMA12, KeyEMA26, KeyRSI14, KeyATR))
	assert.False(t, ind.Has(KeyEMA55))
	assert.False(t, ind.Has(KeyMACD))

	_, err = NewCalculator().Calculate(context.Background(), "BTCUSDT", nil)
	assert.Error(t, err)
}
