package format

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

func btcFilters() *domain.SymbolFilters {
	return &domain.SymbolFilters{
		Symbol:      "BTCUSDT",
		StepSize:    0.00001,
		MinQty:      0.00001,
		MaxQty:      9000,
		TickSize:    0.01,
		MinNotional: 5,
	}
}

func isMultiple(v, step float64) bool {
	q := decimal.NewFromFloat(v).Div(decimal.NewFromFloat(step))
	return q.Equal(q.Floor())
}

func TestQuantity_FloorsToStep(t *testing.T) {
	steps := []float64{1, 0.1, 0.01, 0.001, 0.00001, 0.5, 0.25}
	quantities := []float64{0.123456789, 1.999999, 3.3, 10, 99.95, 1234.56789, 0.7}

	for _, s := range steps {
		for _, q := range quantities {
			f := &domain.SymbolFilters{StepSize: s}
			got, err := Quantity(q, f)
			if err != nil {
				assert.ErrorIs(t, err, ports.ErrQuantityTooSmall, "q=%v s=%v", q, s)
				assert.Less(t, q, s, "only sub-step quantities may fail, q=%v s=%v", q, s)
				continue
			}
			assert.LessOrEqual(t, got, q, "q=%v s=%v", q, s)
			assert.True(t, isMultiple(got, s), "got %v is not a multiple of %v", got, s)
			assert.Less(t, q-got, s+1e-12, "q=%v s=%v", q, s)
		}
	}
}

func TestQuantity_Bounds(t *testing.T) {
	testCases := []struct {
		name    string
		qty     float64
		want    float64
		wantErr error
	}{
		{name: "exact step stays", qty: 0.1, want: 0.1},
		{name: "floored not rounded", qty: 0.123459, want: 0.12345},
		{name: "clamped to max", qty: 12000, want: 9000},
		{name: "below min rejected", qty: 0.000009, wantErr: ports.ErrQuantityTooSmall},
		{name: "zero rejected", qty: 0, wantErr: ports.ErrQuantityTooSmall},
		{name: "negative rejected", qty: -1, wantErr: ports.ErrQuantityTooSmall},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Quantity(tc.qty, btcFilters())
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuantity_NilFiltersFallsBackToSixDecimals(t *testing.T) {
	got, err := Quantity(1.23456789, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.234567, got)

	_, err = Quantity(0.0000001, nil)
	assert.ErrorIs(t, err, ports.ErrQuantityTooSmall)
}

func TestPrice_FloorsToTick(t *testing.T) {
	ticks := []float64{0.01, 0.1, 1, 0.0001, 0.05}
	prices := []float64{50000.129, 48000, 0.98765, 1.005, 333.333333}

	for _, tick := range ticks {
		for _, p := range prices {
			got := Price(p, &domain.SymbolFilters{TickSize: tick})
			assert.LessOrEqual(t, got, p, "p=%v t=%v", p, tick)
			assert.True(t, isMultiple(got, tick), "got %v is not a multiple of %v", got, tick)
		}
	}

	assert.Equal(t, 50000.12, Price(50000.129, btcFilters()))
	assert.Equal(t, 1.123456, Price(1.1234569, nil))
	assert.Equal(t, 0.0, Price(-3, btcFilters()))
}

func TestQuantity_NeverCreatesNotional(t *testing.T) {
	f := btcFilters()
	price := 50000.0
	for _, q := range []float64{0.00009, 0.0000999, 0.0001, 0.00011, 0.5} {
		rounded, err := Quantity(q, f)
		if err != nil {
			continue
		}
		if CheckNotional(q, price, f) != nil {
			assert.Error(t, CheckNotional(rounded, price, f), "rounding must not lift q=%v over min notional", q)
		}
	}
}

func TestCheckNotional(t *testing.T) {
	f := btcFilters()
	assert.NoError(t, CheckNotional(0.1, 50000, f))
	err := CheckNotional(0.00001, 50000, f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrBelowMinNotional)
	assert.NoError(t, CheckNotional(0.00001, 50000, nil))
}

func TestMinQuantityForNotional(t *testing.T) {
	f := &domain.SymbolFilters{StepSize: 0.001, MinQty: 0.001, MinNotional: 10}
	got := MinQuantityForNotional(3333, f)
	assert.Equal(t, 0.004, got)
	assert.NoError(t, CheckNotional(got, 3333, f))
	assert.Error(t, CheckNotional(got-0.001, 3333, f))

	assert.Equal(t, 0.0, MinQuantityForNotional(100, nil))
}

func TestRenderAndClean(t *testing.T) {
	assert.Equal(t, "0.3", Render(0.1+0.2))
	assert.Equal(t, "0.00001", Render(0.00001))
	assert.Equal(t, "50000", Render(50000))
	assert.False(t, math.IsNaN(Clean(1.0/3.0)))
	assert.Equal(t, 0.333333333333, Clean(1.0/3.0))
}
