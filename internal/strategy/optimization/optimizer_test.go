package optimization

import (
	"context"
	"testing"
	"time"

	"cryptoSpotBot/internal/analytics"
	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/risk"
	"cryptoSpotBot/internal/strategy/backtesting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStrategy signals one level-less buy once three klines are available.
type MockStrategy struct{}

func (MockStrategy) Name() string { return "MockStrategy" }

func (MockStrategy) RequiredDataPoints() int { return 2 }

func (MockStrategy) Analyze(ctx context.Context, data *domain.MarketData) *domain.TradingSignal {
	if len(data.Klines) != 3 {
		return nil
	}
	return &domain.TradingSignal{Direction: domain.Buy, Price: data.CurrentPrice, Confidence: 0.8}
}

type mockIndicators struct{}

func (mockIndicators) Calculate(ctx context.Context, symbol string, klines []*domain.Kline) (domain.Indicators, error) {
	return domain.Indicators{}, nil
}

func testKlines() []*domain.Kline {
	highs := []float64{101, 101, 101, 111, 101}
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, len(highs))
	for i, h := range highs {
		open := start.Add(time.Duration(i) * time.Hour)
		out[i] = &domain.Kline{
			OpenTime: open, CloseTime: open.Add(time.Hour - time.Millisecond),
			Symbol: "BTCUSDT", Interval: "1h",
			Open: 100, High: h, Low: 99, Close: 100, Volume: 1,
		}
	}
	return out
}

func baseConfig() OptimizerConfig {
	return OptimizerConfig{
		BaseRisk: risk.RiskConfig{
			MinBalance:              100,
			RiskPerTradePercent:     2,
			FallbackPositionPercent: 2,
			MaxTradeValuePercent:    60,
			StopLossPercent:         5,
		},
		Backtest: backtesting.BacktestConfig{Symbol: "BTCUSDT", InitialFunds: 1000, Window: 50},
		Workers:  2,
		ScoreFunction: func(m *analytics.PerformanceMetrics) float64 {
			return m.TotalProfit
		},
	}
}

func TestOptimizer(t *testing.T) {
	config := baseConfig()
	config.ParameterRanges = []ParameterRange{{Name: ParamTakeProfitPercent, Min: 5, Max: 15, Step: 5}}

	opt, err := NewOptimizer(config, quietLogger{})
	require.NoError(t, err)

	results, err := opt.Optimize(context.Background(), MockStrategy{}, mockIndicators{}, testKlines())
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 4 units: the 10% target fills at 110, 5% at 105, 15% is never reached.
	assert.Equal(t, 10.0, results[0].Parameters[ParamTakeProfitPercent])
	assert.InDelta(t, 40, results[0].Score, 1e-6)
	assert.Equal(t, 5.0, results[1].Parameters[ParamTakeProfitPercent])
	assert.InDelta(t, 20, results[1].Score, 1e-6)
	assert.Equal(t, 15.0, results[2].Parameters[ParamTakeProfitPercent])
	assert.InDelta(t, 0, results[2].Score, 1e-6)
	for _, r := range results {
		assert.NoError(t, r.Err)
		require.NotNil(t, r.Metrics)
		assert.Equal(t, 1, r.Metrics.TotalTrades)
	}
}

func TestOptimizer_InvalidCombinationsSortLast(t *testing.T) {
	config := baseConfig()
	config.ParameterRanges = []ParameterRange{{Name: ParamRiskPerTradePercent, Min: 0, Max: 2, Step: 2}}

	opt, err := NewOptimizer(config, quietLogger{})
	require.NoError(t, err)

	results, err := opt.Optimize(context.Background(), MockStrategy{}, mockIndicators{}, testKlines())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2.0, results[0].Parameters[ParamRiskPerTradePercent])
	assert.Error(t, results[1].Err, "zero risk per trade is rejected by the risk manager")
	assert.Nil(t, results[1].Metrics)
}

func TestNewOptimizer_Validation(t *testing.T) {
	config := baseConfig()
	_, err := NewOptimizer(config, quietLogger{})
	assert.Error(t, err, "no ranges")

	config.ParameterRanges = []ParameterRange{{Name: "leverage", Min: 1, Max: 2, Step: 1}}
	_, err = NewOptimizer(config, quietLogger{})
	assert.Error(t, err, "unknown parameter")

	config.ParameterRanges = []ParameterRange{{Name: ParamStopLossPercent, Min: 1, Max: 2, Step: 0}}
	_, err = NewOptimizer(config, quietLogger{})
	assert.Error(t, err, "zero step")

	_, err = NewOptimizer(config, nil)
	assert.Error(t, err)
}

func TestGenerateParameterCombinations(t *testing.T) {
	opt := &Optimizer{config: OptimizerConfig{ParameterRanges: []ParameterRange{
		{Name: ParamStopLossPercent, Min: 1, Max: 2, Step: 0.5},
		{Name: ParamMinRiskReward, Min: 0.1, Max: 0.3, Step: 0.1},
	}}}

	combinations := opt.generateParameterCombinations()
	require.Len(t, combinations, 9)
	assert.Equal(t, map[string]float64{ParamStopLossPercent: 1, ParamMinRiskReward: 0.1}, combinations[0])
	assert.Equal(t, map[string]float64{ParamStopLossPercent: 2, ParamMinRiskReward: 0.3}, combinations[8])
}

func TestDefaultScoreFunction(t *testing.T) {
	assert.Zero(t, DefaultScoreFunction(nil))
	assert.Zero(t, DefaultScoreFunction(&analytics.PerformanceMetrics{}))

	good := &analytics.PerformanceMetrics{TotalTrades: 10, WinRate: 0.6, ProfitFactor: 2, ReturnOnInvestment: 0.1, RiskRewardRatio: 1.5}
	bad := &analytics.PerformanceMetrics{TotalTrades: 10, WinRate: 0.3, ProfitFactor: 0.5, MaxDrawdown: 0.4, ReturnOnInvestment: -0.1}
	assert.Greater(t, DefaultScoreFunction(good), DefaultScoreFunction(bad))
}
