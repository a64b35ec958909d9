// Package optimization sweeps risk settings over a backtest to compare stop,
// target and sizing choices for a strategy.
package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"cryptoSpotBot/internal/analytics"
	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/risk"
	"cryptoSpotBot/internal/strategy/backtesting"
)

// Parameter names accepted in a ParameterRange.
const (
	ParamStopLossPercent     = "stop_loss_percent"
	ParamTakeProfitPercent   = "take_profit_percent"
	ParamRiskPerTradePercent = "risk_per_trade_percent"
	ParamMaxTradeValuePct    = "max_trade_value_percent"
	ParamMinRiskReward       = "min_risk_reward"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name string
	Min  float64
	Max  float64
	Step float64
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
	Err        error
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	BaseRisk        risk.RiskConfig // values not swept
	Backtest        backtesting.BacktestConfig
	Workers         int // defaults to GOMAXPROCS
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
}

// Optimizer runs one backtest per parameter combination.
type Optimizer struct {
	config OptimizerConfig
	logger ports.Logger
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig, logger ports.Logger) (*Optimizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if len(config.ParameterRanges) == 0 {
		return nil, fmt.Errorf("%w: no parameter ranges", ports.ErrConfigurationError)
	}
	for _, r := range config.ParameterRanges {
		if err := setParam(&risk.RiskConfig{}, r.Name, 0); err != nil {
			return nil, err
		}
		if r.Step <= 0 || r.Max < r.Min {
			return nil, fmt.Errorf("%w: bad range for %s", ports.ErrConfigurationError, r.Name)
		}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config, logger: logger}, nil
}

// Optimize backtests strat under every combination and returns the results
// sorted by score, best first. Combinations whose risk settings are invalid
// or whose backtest fails are reported with Err set and sorted last.
func (o *Optimizer) Optimize(ctx context.Context, strat ports.Strategy, ind backtesting.IndicatorSource, klines []*domain.Kline) ([]OptimizationResult, error) {
	op := "Optimize"
	combinations := o.generateParameterCombinations()
	o.logger.Info(ctx, op+": starting sweep", map[string]interface{}{
		"strategy": strat.Name(), "combinations": len(combinations), "workers": o.config.Workers,
	})

	results := make([]OptimizationResult, len(combinations))
	sem := make(chan struct{}, o.config.Workers)
	var wg sync.WaitGroup

	for i, params := range combinations {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, params map[string]float64) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.run(ctx, strat, ind, klines, params)
		}(i, params)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortResultsByScore(results)
	if best := results[0]; best.Err == nil {
		o.logger.Info(ctx, op+": sweep finished", map[string]interface{}{
			"best_score": best.Score, "best_params": best.Parameters,
		})
	}
	return results, nil
}

func (o *Optimizer) run(ctx context.Context, strat ports.Strategy, ind backtesting.IndicatorSource, klines []*domain.Kline, params map[string]float64) OptimizationResult {
	out := OptimizationResult{Parameters: params, Score: math.Inf(-1)}

	cfg := o.config.BaseRisk
	for name, v := range params {
		_ = setParam(&cfg, name, v) // names validated in NewOptimizer
	}
	rm, err := risk.NewRiskManager(cfg, quietLogger{})
	if err != nil {
		out.Err = err
		return out
	}

	result, err := backtesting.Backtest(ctx, strat, ind, rm, klines, o.config.Backtest)
	if err != nil {
		out.Err = err
		return out
	}
	out.Metrics = result.Metrics
	out.Score = o.config.ScoreFunction(result.Metrics)
	return out
}

func setParam(cfg *risk.RiskConfig, name string, v float64) error {
	switch name {
	case ParamStopLossPercent:
		cfg.StopLossPercent = v
	case ParamTakeProfitPercent:
		cfg.TakeProfitPercent = v
	case ParamRiskPerTradePercent:
		cfg.RiskPerTradePercent = v
	case ParamMaxTradeValuePct:
		cfg.MaxTradeValuePercent = v
	case ParamMinRiskReward:
		cfg.MinRiskReward = v
	default:
		return fmt.Errorf("%w: unknown parameter %q", ports.ErrConfigurationError, name)
	}
	return nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	currentCombination := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for n := 0; n <= steps; n++ {
			// Stepping by index keeps 0.1 increments from drifting.
			currentCombination[param.Name] = math.Round((param.Min+float64(n)*param.Step)*1e8) / 1e8
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction blends win rate, profit factor, drawdown and return.
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	if metrics == nil || metrics.TotalTrades == 0 {
		return 0
	}
	score := 0.0
	score += metrics.WinRate * 0.3
	score += math.Min(metrics.ProfitFactor, 10) * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.RiskRewardRatio * 0.1
	return score
}

// quietLogger drops the per-signal risk log lines of a sweep.
type quietLogger struct{}

func (quietLogger) Debug(context.Context, string, ...map[string]interface{}) {}

func (quietLogger) Info(context.Context, string, ...map[string]interface{}) {}

func (quietLogger) Warn(context.Context, string, ...map[string]interface{}) {}

func (quietLogger) Error(context.Context, error, string, ...map[string]interface{}) {}
