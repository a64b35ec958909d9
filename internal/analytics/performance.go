// Package analytics computes performance metrics over journaled trades.
package analytics

import (
	"math"
	"sort"
	"time"

	"cryptoSpotBot/internal/domain"
)

// PerformanceMetrics holds performance metrics for a set of closed trades.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	GrossProfit        float64
	GrossLoss          float64 // Negative or zero
	MaxDrawdown        float64 // Fraction of the running peak balance
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	SharpeRatio        float64 // Per-trade, not annualised
	FinalBalance       float64
	ReturnOnInvestment float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	RecoveryFactor       float64
	Expectancy           float64
	RiskRewardRatio      float64
	MonthlyReturns       map[string]float64
	BySymbol             map[string]*SymbolStats
	ByCloseReason        map[domain.CloseReason]int
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// SymbolStats aggregates trades for a single symbol.
type SymbolStats struct {
	Trades  int
	Wins    int
	Profit  float64
	WinRate float64
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance replays trades in exit order against initialBalance.
// The input slice is not reordered.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		BySymbol:       make(map[string]*SymbolStats),
		ByCloseReason:  make(map[domain.CloseReason]int),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	if len(trades) == 0 {
		return metrics
	}

	ordered := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t != nil {
			ordered = append(ordered, t)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	var currentBalance = initialBalance
	var peakBalance = initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var totalDuration time.Duration
	returns := make([]float64, 0, len(ordered))

	for _, trade := range ordered {
		metrics.TotalTrades++
		stats := metrics.BySymbol[trade.Symbol]
		if stats == nil {
			stats = &SymbolStats{}
			metrics.BySymbol[trade.Symbol] = stats
		}
		stats.Trades++
		stats.Profit += trade.PNL
		metrics.ByCloseReason[trade.CloseReason]++

		if trade.PNL > 0 {
			metrics.WinningTrades++
			metrics.GrossProfit += trade.PNL
			stats.Wins++
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			metrics.LosingTrades++
			metrics.GrossLoss += trade.PNL
			consecutiveLosses++
			consecutiveWins = 0
		}
		metrics.MaxConsecutiveWins = max(metrics.MaxConsecutiveWins, consecutiveWins)
		metrics.MaxConsecutiveLosses = max(metrics.MaxConsecutiveLosses, consecutiveLosses)

		if cost := trade.EntryPrice * trade.Quantity; cost > 0 {
			returns = append(returns, trade.PNL/cost)
		}
		if trade.ExitTime.After(trade.EntryTime) {
			totalDuration += trade.ExitTime.Sub(trade.EntryTime)
		}

		currentBalance += trade.PNL
		metrics.TotalProfit += trade.PNL
		metrics.FinalBalance = currentBalance
		metrics.MonthlyReturns[trade.ExitTime.Format("2006-01")] += trade.PNL

		// Drawdown tracking
		if currentBalance >= peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.ExitTime
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else {
			drawdown := 0.0
			if peakBalance > 0 {
				drawdown = (peakBalance - currentBalance) / peakBalance
			}
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.ExitTime,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)
		}

		point := EquityPoint{Time: trade.ExitTime, Value: currentBalance}
		if peakBalance > 0 {
			point.Drawdown = (peakBalance - currentBalance) / peakBalance
		}
		metrics.EquityCurve = append(metrics.EquityCurve, point)
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = ordered[len(ordered)-1].ExitTime
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	if metrics.TotalTrades == 0 {
		return metrics
	}
	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = metrics.GrossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = metrics.GrossLoss / float64(metrics.LosingTrades)
	}
	if metrics.GrossLoss != 0 {
		metrics.ProfitFactor = metrics.GrossProfit / -metrics.GrossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	if initialBalance > 0 {
		metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
		if metrics.MaxDrawdown > 0 {
			metrics.RecoveryFactor = metrics.TotalProfit / (initialBalance * metrics.MaxDrawdown)
		}
	}
	metrics.AverageTradeDuration = totalDuration / time.Duration(metrics.TotalTrades)
	metrics.Expectancy = metrics.WinRate*metrics.AverageWin + (1-metrics.WinRate)*metrics.AverageLoss
	metrics.SharpeRatio = sharpe(returns)
	for _, s := range metrics.BySymbol {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	return metrics
}

// sharpe is mean over sample standard deviation of per-trade returns.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
