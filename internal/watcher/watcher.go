// Package watcher ranks the day's top movers and maintains the watchlist file
// the trading cycle scans.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/strategy/indicators"
)

var (
	excludedBases    = map[string]bool{"USDT": true, "BUSD": true, "USDC": true, "TUSD": true, "FDUSD": true, "DAI": true, "USD": true}
	excludedSuffixes = []string{"UP", "DOWN", "BULL", "BEAR"}
)

// Config controls candidate selection and scoring.
type Config struct {
	QuoteAsset          string
	MaxSymbols          int     // Upper bound on watchlist entries
	MinScore            float64 // Composite score a symbol needs to be listed
	CandidateMultiplier int     // Movers fetched per listed slot
	BenchmarkSymbol     string
	StrengthDays        int // Relative strength window, in days of 1h klines
	ADXKlines           int
	ADXPeriod           int
	Logger              ports.Logger
}

// Watcher selects and scores candidate symbols.
type Watcher struct {
	client ports.MarketScanner
	cfg    Config
	logger ports.Logger
	now    func() time.Time
}

// SymbolScore is the ranking of one candidate. Nil criteria could not be
// computed and contribute nothing to the score.
type SymbolScore struct {
	Symbol           string
	CurrentPrice     float64
	RelativeStrength *float64 // % performance over the benchmark
	ADX              *float64
	CompositeScore   float64
}

// New creates a Watcher, filling unset config values with defaults.
func New(client ports.MarketScanner, cfg Config) (*Watcher, error) {
	if client == nil {
		return nil, errors.New("market scanner is required for watcher")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required for watcher")
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	cfg.QuoteAsset = strings.ToUpper(cfg.QuoteAsset)
	if cfg.MaxSymbols <= 0 {
		cfg.MaxSymbols = 20
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 75
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 3
	}
	if cfg.BenchmarkSymbol == "" {
		cfg.BenchmarkSymbol = "BTC" + cfg.QuoteAsset
	}
	if cfg.StrengthDays <= 0 {
		cfg.StrengthDays = 7
	}
	if cfg.ADXKlines <= 0 {
		cfg.ADXKlines = 50
	}
	if cfg.ADXPeriod <= 0 {
		cfg.ADXPeriod = 14
	}
	return &Watcher{client: client, cfg: cfg, logger: cfg.Logger, now: time.Now}, nil
}

// TopMovers returns up to limit quote-asset tickers that are currently
// trading, ordered by 24h change and then quote volume, both descending.
func (w *Watcher) TopMovers(ctx context.Context, limit int) ([]*ports.Ticker24h, error) {
	op := "TopMovers"
	tickers, err := w.client.Get24hTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	active, err := w.client.GetTradingSymbols(ctx, w.cfg.QuoteAsset)
	if err != nil {
		w.logger.Warn(ctx, op+": exchange info unavailable, proceeding without status filter", map[string]interface{}{"error": err.Error()})
		active = nil
	}

	movers := make([]*ports.Ticker24h, 0, len(tickers))
	for _, t := range tickers {
		if !w.eligible(t.Symbol) {
			continue
		}
		if len(active) > 0 && !active[t.Symbol] {
			w.logger.Debug(ctx, op+": skipping symbol not trading", map[string]interface{}{"symbol": t.Symbol})
			continue
		}
		movers = append(movers, t)
	}
	sort.SliceStable(movers, func(i, j int) bool {
		if movers[i].PriceChangePercent != movers[j].PriceChangePercent {
			return movers[i].PriceChangePercent > movers[j].PriceChangePercent
		}
		return movers[i].QuoteVolume > movers[j].QuoteVolume
	})
	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	w.logger.Info(ctx, op+": selected top movers", map[string]interface{}{"selected": len(movers), "tickers": len(tickers)})
	return movers, nil
}

// eligible filters out other quotes, stablecoin bases and leveraged tokens.
func (w *Watcher) eligible(symbol string) bool {
	quote := w.cfg.QuoteAsset
	if !strings.HasSuffix(symbol, quote) {
		return false
	}
	base := strings.TrimSuffix(symbol, quote)
	if base == "" || excludedBases[base] {
		return false
	}
	for _, s := range excludedSuffixes {
		if strings.HasSuffix(base, s) {
			return false
		}
	}
	return true
}

// Rank scores each candidate and returns them best first. Candidates whose
// data cannot be fetched at all are dropped.
func (w *Watcher) Rank(ctx context.Context, candidates []*ports.Ticker24h) []*SymbolScore {
	op := "Rank"
	benchmark := w.benchmarkChange(ctx)

	ranked := make([]*SymbolScore, 0, len(candidates))
	for i, t := range candidates {
		if ctx.Err() != nil {
			break
		}
		score := &SymbolScore{Symbol: t.Symbol, CurrentPrice: t.LastPrice}
		if benchmark != nil {
			if change, err := w.periodChange(ctx, t.Symbol); err == nil {
				rs := change - *benchmark
				score.RelativeStrength = &rs
			} else {
				w.logger.Debug(ctx, op+": relative strength unavailable", map[string]interface{}{"symbol": t.Symbol, "error": err.Error()})
			}
		}
		if adx, err := w.trendStrength(ctx, t.Symbol); err == nil {
			score.ADX = &adx
		} else {
			w.logger.Debug(ctx, op+": ADX unavailable", map[string]interface{}{"symbol": t.Symbol, "error": err.Error()})
		}
		score.CompositeScore = CompositeScore(score.RelativeStrength, score.ADX)
		ranked = append(ranked, score)

		w.logger.Debug(ctx, op+": scored symbol", map[string]interface{}{
			"symbol":   t.Symbol,
			"position": i + 1,
			"score":    score.CompositeScore,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].CompositeScore > ranked[j].CompositeScore })
	return ranked
}

// Select runs the full pipeline: movers, ranking, minimum score, limit.
func (w *Watcher) Select(ctx context.Context) ([]*SymbolScore, error) {
	movers, err := w.TopMovers(ctx, w.cfg.MaxSymbols*w.cfg.CandidateMultiplier)
	if err != nil {
		return nil, err
	}
	ranked := w.Rank(ctx, movers)
	selected := make([]*SymbolScore, 0, w.cfg.MaxSymbols)
	for _, s := range ranked {
		if s.CompositeScore < w.cfg.MinScore {
			continue
		}
		selected = append(selected, s)
		if len(selected) == w.cfg.MaxSymbols {
			break
		}
	}
	w.logger.Info(ctx, "Select: watchlist candidates chosen", map[string]interface{}{
		"analyzed": len(ranked),
		"selected": len(selected),
		"minScore": w.cfg.MinScore,
	})
	return selected, nil
}

// Refresh selects symbols and rewrites the watchlist file at path. An empty
// selection still writes an empty watchlist.
func (w *Watcher) Refresh(ctx context.Context, path string) (*Watchlist, error) {
	selected, err := w.Select(ctx)
	if err != nil {
		return nil, err
	}
	list := NewWatchlist(w.cfg.QuoteAsset, w.now(), selected)
	if err := WriteWatchlist(path, list); err != nil {
		return nil, err
	}
	w.logger.Info(ctx, "Watchlist refreshed", map[string]interface{}{"path": path, "symbols": list.TotalSymbols})
	return list, nil
}

func (w *Watcher) benchmarkChange(ctx context.Context) *float64 {
	change, err := w.periodChange(ctx, w.cfg.BenchmarkSymbol)
	if err != nil {
		w.logger.Warn(ctx, "Rank: benchmark unavailable, relative strength skipped", map[string]interface{}{
			"benchmark": w.cfg.BenchmarkSymbol,
			"error":     err.Error(),
		})
		return nil
	}
	return &change
}

// periodChange is the % close-to-close change over StrengthDays of 1h klines.
func (w *Watcher) periodChange(ctx context.Context, symbol string) (float64, error) {
	limit := w.cfg.StrengthDays * 24
	klines, err := w.client.GetKlines(ctx, symbol, "1h", limit)
	if err != nil {
		return 0, err
	}
	if len(klines) < limit {
		return 0, fmt.Errorf("got %d klines, need %d", len(klines), limit)
	}
	start, end := klines[0].Close, klines[len(klines)-1].Close
	if start <= 0 {
		return 0, errors.New("non-positive start price")
	}
	return (end - start) / start * 100, nil
}

func (w *Watcher) trendStrength(ctx context.Context, symbol string) (float64, error) {
	klines, err := w.client.GetKlines(ctx, symbol, "1h", w.cfg.ADXKlines)
	if err != nil {
		return 0, err
	}
	if len(klines) < w.cfg.ADXKlines {
		return 0, fmt.Errorf("got %d klines, need %d", len(klines), w.cfg.ADXKlines)
	}
	adx := indicators.NewADX(indicators.ADXConfig{IndicatorConfig: indicators.IndicatorConfig{Period: w.cfg.ADXPeriod}})
	return adx.Calculate(ctx, klines)
}

// CompositeScore weights relative strength and trend strength equally, each
// normalised to 0-100.
func CompositeScore(relativeStrength, adx *float64) float64 {
	score := 0.0
	if relativeStrength != nil {
		score += 0.5 * math.Max(0, math.Min(*relativeStrength*2+50, 100))
	}
	if adx != nil && *adx > 0 {
		score += 0.5 * math.Min(*adx*2, 100)
	}
	return score
}
