package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"cryptoSpotBot/internal/adapters/binanceclient"
	"cryptoSpotBot/internal/analytics"
	"cryptoSpotBot/internal/bootstrap"
	"cryptoSpotBot/internal/risk"
	"cryptoSpotBot/internal/strategy"
	"cryptoSpotBot/internal/strategy/backtesting"
	"cryptoSpotBot/internal/strategy/indicators"
	"cryptoSpotBot/internal/strategy/optimization"

	"github.com/spf13/cobra"
)

func main() {
	var envFile, symbol, interval, strategyName string
	var limit, top int
	var initialFunds, feeRate float64
	var sweeps []string

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the configured strategy over recent klines",
		Long: `Fetches up to --limit klines for one symbol and replays the strategy with the
configured risk settings. Repeat --sweep name=min:max:step to compare risk
settings instead, e.g. --sweep take_profit_percent=4:12:2.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, appLogger, err := bootstrap.Load(envFile)
			if err != nil {
				return err
			}
			if symbol == "" {
				symbol = cfg.Symbols[0]
			}
			symbol = strings.ToUpper(symbol)
			if interval == "" {
				interval = cfg.Timeframe
			}
			if strategyName == "" {
				strategyName = cfg.Strategy
			}
			ranges, err := parseSweeps(sweeps)
			if err != nil {
				return err
			}

			kind, err := strategy.ParseKind(strategyName)
			if err != nil {
				return err
			}
			strat, err := strategy.New(kind, appLogger)
			if err != nil {
				return err
			}

			client, err := binanceclient.New(binanceclient.Config{
				APIKey:          cfg.APIKey,
				SecretKey:       cfg.SecretKey,
				UseTestnet:      cfg.UseTestnet,
				Logger:          appLogger,
				RateLimitPerSec: cfg.APIRateLimitPerSec,
				RateBurst:       cfg.APIRateBurst,
			})
			if err != nil {
				appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
				return err
			}
			klines, err := client.GetKlines(ctx, symbol, interval, limit)
			if err != nil {
				appLogger.Error(ctx, err, "Failed to fetch klines", map[string]interface{}{"symbol": symbol})
				return err
			}
			filters, err := client.GetSymbolFilters(ctx, symbol)
			if err != nil {
				appLogger.Warn(ctx, "Symbol filters unavailable, using default rounding", map[string]interface{}{"symbol": symbol, "error": err.Error()})
				filters = nil
			}

			btCfg := backtesting.BacktestConfig{
				Symbol:       symbol,
				InitialFunds: initialFunds,
				Window:       cfg.KlineLimit,
				FeeRate:      feeRate,
				Filters:      filters,
			}
			calc := indicators.NewCalculator()

			if len(ranges) > 0 {
				opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
					ParameterRanges: ranges,
					BaseRisk:        bootstrap.RiskConfig(cfg),
					Backtest:        btCfg,
				}, appLogger)
				if err != nil {
					return err
				}
				results, err := opt.Optimize(ctx, strat, calc, klines)
				if err != nil {
					return err
				}
				printSweep(results, ranges, top)
				return nil
			}

			rm, err := risk.NewRiskManager(bootstrap.RiskConfig(cfg), appLogger)
			if err != nil {
				return err
			}
			result, err := backtesting.Backtest(ctx, strat, calc, rm, klines, btCfg)
			if err != nil {
				appLogger.Error(ctx, err, "Backtest failed")
				return err
			}
			fmt.Printf("%s %s %s: %d klines from %s to %s\n", strat.Name(), symbol, interval, len(klines),
				klines[0].OpenTime.Format("2006-01-02 15:04"), klines[len(klines)-1].CloseTime.Format("2006-01-02 15:04"))
			fmt.Printf("Signals: %d, rejected by risk: %d\n\n", result.Signals, result.Rejected)
			printMetrics(result.Metrics)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to replay (default first of SYMBOLS)")
	cmd.Flags().StringVar(&interval, "interval", "", "kline interval (default TIMEFRAME)")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "quality_gated or adaptive_atr (default STRATEGY)")
	cmd.Flags().IntVar(&limit, "limit", 1000, "klines to fetch (Binance caps this at 1000)")
	cmd.Flags().Float64Var(&initialFunds, "initial-funds", 1000, "starting quote balance")
	cmd.Flags().Float64Var(&feeRate, "fee", 0.001, "fee per leg as a fraction of notional")
	cmd.Flags().StringArrayVar(&sweeps, "sweep", nil, "risk parameter range name=min:max:step (repeatable)")
	cmd.Flags().IntVar(&top, "top", 10, "sweep results to print")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func parseSweeps(specs []string) ([]optimization.ParameterRange, error) {
	ranges := make([]optimization.ParameterRange, 0, len(specs))
	for _, s := range specs {
		name, bounds, ok := strings.Cut(s, "=")
		parts := strings.Split(bounds, ":")
		if !ok || len(parts) != 3 {
			return nil, fmt.Errorf("invalid --sweep %q, want name=min:max:step", s)
		}
		var vals [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --sweep %q: %w", s, err)
			}
			vals[i] = v
		}
		ranges = append(ranges, optimization.ParameterRange{Name: strings.TrimSpace(name), Min: vals[0], Max: vals[1], Step: vals[2]})
	}
	return ranges, nil
}

func printMetrics(m *analytics.PerformanceMetrics) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trades:\t%d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(tw, "Win rate:\t%.2f%%\n", m.WinRate*100)
	fmt.Fprintf(tw, "Profit:\t%.2f\n", m.TotalProfit)
	fmt.Fprintf(tw, "Final balance:\t%.2f\n", m.FinalBalance)
	fmt.Fprintf(tw, "ROI:\t%.2f%%\n", m.ReturnOnInvestment*100)
	fmt.Fprintf(tw, "Profit factor:\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\n", m.MaxDrawdown*100)
	for reason, n := range m.ByCloseReason {
		fmt.Fprintf(tw, "Closed by %s:\t%d\n", reason, n)
	}
	tw.Flush()
}

func printSweep(results []optimization.OptimizationResult, ranges []optimization.ParameterRange, top int) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	for _, r := range ranges {
		fmt.Fprintf(tw, "%s\t", r.Name)
	}
	fmt.Fprintln(tw, "Score\tTrades\tWin rate\tProfit\tMax DD\t")
	for i, res := range results {
		if i >= top {
			break
		}
		for _, r := range ranges {
			fmt.Fprintf(tw, "%g\t", res.Parameters[r.Name])
		}
		if res.Err != nil {
			fmt.Fprintf(tw, "error: %v\t\t\t\t\t\n", res.Err)
			continue
		}
		m := res.Metrics
		fmt.Fprintf(tw, "%.3f\t%d\t%.1f%%\t%.2f\t%.1f%%\t\n", res.Score, m.TotalTrades, m.WinRate*100, m.TotalProfit, m.MaxDrawdown*100)
	}
	tw.Flush()
}
