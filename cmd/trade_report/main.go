package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"cryptoSpotBot/internal/adapters/sqlite"
	"cryptoSpotBot/internal/analytics"
	"cryptoSpotBot/internal/bootstrap"
	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/utils"

	"github.com/spf13/cobra"
)

func main() {
	var envFile, symbol, csvPath string
	var initialBalance float64
	var limit int

	cmd := &cobra.Command{
		Use:          "trade_report",
		Short:        "Performance report over the trade journal, with optional CSV export",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, appLogger, err := bootstrap.Load(envFile)
			if err != nil {
				return err
			}
			repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
			if err != nil {
				appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
				return err
			}
			defer repo.Close()

			var trades []*domain.Trade
			if symbol != "" {
				trades, err = repo.FindBySymbol(ctx, symbol, limit)
			} else {
				trades, err = repo.FindAll(ctx)
			}
			if err != nil {
				appLogger.Error(ctx, err, "Failed to load trades")
				return err
			}
			if len(trades) == 0 {
				fmt.Println("No closed trades recorded yet.")
				return nil
			}

			today, err := repo.CountToday(ctx)
			if err != nil {
				return err
			}
			printReport(analytics.AnalyzePerformance(trades, initialBalance), today)

			if csvPath != "" {
				if err := utils.WriteTradesToCSV(trades, csvPath); err != nil {
					appLogger.Error(ctx, err, "Error writing CSV")
					return err
				}
				appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": csvPath, "trades": len(trades)})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "only report this symbol")
	cmd.Flags().IntVar(&limit, "limit", 0, "with --symbol, the most recent N trades (0 = all)")
	cmd.Flags().Float64Var(&initialBalance, "initial-balance", 1000, "starting balance for drawdown and ROI")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also export the trades to this CSV file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printReport(m *analytics.PerformanceMetrics, today int) {
	fmt.Println("## Performance")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trades\t%d (%d today)\n", m.TotalTrades, today)
	fmt.Fprintf(tw, "Win rate\t%.2f%% (%d won, %d lost)\n", m.WinRate*100, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(tw, "Total P&L\t%.2f\n", m.TotalProfit)
	fmt.Fprintf(tw, "Gross profit / loss\t%.2f / %.2f\n", m.GrossProfit, m.GrossLoss)
	fmt.Fprintf(tw, "Profit factor\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(tw, "Average win / loss\t%.2f / %.2f\n", m.AverageWin, m.AverageLoss)
	fmt.Fprintf(tw, "Expectancy\t%.2f\n", m.Expectancy)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(tw, "Sharpe (per trade)\t%.2f\n", m.SharpeRatio)
	fmt.Fprintf(tw, "Final balance / ROI\t%.2f / %.2f%%\n", m.FinalBalance, m.ReturnOnInvestment*100)
	fmt.Fprintf(tw, "Streaks\t%d wins, %d losses\n", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	fmt.Fprintf(tw, "Average duration\t%s\n", m.AverageTradeDuration.Round(time.Minute))
	tw.Flush()

	fmt.Println("\n## By symbol")
	symbols := make([]string, 0, len(m.BySymbol))
	for s := range m.BySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	tw = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tTrades\tWinRate\tP&L\t")
	for _, s := range symbols {
		st := m.BySymbol[s]
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.2f\t\n", s, st.Trades, st.WinRate*100, st.Profit)
	}
	tw.Flush()

	fmt.Println("\n## By close reason")
	for reason, n := range m.ByCloseReason {
		fmt.Printf("%-14s %d\n", reason, n)
	}

	fmt.Println("\n## Monthly P&L")
	for _, mr := range m.GetMonthlyReturns() {
		fmt.Printf("%s %10.2f\n", mr.Month.Format("2006-01"), mr.Return)
	}
}
