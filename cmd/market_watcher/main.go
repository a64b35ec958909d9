package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"cryptoSpotBot/internal/adapters/binanceclient"
	"cryptoSpotBot/internal/bootstrap"
	"cryptoSpotBot/internal/watcher"

	"github.com/spf13/cobra"
)

func main() {
	var envFile, output string
	var maxSymbols int
	var minScore float64

	cmd := &cobra.Command{
		Use:          "market_watcher",
		Short:        "Rank the top movers and write the watchlist file the bot scans",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// 1. Load Configuration and Logger
			cfg, appLogger, err := bootstrap.Load(envFile)
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.WatchlistFile
			}
			if maxSymbols <= 0 {
				maxSymbols = cfg.WatchlistMaxSymbols
			}
			if minScore <= 0 {
				minScore = cfg.WatchlistMinScore
			}

			// 2. Initialize Exchange Client (Binance Adapter)
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

			// 3. Refresh the watchlist
			w, err := watcher.New(client, watcher.Config{
				QuoteAsset: cfg.QuoteAsset,
				MaxSymbols: maxSymbols,
				MinScore:   minScore,
				Logger:     appLogger,
			})
			if err != nil {
				return err
			}
			list, err := w.Refresh(ctx, output)
			if err != nil {
				appLogger.Error(ctx, err, "Watchlist refresh failed")
				return err
			}
			printWatchlist(list, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "watchlist path (default WATCHLIST_FILE)")
	cmd.Flags().IntVar(&maxSymbols, "max", 0, "maximum symbols to list (default WATCHLIST_MAX_SYMBOLS)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum composite score (default WATCHLIST_MIN_SCORE)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printWatchlist(list *watcher.Watchlist, path string) {
	fmt.Printf("Watchlist %s: %d symbols at %s\n\n", path, list.TotalSymbols, list.Timestamp.Format("2006-01-02 15:04:05 MST"))
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tPrice\tScore\tRS vs BTC\tADX\t")
	for _, e := range list.Symbols {
		fmt.Fprintf(tw, "%s\t%.8g\t%.1f\t%s\t%s\t\n",
			e.Symbol, e.CurrentPrice, e.CompositeScore,
			e.Conditions.RelativeStrength.Status, e.Conditions.TrendStrength.Status)
	}
	tw.Flush()
}
