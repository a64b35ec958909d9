package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptoSpotBot/internal/bootstrap"

	"github.com/spf13/cobra"
)

const (
	modeScheduled  = "scheduled"
	modeContinuous = "continuous"
)

func main() {
	var mode, envFile string

	rootCmd := &cobra.Command{
		Use:   "cryptoSpotBot",
		Short: "Binance spot trading bot with OCO exit protection",
		Long: `Scans a watchlist for entry signals, buys on Binance spot and protects
every position with an OCO (take-profit + stop-loss) order list.

Modes:
  scheduled   run one reconcile-and-scan cycle and exit (for cron)
  continuous  loop until SIGINT/SIGTERM`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != modeScheduled && mode != modeContinuous {
				return fmt.Errorf("unknown mode %q, want %s or %s", mode, modeScheduled, modeContinuous)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, mode, envFile)
		},
	}
	rootCmd.Flags().StringVar(&mode, "mode", modeScheduled, "run mode: scheduled or continuous")
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, mode, envFile string) error {
	cfg, appLogger, err := bootstrap.Load(envFile)
	if err != nil {
		return err
	}
	c, err := bootstrap.Build(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer c.Close()

	appLogger.Info(ctx, "Starting trading bot", map[string]interface{}{
		"mode":     mode,
		"strategy": cfg.Strategy,
		"entry":    cfg.EntryOrderType,
		"testnet":  cfg.UseTestnet,
	})

	if mode == modeContinuous {
		if err := c.Bot.RunContinuous(ctx); err != nil {
			appLogger.Error(context.Background(), err, "Trading loop exited with error")
			return err
		}
	} else {
		report, err := c.Bot.RunOnce(ctx)
		if err != nil {
			appLogger.Error(context.Background(), err, "Trading cycle failed")
			return err
		}
		appLogger.Info(ctx, "Trading cycle finished", map[string]interface{}{
			"symbols":          len(report.Symbols),
			"signals":          report.Signals,
			"entered":          report.Entered,
			"closed":           report.Closed,
			"reconcile_failed": report.ReconcileFailed,
			"failed":           report.Failed,
		})
	}

	status := c.Bot.Status()
	appLogger.Info(context.Background(), "Application finished gracefully.", map[string]interface{}{
		"open_positions": status.ActivePositions,
		"exposure":       status.TotalExposure,
		"unrealized_pnl": status.UnrealizedPnL,
	})
	return nil
}
