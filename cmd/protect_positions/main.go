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

func main() {
	var envFile string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "protect_positions",
		Short: "Place OCO exits for ledger positions that have none",
		Long: `Reconciles the position ledger with the exchange, adopting any OCO that
already exists, then places a balance-checked OCO for every position that is
still unprotected. Positions without recorded levels get the default
STOP_LOSS_PERCENTAGE / TAKE_PROFIT_PERCENTAGE levels.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, appLogger, err := bootstrap.Load(envFile)
			if err != nil {
				return err
			}
			c, err := bootstrap.Build(ctx, cfg, appLogger)
			if err != nil {
				return err
			}
			defer c.Close()

			outcomes := c.Bot.ProtectOpenPositions(ctx, dryRun)
			if len(outcomes) == 0 {
				fmt.Println("All open positions are protected.")
				return nil
			}
			failed := 0
			for _, o := range outcomes {
				switch {
				case o.Err != nil:
					failed++
					fmt.Printf("%-12s FAILED  stop %.8g target %.8g: %v\n", o.Symbol, o.StopLoss, o.TakeProfit, o.Err)
				case o.Protected:
					fmt.Printf("%-12s OK      stop %.8g target %.8g\n", o.Symbol, o.StopLoss, o.TakeProfit)
				default:
					fmt.Printf("%-12s DRY RUN stop %.8g target %.8g\n", o.Symbol, o.StopLoss, o.TakeProfit)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d positions left unprotected", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be placed without submitting")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
