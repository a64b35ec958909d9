package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cryptoSpotBot/internal/domain"
)

var tradeHeader = []string{
	"trade_id", "symbol", "direction", "quantity", "entry_price", "exit_price",
	"pnl", "entry_time", "exit_time", "duration_minutes", "status", "close_reason",
}

// WriteTradesToCSV exports closed trades, one row per trade, creating the
// parent directory when needed.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if t == nil {
			continue
		}
		if err := writer.Write([]string{
			t.ID,
			t.Symbol,
			string(t.Direction),
			formatFloat(t.Quantity),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.PNL),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.ExitTime.Sub(t.EntryTime).Minutes(), 'f', 1, 64),
			string(t.Status),
			string(t.CloseReason),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
