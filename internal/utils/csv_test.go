package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptoSpotBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTradesToCSV(t *testing.T) {
	entry := time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)
	trades := []*domain.Trade{
		{
			ID:          "BTCUSDT_1712050200",
			Symbol:      "BTCUSDT",
			Direction:   domain.Buy,
			Quantity:    0.015,
			EntryPrice:  65000,
			ExitPrice:   66300.5,
			PNL:         19.5075,
			EntryTime:   entry,
			ExitTime:    entry.Add(150 * time.Minute),
			Status:      domain.TradeStatusClosed,
			CloseReason: domain.CloseReasonOCOFilled,
		},
		nil,
	}
	path := filepath.Join(t.TempDir(), "exports", "trades.csv")

	require.NoError(t, WriteTradesToCSV(trades, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, tradeHeader, rows[0])
	assert.Equal(t, []string{
		"BTCUSDT_1712050200", "BTCUSDT", "BUY", "0.015", "65000", "66300.5", "19.5075",
		"2024-04-02T09:30:00Z", "2024-04-02T12:00:00Z", "150.0", "CLOSED", "OCO_FILLED",
	}, rows[1])
}

func TestWriteTradesToCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, WriteTradesToCSV(nil, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "trade_id,symbol,direction,quantity,entry_price,exit_price,pnl,entry_time,exit_time,duration_minutes,status,close_reason\n", string(raw))
}
