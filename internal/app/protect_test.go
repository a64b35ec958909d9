package app

import (
	"context"
	"testing"
	"time"

	"cryptoSpotBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUnprotected(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	opened := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, h.ledger.AddPosition(ctx, &domain.Position{
		Symbol: "ETHUSDT", Quantity: 1, EntryPrice: 3000, CurrentPrice: 3000, EntryTime: opened,
		StopLoss: 2900, TakeProfit: 3200,
	}))
	require.NoError(t, h.ledger.AddPosition(ctx, &domain.Position{
		Symbol: "BTCUSDT", Quantity: 0.1, EntryPrice: 50000, CurrentPrice: 50000, EntryTime: opened,
	}))
	h.exchange.prices["ETHUSDT"] = []float64{3010}
	h.exchange.prices["BTCUSDT"] = []float64{50500}
	h.exchange.balances["ETH"] = 1
	h.exchange.balances["BTC"] = 0.1
}

func TestProtectOpenPositions(t *testing.T) {
	h := newHarness(t, Config{})
	seedUnprotected(t, h)

	outcomes := h.bot.ProtectOpenPositions(context.Background(), false)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "BTCUSDT", outcomes[0].Symbol)
	assert.True(t, outcomes[0].Protected)
	assert.InDelta(t, 47500, outcomes[0].StopLoss, 1e-9, "default stop from risk settings")
	assert.InDelta(t, 55000, outcomes[0].TakeProfit, 1e-9)
	assert.Equal(t, "ETHUSDT", outcomes[1].Symbol)
	assert.True(t, outcomes[1].Protected)

	require.Len(t, h.exchange.ocoRequests, 2)
	assert.Equal(t, "47500", h.exchange.ocoRequests[0].StopPrice)
	assert.Equal(t, "55000", h.exchange.ocoRequests[0].Price)
	assert.Equal(t, "2900", h.exchange.ocoRequests[1].StopPrice)
	assert.Equal(t, "3200", h.exchange.ocoRequests[1].Price)

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		pos, err := h.ledger.GetPosition(symbol)
		require.NoError(t, err)
		assert.True(t, pos.IsProtected(), symbol)
	}

	// Everything is protected now, so a second run has nothing to do.
	assert.Empty(t, h.bot.ProtectOpenPositions(context.Background(), false))
	assert.Len(t, h.exchange.ocoRequests, 2)
}

func TestProtectOpenPositions_DryRun(t *testing.T) {
	h := newHarness(t, Config{})
	seedUnprotected(t, h)

	outcomes := h.bot.ProtectOpenPositions(context.Background(), true)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.False(t, o.Protected)
		assert.NoError(t, o.Err)
	}
	assert.Zero(t, h.exchange.calls["PlaceOCOOrder"])
}

func TestProtectOpenPositions_ReportsFailures(t *testing.T) {
	h := newHarness(t, Config{})
	seedUnprotected(t, h)
	h.exchange.balances["ETH"] = 0.5

	outcomes := h.bot.ProtectOpenPositions(context.Background(), false)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Protected)
	assert.False(t, outcomes[1].Protected)
	require.Error(t, outcomes[1].Err)
	assert.Contains(t, outcomes[1].Err.Error(), string(domain.ErrorKindInsufficientBalance))

	pos, err := h.ledger.GetPosition("ETHUSDT")
	require.NoError(t, err)
	assert.False(t, pos.IsProtected())
}
