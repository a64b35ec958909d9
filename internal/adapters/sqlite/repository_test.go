package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTrade(symbol string, exit time.Time, pnl float64) *domain.Trade {
	return &domain.Trade{
		ID:          symbol + "_" + exit.Format("20060102150405"),
		Symbol:      symbol,
		Direction:   domain.Buy,
		Quantity:    0.1,
		EntryPrice:  50000,
		ExitPrice:   50000 + pnl*10,
		EntryTime:   exit.Add(-2 * time.Hour),
		ExitTime:    exit,
		Status:      domain.TradeStatusClosed,
		PNL:         pnl,
		CloseReason: domain.CloseReasonTakeProfit,
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_RecordAndFindBySymbol(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordTrade(ctx, newTrade("BTCUSDT", base, 200)))
	require.NoError(t, repo.RecordTrade(ctx, newTrade("BTCUSDT", base.Add(time.Hour), -50)))
	require.NoError(t, repo.RecordTrade(ctx, newTrade("ETHUSDT", base.Add(2*time.Hour), 30)))

	trades, err := repo.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, -50.0, trades[0].PNL, "most recent first")
	assert.Equal(t, domain.Buy, trades[0].Direction)
	assert.Equal(t, domain.TradeStatusClosed, trades[0].Status)
	assert.Equal(t, domain.CloseReasonTakeProfit, trades[0].CloseReason)
	assert.True(t, trades[1].ExitTime.Equal(base))
	assert.True(t, trades[1].EntryTime.Equal(base.Add(-2*time.Hour)))

	limited, err := repo.FindBySymbol(ctx, "BTCUSDT", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.FindBySymbol(ctx, "SOLUSDT", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_DuplicateTrade(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	trade := newTrade("BTCUSDT", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), 10)

	require.NoError(t, repo.RecordTrade(ctx, trade))
	err := repo.RecordTrade(ctx, trade)
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
}

func TestRepository_FindAllAndTotalProfit(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	total, err := repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordTrade(ctx, newTrade("ETHUSDT", base.Add(time.Hour), 30)))
	require.NoError(t, repo.RecordTrade(ctx, newTrade("BTCUSDT", base, 200)))
	noReason := newTrade("SOLUSDT", base.Add(2*time.Hour), -80)
	noReason.CloseReason = ""
	require.NoError(t, repo.RecordTrade(ctx, noReason))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BTCUSDT", all[0].Symbol, "oldest exit first")
	assert.Equal(t, domain.CloseReasonUnknown, all[2].CloseReason)

	total, err = repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, total, 1e-9)
}

func TestRepository_CountToday(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.RecordTrade(ctx, newTrade("BTCUSDT", now.Add(-time.Hour), 1)))
	require.NoError(t, repo.RecordTrade(ctx, newTrade("ETHUSDT", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), 1)))
	require.NoError(t, repo.RecordTrade(ctx, newTrade("SOLUSDT", time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC), 1)))

	count, err := repo.CountToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
