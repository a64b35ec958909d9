package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptoSpotBot/internal/adapters/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setCredentials(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.UseTestnet)
	assert.Equal(t, "USDT", cfg.QuoteAsset)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, "4h", cfg.Timeframe)
	assert.Equal(t, 100, cfg.KlineLimit)
	assert.Equal(t, 5*time.Minute, cfg.ScanInterval)
	assert.Equal(t, "quality_gated", cfg.Strategy)
	assert.Equal(t, 100.0, cfg.MinBalance)
	assert.Equal(t, 2.0, cfg.RiskPerTradePercent)
	assert.Equal(t, 50.0, cfg.MaxTradeValuePercent)
	assert.Equal(t, 0.001, cfg.OCOBalanceToleranceAbs)
	assert.Equal(t, 2*time.Second, cfg.OCORetryDelay)
	assert.Equal(t, "market", cfg.EntryOrderType)
	assert.Equal(t, 5, cfg.MaxConsecutiveErrors)
	assert.Equal(t, 30*time.Second, cfg.ErrorBackoffMin)
	assert.Equal(t, 10*time.Minute, cfg.ErrorBackoffMax)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("USE_TESTNET", "false")
	t.Setenv("QUOTE_ASSET", "fdusd")
	t.Setenv("SYMBOLS", " solfdusd, ,ethfdusd ")
	t.Setenv("STRATEGY", "ADAPTIVE_ATR")
	t.Setenv("ENTRY_ORDER_TYPE", "limit")
	t.Setenv("LIMIT_ORDER_WAIT_SECONDS", "20")
	t.Setenv("OCO_RETRY_DELAY_MS", "500")
	t.Setenv("TRAILING_STOP_PERCENTAGE", "1.5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.UseTestnet)
	assert.Equal(t, "FDUSD", cfg.QuoteAsset)
	assert.Equal(t, []string{"SOLFDUSD", "ETHFDUSD"}, cfg.Symbols)
	assert.Equal(t, "adaptive_atr", cfg.Strategy)
	assert.Equal(t, "limit", cfg.EntryOrderType)
	assert.Equal(t, 20*time.Second, cfg.LimitOrderWait)
	assert.Equal(t, 500*time.Millisecond, cfg.OCORetryDelay)
	assert.Equal(t, 1.5, cfg.TrailingStopPercent)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, int64(-100200300), cfg.TelegramChatID)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_CollectsAllErrors(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")
	t.Setenv("KLINE_LIMIT", "many")
	t.Setenv("STRATEGY", "martingale")
	t.Setenv("RISK_PER_TRADE_PERCENTAGE", "0")
	t.Setenv("ENTRY_ORDER_TYPE", "stop")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ERROR_BACKOFF_MIN_SECONDS", "60")
	t.Setenv("ERROR_BACKOFF_MAX_SECONDS", "10")

	_, err := LoadConfig()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"BINANCE_API_KEY must be set",
		"BINANCE_API_SECRET must be set",
		"invalid KLINE_LIMIT",
		"STRATEGY must be quality_gated or adaptive_atr",
		"RISK_PER_TRADE_PERCENTAGE must be positive",
		"ENTRY_ORDER_TYPE must be market or limit",
		"TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together",
		"ERROR_BACKOFF_MAX_SECONDS must not be below ERROR_BACKOFF_MIN_SECONDS",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadConfigFrom_EnvFile(t *testing.T) {
	// godotenv never overrides variables that are already set.
	for _, key := range []string{"BINANCE_API_KEY", "BINANCE_API_SECRET", "SYMBOLS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("BINANCE_API_KEY=file-key\nBINANCE_API_SECRET=file-secret\nSYMBOLS=XRPUSDT\n"), 0o600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, []string{"XRPUSDT"}, cfg.Symbols)

	_, err = LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "x")
	assert.Equal(t, 7, getEnvAsInt("TEST_INT", 7))
	_, err := getEnvAsIntRequired("TEST_INT", 7)
	assert.Error(t, err)

	t.Setenv("TEST_SECONDS", "-1")
	_, err = getEnvAsSecondsRequired("TEST_SECONDS", 5)
	assert.Error(t, err)

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"A"}, getEnvAsList("TEST_LIST", []string{"A"}))
}
