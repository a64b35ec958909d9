package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoSpotBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey             string
	SecretKey          string
	UseTestnet         bool
	APIRateLimitPerSec float64
	APIRateBurst       int

	// Market selection
	QuoteAsset          string
	Symbols             []string // Used when the watchlist file is missing or empty
	Timeframe           string
	KlineLimit          int
	ScanInterval        time.Duration
	WatchlistFile       string
	WatchlistMaxSymbols int
	WatchlistMinScore   float64
	RefreshWatchlist    bool

	// Storage
	ActiveTradesFile string
	DBPath           string

	// Strategy
	Strategy string // quality_gated | adaptive_atr

	// Risk (percentages are 0-100)
	MinBalance              float64
	RiskPerTradePercent     float64
	FallbackPositionPercent float64
	MaxPositionSize         float64 // base-asset units, 0 = unlimited
	MaxTradeValuePercent    float64
	MinTradeNotional        float64
	MaxTradeNotional        float64
	MinRiskReward           float64
	StopLossPercent         float64
	TakeProfitPercent       float64
	TrailingStopPercent     float64
	MaxOpenPositions        int

	// OCO execution (fractions, e.g. 0.001 for 0.1%)
	OCOBalanceToleranceAbs float64
	OCOBalanceTolerancePct float64
	OCORetryDelay          time.Duration
	OCORetryBufferPct      float64
	OCOStopLimitOffsetPct  float64

	// Entry orders
	EntryOrderType        string // market | limit
	LimitOrderOffsetPct   float64
	LimitOrderWait        time.Duration
	LimitOrderMaxAttempts int

	// Continuous loop
	MaxConsecutiveErrors int
	ErrorBackoffMin      time.Duration
	ErrorBackoffMax      time.Duration

	// Notifications
	TelegramBotToken string
	TelegramChatID   int64

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // text | json
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads the given dotenv file first, or ".env" when envFile is
// empty. A missing default file is fine; a missing explicit file is an error.
func LoadConfigFrom(envFile string) (*Config, error) {
	if envFile == "" {
		// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.UseTestnet = getEnvAsBool("USE_TESTNET", true) // Default to testnet for safety
	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}
	cfg.APIRateLimitPerSec, err = getEnvAsFloatRequired("API_RATE_LIMIT_PER_SEC", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid API_RATE_LIMIT_PER_SEC: %v", err))
	} else if cfg.APIRateLimitPerSec < 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_SEC cannot be negative")
	}
	cfg.APIRateBurst = getEnvAsInt("API_RATE_BURST", 5)

	// Market selection
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))
	cfg.Symbols = getEnvAsList("SYMBOLS", []string{"BTCUSDT", "ETHUSDT"})
	cfg.Timeframe = getEnv("TIMEFRAME", "4h")
	cfg.KlineLimit, err = getEnvAsIntRequired("KLINE_LIMIT", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid KLINE_LIMIT: %v", err))
	} else if cfg.KlineLimit <= 0 || cfg.KlineLimit > 1000 {
		errs = append(errs, "KLINE_LIMIT must be between 1 and 1000")
	}
	cfg.ScanInterval, err = getEnvAsSecondsRequired("SCAN_INTERVAL_SECONDS", 300)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCAN_INTERVAL_SECONDS: %v", err))
	} else if cfg.ScanInterval <= 0 {
		errs = append(errs, "SCAN_INTERVAL_SECONDS must be positive")
	}
	cfg.WatchlistFile = getEnv("WATCHLIST_FILE", "./data/watchlist.json")
	cfg.WatchlistMaxSymbols = getEnvAsInt("WATCHLIST_MAX_SYMBOLS", 20)
	if cfg.WatchlistMaxSymbols < 0 {
		errs = append(errs, "WATCHLIST_MAX_SYMBOLS cannot be negative")
	}
	cfg.WatchlistMinScore = getEnvAsFloat("WATCHLIST_MIN_SCORE", 75)
	cfg.RefreshWatchlist = getEnvAsBool("REFRESH_WATCHLIST", false)

	// Storage
	cfg.ActiveTradesFile = getEnv("ACTIVE_TRADES_FILE", "./data/active_trades.json")
	if cfg.ActiveTradesFile == "" {
		errs = append(errs, "ACTIVE_TRADES_FILE must be set")
	}
	cfg.DBPath = getEnv("DB_PATH", "./data/trading_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Strategy
	cfg.Strategy = strings.ToLower(getEnv("STRATEGY", "quality_gated"))
	if cfg.Strategy != "quality_gated" && cfg.Strategy != "adaptive_atr" {
		errs = append(errs, fmt.Sprintf("STRATEGY must be quality_gated or adaptive_atr, got %q", cfg.Strategy))
	}

	// Risk
	floats := []struct {
		key      string
		def      float64
		dst      *float64
		positive bool // must be > 0, otherwise >= 0
	}{
		{"MIN_BALANCE", 100, &cfg.MinBalance, false},
		{"RISK_PER_TRADE_PERCENTAGE", 2, &cfg.RiskPerTradePercent, true},
		{"FALLBACK_POSITION_PERCENTAGE", 2, &cfg.FallbackPositionPercent, true},
		{"MAX_POSITION_SIZE", 0, &cfg.MaxPositionSize, false},
		{"MAX_TRADE_VALUE_PERCENTAGE", 50, &cfg.MaxTradeValuePercent, true},
		{"MIN_TRADE_NOTIONAL", 10, &cfg.MinTradeNotional, false},
		{"MAX_TRADE_NOTIONAL", 0, &cfg.MaxTradeNotional, false},
		{"MIN_RISK_REWARD_RATIO", 0, &cfg.MinRiskReward, false},
		{"STOP_LOSS_PERCENTAGE", 5, &cfg.StopLossPercent, true},
		{"TAKE_PROFIT_PERCENTAGE", 10, &cfg.TakeProfitPercent, true},
		{"TRAILING_STOP_PERCENTAGE", 0, &cfg.TrailingStopPercent, false},
		{"OCO_BALANCE_TOLERANCE_ABS", 0.001, &cfg.OCOBalanceToleranceAbs, false},
		{"OCO_BALANCE_TOLERANCE_PCT", 0.001, &cfg.OCOBalanceTolerancePct, false},
		{"OCO_RETRY_BUFFER_PCT", 0.001, &cfg.OCORetryBufferPct, false},
		{"OCO_STOP_LIMIT_OFFSET_PCT", 0.001, &cfg.OCOStopLimitOffsetPct, false},
		{"LIMIT_ORDER_OFFSET_PCT", 0.1, &cfg.LimitOrderOffsetPct, false},
	}
	for _, f := range floats {
		*f.dst, err = getEnvAsFloatRequired(f.key, f.def)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		case f.positive && *f.dst <= 0:
			errs = append(errs, f.key+" must be positive")
		case *f.dst < 0:
			errs = append(errs, f.key+" cannot be negative")
		}
	}
	if cfg.RiskPerTradePercent > 100 || cfg.MaxTradeValuePercent > 100 || cfg.StopLossPercent >= 100 {
		errs = append(errs, "risk percentages must not exceed 100")
	}
	if cfg.MaxTradeNotional > 0 && cfg.MaxTradeNotional < cfg.MinTradeNotional {
		errs = append(errs, "MAX_TRADE_NOTIONAL must not be below MIN_TRADE_NOTIONAL")
	}
	if cfg.LimitOrderOffsetPct >= 100 {
		errs = append(errs, "LIMIT_ORDER_OFFSET_PCT must be below 100")
	}
	cfg.MaxOpenPositions = getEnvAsInt("MAX_OPEN_POSITIONS", 5)
	if cfg.MaxOpenPositions < 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS cannot be negative")
	}

	// OCO execution
	retryMs := getEnvAsInt("OCO_RETRY_DELAY_MS", 2000)
	if retryMs <= 0 {
		errs = append(errs, "OCO_RETRY_DELAY_MS must be positive")
	}
	cfg.OCORetryDelay = time.Duration(retryMs) * time.Millisecond

	// Entry orders
	cfg.EntryOrderType = strings.ToLower(getEnv("ENTRY_ORDER_TYPE", "market"))
	if cfg.EntryOrderType != "market" && cfg.EntryOrderType != "limit" {
		errs = append(errs, fmt.Sprintf("ENTRY_ORDER_TYPE must be market or limit, got %q", cfg.EntryOrderType))
	}
	cfg.LimitOrderWait, err = getEnvAsSecondsRequired("LIMIT_ORDER_WAIT_SECONDS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LIMIT_ORDER_WAIT_SECONDS: %v", err))
	}
	cfg.LimitOrderMaxAttempts = getEnvAsInt("LIMIT_ORDER_MAX_ATTEMPTS", 3)
	if cfg.LimitOrderMaxAttempts <= 0 {
		errs = append(errs, "LIMIT_ORDER_MAX_ATTEMPTS must be positive")
	}

	// Continuous loop
	cfg.MaxConsecutiveErrors = getEnvAsInt("MAX_CONSECUTIVE_ERRORS", 5)
	if cfg.MaxConsecutiveErrors <= 0 {
		errs = append(errs, "MAX_CONSECUTIVE_ERRORS must be positive")
	}
	cfg.ErrorBackoffMin, err = getEnvAsSecondsRequired("ERROR_BACKOFF_MIN_SECONDS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ERROR_BACKOFF_MIN_SECONDS: %v", err))
	}
	cfg.ErrorBackoffMax, err = getEnvAsSecondsRequired("ERROR_BACKOFF_MAX_SECONDS", 600)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ERROR_BACKOFF_MAX_SECONDS: %v", err))
	}
	if cfg.ErrorBackoffMax < cfg.ErrorBackoffMin {
		errs = append(errs, "ERROR_BACKOFF_MAX_SECONDS must not be below ERROR_BACKOFF_MIN_SECONDS")
	}

	// Notifications
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	chatID := getEnv("TELEGRAM_CHAT_ID", "")
	if chatID != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}
	if (cfg.TelegramBotToken == "") != (chatID == "") {
		errs = append(errs, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSecondsRequired reads a whole number of seconds.
func getEnvAsSecondsRequired(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := getEnvAsIntRequired(key, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %d for key %s", seconds, key)
	}
	return time.Duration(seconds) * time.Second, nil
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
