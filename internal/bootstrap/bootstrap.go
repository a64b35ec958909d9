// Package bootstrap builds the bot's object graph from configuration. The
// root command and the cmd/ tools share it.
package bootstrap

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"cryptoSpotBot/config"
	"cryptoSpotBot/internal/adapters/binanceclient"
	"cryptoSpotBot/internal/adapters/logger"
	"cryptoSpotBot/internal/adapters/notify"
	"cryptoSpotBot/internal/adapters/sqlite"
	"cryptoSpotBot/internal/app"
	"cryptoSpotBot/internal/execution"
	"cryptoSpotBot/internal/ports"
	"cryptoSpotBot/internal/position"
	"cryptoSpotBot/internal/reconcile"
	"cryptoSpotBot/internal/risk"
	"cryptoSpotBot/internal/strategy"
	"cryptoSpotBot/internal/strategy/indicators"
	"cryptoSpotBot/internal/watcher"
)

// Components holds everything a command may need. Close releases the
// database; the rest holds no resources.
type Components struct {
	Config     *config.Config
	Logger     ports.Logger
	Repo       *sqlite.Repository
	Client     *binanceclient.Client
	Notifier   ports.Notifier
	Executor   *execution.Executor
	Ledger     *position.Manager
	Risk       *risk.RiskManager
	Reconciler *reconcile.Reconciler
	Watcher    *watcher.Watcher
	Bot        *app.Bot
}

// Close releases the trade journal.
func (c *Components) Close() {
	if c.Repo == nil {
		return
	}
	if err := c.Repo.Close(); err != nil {
		c.Logger.Error(context.Background(), err, "Error closing database repository")
	}
}

// Load reads configuration and sets up the logger.
func Load(envFile string) (*config.Config, ports.Logger, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfigFrom(envFile)
	if err != nil {
		log.Printf("FATAL: Failed to load configuration: %v", err)
		return nil, nil, err
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevel.String())
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{
		"level":  cfg.LogLevel.String(),
		"format": cfg.LogFormat,
	})
	return cfg, appLogger, nil
}

// Build wires every component. On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (_ *Components, err error) {
	c := &Components{Config: cfg, Logger: appLogger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// 3. Initialize Repository (Database Adapter)
	c.Repo, err = sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		return nil, err
	}
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	c.Client, err = binanceclient.New(binanceclient.Config{
		APIKey:          cfg.APIKey,
		SecretKey:       cfg.SecretKey,
		UseTestnet:      cfg.UseTestnet,
		Logger:          appLogger,
		RateLimitPerSec: cfg.APIRateLimitPerSec,
		RateBurst:       cfg.APIRateBurst,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		return nil, err
	}
	if err := c.Client.SetServerTime(ctx); err != nil {
		appLogger.Warn(ctx, "Server time sync failed, using local clock", map[string]interface{}{"error": err.Error()})
	}
	appLogger.Info(ctx, "Binance client initialized", map[string]interface{}{"testnet": cfg.UseTestnet})

	// 5. Initialize Notifiers
	c.Notifier, err = NewNotifier(cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize notifier")
		return nil, err
	}

	// 6. Initialize Trading Components
	c.Executor, err = execution.NewExecutor(execution.Config{
		Exchange:            c.Client,
		Logger:              appLogger,
		QuoteAsset:          cfg.QuoteAsset,
		BalanceToleranceAbs: cfg.OCOBalanceToleranceAbs,
		BalanceTolerancePct: cfg.OCOBalanceTolerancePct,
		RetryDelay:          cfg.OCORetryDelay,
		RetryBufferPct:      cfg.OCORetryBufferPct,
		StopLimitOffsetPct:  cfg.OCOStopLimitOffsetPct,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trade executor")
		return nil, err
	}

	c.Ledger, err = position.NewManager(cfg.ActiveTradesFile, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load position ledger", map[string]interface{}{"path": cfg.ActiveTradesFile})
		return nil, err
	}

	c.Risk, err = risk.NewRiskManager(RiskConfig(cfg), appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk manager")
		return nil, err
	}

	c.Reconciler, err = reconcile.NewReconciler(reconcile.Config{
		Ledger:              c.Ledger,
		Orders:              c.Executor,
		Prices:              c.Client,
		Journal:             c.Repo,
		Notifier:            c.Notifier,
		Logger:              appLogger,
		TrailingStopPercent: cfg.TrailingStopPercent,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize reconciler")
		return nil, err
	}

	c.Watcher, err = watcher.New(c.Client, watcher.Config{
		QuoteAsset: cfg.QuoteAsset,
		MaxSymbols: cfg.WatchlistMaxSymbols,
		MinScore:   cfg.WatchlistMinScore,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market watcher")
		return nil, err
	}

	// 7. Initialize Strategy
	kind, err := strategy.ParseKind(cfg.Strategy)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Unknown strategy")
		return nil, err
	}
	strat, err := strategy.New(kind, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading strategy")
		return nil, err
	}
	appLogger.Info(ctx, "Trading strategy initialized", map[string]interface{}{"strategy": strat.Name()})

	// 8. Initialize Orchestrator
	var refresher app.WatchlistRefresher
	if cfg.RefreshWatchlist {
		refresher = c.Watcher
	}
	c.Bot, err = app.NewBot(BotConfig(cfg), app.Deps{
		Market:     c.Client,
		Trader:     c.Executor,
		Ledger:     c.Ledger,
		Reconciler: c.Reconciler,
		Risk:       c.Risk,
		Strategy:   strat,
		Indicators: indicators.NewCalculator(),
		Notifier:   c.Notifier,
		Watcher:    refresher,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading bot")
		return nil, err
	}
	return c, nil
}

// NewNotifier always logs to the console and adds Telegram when configured.
func NewNotifier(cfg *config.Config, appLogger ports.Logger) (ports.Notifier, error) {
	targets := []ports.Notifier{notify.NewConsole(appLogger)}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, appLogger)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		targets = append(targets, tg)
	}
	return notify.NewMulti(targets...), nil
}

// RiskConfig maps configuration onto the risk manager settings.
func RiskConfig(cfg *config.Config) risk.RiskConfig {
	return risk.RiskConfig{
		MinBalance:              cfg.MinBalance,
		RiskPerTradePercent:     cfg.RiskPerTradePercent,
		FallbackPositionPercent: cfg.FallbackPositionPercent,
		MaxPositionSize:         cfg.MaxPositionSize,
		MaxTradeValuePercent:    cfg.MaxTradeValuePercent,
		MinTradeNotional:        cfg.MinTradeNotional,
		MaxTradeNotional:        cfg.MaxTradeNotional,
		MinRiskReward:           cfg.MinRiskReward,
		StopLossPercent:         cfg.StopLossPercent,
		TakeProfitPercent:       cfg.TakeProfitPercent,
		MaxOpenPositions:        cfg.MaxOpenPositions,
	}
}

// BotConfig maps configuration onto the orchestrator settings.
func BotConfig(cfg *config.Config) app.Config {
	return app.Config{
		QuoteAsset:           cfg.QuoteAsset,
		Symbols:              cfg.Symbols,
		Timeframe:            cfg.Timeframe,
		KlineLimit:           cfg.KlineLimit,
		ScanInterval:         cfg.ScanInterval,
		WatchlistFile:        cfg.WatchlistFile,
		WatchlistMaxSymbols:  cfg.WatchlistMaxSymbols,
		RefreshWatchlist:     cfg.RefreshWatchlist,
		EntryOrderType:       app.EntryOrderType(cfg.EntryOrderType),
		LimitOffsetPct:       cfg.LimitOrderOffsetPct,
		LimitWait:            cfg.LimitOrderWait,
		LimitMaxAttempts:     cfg.LimitOrderMaxAttempts,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		ErrorBackoffMin:      cfg.ErrorBackoffMin,
		ErrorBackoffMax:      cfg.ErrorBackoffMax,
	}
}
