package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeJournal interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

const defaultDBPath = "./data/trading_bot.db"

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the trade journal at cfg.DBPath and makes
// sure the schema exists.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	ctx := context.Background()
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	fail := func(err error) (*Repository, error) {
		cfg.Logger.Error(ctx, err, "SQLite journal initialization failed", map[string]interface{}{"path": dbPath})
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fail(fmt.Errorf("failed to create journal directory: %w", err))
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fail(fmt.Errorf("failed to open journal: %w: %w", ports.ErrDBConnection, err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fail(fmt.Errorf("failed to reach journal: %w: %w", ports.ErrDBConnection, err))
	}
	// One writer: the bot records trades from a single goroutine.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}
	if err := repo.initializeSchema(ctx); err != nil {
		db.Close()
		return fail(err)
	}
	cfg.Logger.Info(ctx, "Trade journal ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		close_reason TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_exit_time ON trade_history (symbol, exit_time);
	CREATE INDEX IF NOT EXISTS idx_trade_history_exit_time ON trade_history (exit_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeJournal Implementation ---

// RecordTrade saves a closed trade. Recording the same trade id twice yields ErrDuplicateEntry.
func (r *Repository) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trade_history (trade_id, symbol, direction, entry_price, exit_price, quantity, pnl,
	                           entry_time, exit_time, status, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	status := trade.Status
	if status == "" {
		status = domain.TradeStatusClosed
	}
	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.Symbol, string(trade.Direction), trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.PNL,
		trade.EntryTime.UTC(), trade.ExitTime.UTC(), string(status), string(trade.CloseReason))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("trade %s already recorded: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade history for symbol %s: %w: %w", trade.Symbol, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Trade history recorded", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "pnl": trade.PNL})
	return nil
}

// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT trade_id, symbol, direction, entry_price, exit_price, quantity, pnl,
	       entry_time, exit_time, status, close_reason
	FROM trade_history
	WHERE symbol = ? ORDER BY exit_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// FindAll retrieves every recorded trade, oldest exit first.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	const query = `
	SELECT trade_id, symbol, direction, entry_price, exit_price, quantity, pnl,
	       entry_time, exit_time, status, close_reason
	FROM trade_history
	ORDER BY exit_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// CountToday counts the trades that closed since local midnight.
func (r *Repository) CountToday(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM trade_history WHERE exit_time >= ? AND exit_time < ?`
	now := r.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	var count int
	err := r.db.QueryRowContext(ctx, query, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades today: %w: %w", ports.ErrQueryFailed, err)
	}
	return count, nil
}

// GetTotalProfit sums the PNL of all recorded trades.
func (r *Repository) GetTotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(pnl), 0) FROM trade_history`
	var totalProfit float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&totalProfit); err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w: %w", ports.ErrQueryFailed, err)
	}
	return totalProfit, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func collectTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %w", err)
	}
	return trades, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	th := &domain.Trade{}
	var direction, status string
	var closeReason sql.NullString
	err := s.Scan(
		&th.ID, &th.Symbol, &direction, &th.EntryPrice, &th.ExitPrice, &th.Quantity, &th.PNL,
		&th.EntryTime, &th.ExitTime, &status, &closeReason)
	if err != nil {
		return nil, err
	}
	th.Direction = domain.OrderSide(direction)
	th.Status = domain.TradeStatus(status)
	if closeReason.Valid && closeReason.String != "" {
		th.CloseReason = domain.CloseReason(closeReason.String)
	} else {
		th.CloseReason = domain.CloseReasonUnknown
	}
	return th, nil
}
