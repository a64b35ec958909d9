package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	// allOrdersLimit bounds the history scanned when resolving an OCO list.
	allOrdersLimit = 500
)

// Client implements the ports.ExchangeClient interface for Binance spot using the go-binance library.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	limiter    *rate.Limiter
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
	// RateLimitPerSec throttles outgoing requests (e.g., 10). Zero disables throttling.
	RateLimitPerSec float64
	RateBurst       int
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// wait blocks until the rate limiter admits another request.
func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	return nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		mappedErr := mapAPIError(apiErr)
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "i/o timeout") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// mapAPIError maps spot API error codes to ports sentinels.
func mapAPIError(apiErr *common.APIError) error {
	switch apiErr.Code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1001, -1006, -1007, -1008: // Disconnected, unexpected response, timeout, server busy
		return ports.ErrExchangeUnavailable
	case -1021: // Timestamp for this request is outside of the recvWindow
		return ports.ErrTimeout
	case -1022: // Signature for this request is not valid
		return ports.ErrAuthenticationFailed
	case -1013: // Filter failure (LOT_SIZE, PRICE_FILTER, NOTIONAL ...)
		return ports.ErrFilterFailure
	case -1121: // Invalid symbol
		return ports.ErrSymbolNotFound
	case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1114, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010: // New order rejected
		if strings.Contains(strings.ToLower(apiErr.Message), "insufficient balance") {
			return ports.ErrInsufficientFunds
		}
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel rejected, usually "Unknown order sent."
		if strings.Contains(strings.ToLower(apiErr.Message), "unknown order") {
			return ports.ErrOrderNotFound
		}
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format invalid / invalid key, IP, or permissions
		return ports.ErrInvalidAPIKeys
	default:
		return ports.ErrUnknown
	}
}

// SetServerTime synchronizes the client's time offset with the server's time.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if _, err := c.spotClient.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetServerTime retrieves the current server time from the exchange.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	op := "GetServerTime"
	if err := c.wait(ctx, op); err != nil {
		return time.Time{}, err
	}
	serverTimeMs, err := c.spotClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, c.handleError(ctx, err, op)
	}
	return time.UnixMilli(serverTimeMs), nil
}

// GetPrice retrieves the latest traded price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetPrice"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(prices) == 0 {
		return 0, c.handleError(ctx, fmt.Errorf("no price data returned for symbol %s", symbol), op)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// GetFreeBalance retrieves the free (unlocked) balance of an asset. An asset
// absent from the account has a balance of zero.
func (c *Client) GetFreeBalance(ctx context.Context, asset string) (float64, error) {
	op := "GetFreeBalance"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	account, err := c.spotClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Balances {
		if bal.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(bal.Free, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.Free, asset, err)
			return 0, c.handleError(ctx, parseErr, op)
		}
		return free, nil
	}
	c.logger.Debug(ctx, op+": asset not held", map[string]interface{}{"asset": asset})
	return 0, nil
}

// GetSymbolFilters retrieves the trading rules of a symbol from exchange info.
func (c *Client) GetSymbolFilters(ctx context.Context, symbol string) (*domain.SymbolFilters, error) {
	op := "GetSymbolFilters"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	info, err := c.spotClient.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	for i := range info.Symbols {
		if info.Symbols[i].Symbol == symbol {
			filters, err := translateSymbolFilters(&info.Symbols[i])
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			return filters, nil
		}
	}
	return nil, fmt.Errorf("%s failed: %w: %s", op, ports.ErrSymbolNotFound, symbol)
}

// GetTradingSymbols returns every symbol in TRADING status quoted in quoteAsset.
func (c *Client) GetTradingSymbols(ctx context.Context, quoteAsset string) (map[string]bool, error) {
	op := "GetTradingSymbols"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	info, err := c.spotClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	out := make(map[string]bool)
	for _, s := range info.Symbols {
		if s.QuoteAsset == quoteAsset && s.Status == "TRADING" {
			out[s.Symbol] = true
		}
	}
	return out, nil
}

// Get24hTickers retrieves rolling 24h statistics for every symbol.
func (c *Client) Get24hTickers(ctx context.Context) ([]*ports.Ticker24h, error) {
	op := "Get24hTickers"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	stats, err := c.spotClient.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	out := make([]*ports.Ticker24h, 0, len(stats))
	for _, s := range stats {
		out = append(out, translateTicker(s))
	}
	return out, nil
}

// GetKlines retrieves historical klines/candlestick data for the given symbol.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	binanceKlines, err := c.spotClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	domainKlines := make([]*domain.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		dk, err := translateBinanceKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		domainKlines = append(domainKlines, dk)
	}
	return domainKlines, nil
}
