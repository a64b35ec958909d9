package execution

import (
	"context"
	"strings"
	"sync"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

// filterCache keeps symbol trading rules for the process lifetime.
// Lookups run under the lock so a miss costs exactly one exchange call;
// failed lookups are not cached.
type filterCache struct {
	mu    sync.Mutex
	items map[string]*domain.SymbolFilters
}

func newFilterCache() *filterCache {
	return &filterCache{items: make(map[string]*domain.SymbolFilters)}
}

func (c *filterCache) get(ctx context.Context, symbol string, lookup ports.MarketData) (*domain.SymbolFilters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.items[symbol]; ok {
		return f, nil
	}
	f, err := lookup.GetSymbolFilters(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.items[symbol] = f
	return f, nil
}

// baseAssetFromSymbol strips a known quote asset suffix, e.g. BTCUSDT -> BTC.
func baseAssetFromSymbol(symbol, quote string) string {
	if quote != "" && strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
		return strings.TrimSuffix(symbol, quote)
	}
	for _, q := range []string{"USDT", "FDUSD", "USDC", "BUSD", "BTC", "ETH", "BNB"} {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q)
		}
	}
	return symbol
}
