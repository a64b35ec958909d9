package watcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Watchlist is the on-disk watchlist document.
type Watchlist struct {
	Timestamp    time.Time        `json:"timestamp"`
	TotalSymbols int              `json:"total_symbols"`
	QuoteAsset   string           `json:"quote_asset"`
	Symbols      []WatchlistEntry `json:"symbols"`
}

type WatchlistEntry struct {
	Symbol         string     `json:"symbol"`
	CurrentPrice   float64    `json:"current_price"`
	CompositeScore float64    `json:"composite_score"`
	Conditions     Conditions `json:"conditions"`
}

type Conditions struct {
	RelativeStrength Criterion `json:"relative_strength_vs_btc"`
	TrendStrength    Criterion `json:"trend_strength_adx"`
}

type Criterion struct {
	Value       *float64 `json:"value"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
}

// NewWatchlist builds the document for the given ranking.
func NewWatchlist(quote string, at time.Time, scores []*SymbolScore) *Watchlist {
	list := &Watchlist{
		Timestamp:    at,
		TotalSymbols: len(scores),
		QuoteAsset:   quote,
		Symbols:      make([]WatchlistEntry, 0, len(scores)),
	}
	for _, s := range scores {
		list.Symbols = append(list.Symbols, WatchlistEntry{
			Symbol:         s.Symbol,
			CurrentPrice:   s.CurrentPrice,
			CompositeScore: s.CompositeScore,
			Conditions: Conditions{
				RelativeStrength: Criterion{
					Value:       s.RelativeStrength,
					Status:      RelativeStrengthStatus(s.RelativeStrength),
					Description: "Performance relative to BTC over 7 days (%)",
				},
				TrendStrength: Criterion{
					Value:       s.ADX,
					Status:      ADXStatus(s.ADX),
					Description: "Average Directional Index - trend strength (0-100)",
				},
			},
		})
	}
	return list
}

// SymbolNames returns the listed symbols in ranking order.
func (l *Watchlist) SymbolNames() []string {
	out := make([]string, 0, len(l.Symbols))
	for _, e := range l.Symbols {
		if e.Symbol != "" {
			out = append(out, strings.ToUpper(e.Symbol))
		}
	}
	return out
}

// WriteWatchlist replaces the file at path with list.
func WriteWatchlist(path string, list *Watchlist) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode watchlist: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create watchlist directory %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write watchlist: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace watchlist: %w", err)
	}
	return nil
}

// LoadWatchlist reads the watchlist at path. A missing file returns
// os.ErrNotExist wrapped.
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist %s: %w", path, err)
	}
	var list Watchlist
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist %s: %w", path, err)
	}
	if list.Symbols == nil {
		return nil, errors.New("watchlist has no symbols field")
	}
	return &list, nil
}

func RelativeStrengthStatus(rs *float64) string {
	switch {
	case rs == nil:
		return "Unknown"
	case *rs >= 10:
		return "Very Strong"
	case *rs >= 5:
		return "Strong"
	case *rs >= 0:
		return "Positive"
	case *rs >= -5:
		return "Weak"
	default:
		return "Very Weak"
	}
}

func ADXStatus(adx *float64) string {
	switch {
	case adx == nil:
		return "Unknown"
	case *adx >= 50:
		return "Very Strong Trend"
	case *adx >= 25:
		return "Strong Trend"
	case *adx >= 15:
		return "Weak Trend"
	default:
		return "No Trend"
	}
}
