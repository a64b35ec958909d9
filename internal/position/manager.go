// Package position owns the local ledger of open spot positions.
package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

// schemaVersion is written into every ledger file.
const schemaVersion = 1

// ledgerFile is the on-disk envelope.
type ledgerFile struct {
	Version   int                         `json:"version"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Positions map[string]*domain.Position `json:"positions"`
}

// Manager keeps open positions in memory and rewrites the JSON ledger after
// every mutation.
//
// The ledger is advisory and single-process: there is no file locking, so two
// bot instances must never share the same file.
type Manager struct {
	path      string
	logger    ports.Logger
	mu        sync.RWMutex
	positions map[string]*domain.Position
	now       func() time.Time
}

// NewManager loads the ledger at path. A missing file starts an empty ledger.
func NewManager(path string, logger ports.Logger) (*Manager, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: position ledger path is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, errors.New("logger is required for position manager")
	}
	m := &Manager{
		path:      path,
		logger:    logger,
		positions: make(map[string]*domain.Position),
		now:       time.Now,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	logger.Info(context.Background(), "Position ledger loaded", map[string]interface{}{
		"path":      path,
		"positions": len(m.positions),
	})
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read position ledger %s: %w", m.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to parse position ledger %s: %w", m.path, err)
	}

	positions := make(map[string]*domain.Position)
	if _, versioned := probe["version"]; versioned {
		var file ledgerFile
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse position ledger %s: %w", m.path, err)
		}
		if file.Version > schemaVersion {
			return fmt.Errorf("%w: position ledger version %d is newer than supported %d",
				ports.ErrConfigurationError, file.Version, schemaVersion)
		}
		for k, v := range file.Positions {
			positions[k] = v
		}
	} else {
		// Legacy layout: a flat symbol -> position map.
		if err := json.Unmarshal(data, &positions); err != nil {
			return fmt.Errorf("failed to parse legacy position ledger %s: %w", m.path, err)
		}
	}

	for symbol, p := range positions {
		if p == nil {
			delete(positions, symbol)
			continue
		}
		if p.Symbol == "" {
			p.Symbol = symbol
		}
	}
	m.positions = positions
	return nil
}

// save must be called with the write lock held.
func (m *Manager) save() error {
	file := ledgerFile{
		Version:   schemaVersion,
		UpdatedAt: m.now().UTC(),
		Positions: m.positions,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode position ledger: %w", err)
	}
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write position ledger: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace position ledger: %w", err)
	}
	return nil
}

// GetPositions returns copies of all open positions keyed by symbol.
func (m *Manager) GetPositions() map[string]*domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*domain.Position, len(m.positions))
	for k, v := range m.positions {
		out[k] = v.Clone()
	}
	return out
}

// Symbols returns the symbols with an open position, sorted.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.positions))
	for k := range m.positions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetPosition returns a copy of the symbol's position.
func (m *Manager) GetPosition(symbol string) (*domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, symbol)
	}
	return p.Clone(), nil
}

// HasPosition reports whether symbol has an open position.
func (m *Manager) HasPosition(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[symbol]
	return ok
}

// AddPosition records a new position. Only one position per symbol is allowed.
func (m *Manager) AddPosition(ctx context.Context, p *domain.Position) error {
	if p == nil || p.Symbol == "" {
		return fmt.Errorf("%w: position with symbol required", ports.ErrInvalidRequest)
	}
	if p.Quantity <= 0 || p.EntryPrice <= 0 {
		return fmt.Errorf("%w: position %s needs positive quantity and entry price", ports.ErrInvalidRequest, p.Symbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[p.Symbol]; ok {
		return fmt.Errorf("%w: %s", ports.ErrPositionExists, p.Symbol)
	}
	stored := p.Clone()
	if stored.EntryTime.IsZero() {
		stored.EntryTime = m.now().UTC()
	}
	if stored.CurrentPrice == 0 {
		stored.CurrentPrice = stored.EntryPrice
	}
	m.positions[p.Symbol] = stored
	if err := m.save(); err != nil {
		delete(m.positions, p.Symbol)
		return err
	}

	m.logger.Info(ctx, "Position added", map[string]interface{}{
		"symbol":      stored.Symbol,
		"quantity":    stored.Quantity,
		"entry_price": stored.EntryPrice,
		"stop_loss":   stored.StopLoss,
		"take_profit": stored.TakeProfit,
	})
	return nil
}

// mutate applies fn to a copy of the stored position and keeps the copy only
// when the ledger was written.
func (m *Manager) mutate(symbol string, fn func(p *domain.Position)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrPositionNotFound, symbol)
	}
	next := current.Clone()
	fn(next)
	m.positions[symbol] = next
	if err := m.save(); err != nil {
		m.positions[symbol] = current
		return err
	}
	return nil
}

// UpdatePosition refreshes the current market price of a position.
func (m *Manager) UpdatePosition(symbol string, currentPrice float64) error {
	return m.mutate(symbol, func(p *domain.Position) {
		p.CurrentPrice = currentPrice
	})
}

// UpdatePositionData replaces the quantity and entry price, e.g. after a
// partial fill settles.
func (m *Manager) UpdatePositionData(symbol string, quantity, entryPrice float64) error {
	if quantity <= 0 || entryPrice <= 0 {
		return fmt.Errorf("%w: quantity and entry price must be positive", ports.ErrInvalidRequest)
	}
	return m.mutate(symbol, func(p *domain.Position) {
		p.Quantity = quantity
		p.EntryPrice = entryPrice
	})
}

// UpdatePositionOCOID records (or clears, with an empty id) the protecting OCO.
func (m *Manager) UpdatePositionOCOID(symbol, ocoOrderID string) error {
	return m.mutate(symbol, func(p *domain.Position) {
		if ocoOrderID == "" {
			p.OCOOrderID = nil
			return
		}
		id := ocoOrderID
		p.OCOOrderID = &id
	})
}

// UpdateStopLoss sets new exit levels. A zero takeProfit keeps the current one.
func (m *Manager) UpdateStopLoss(symbol string, stopLoss, takeProfit float64) error {
	return m.mutate(symbol, func(p *domain.Position) {
		p.StopLoss = stopLoss
		if takeProfit > 0 {
			p.TakeProfit = takeProfit
		}
	})
}

// UpdateTrailingStop trails the stop percent of the entry price below price.
// The trailing stop only moves up. It returns whether the stop changed.
func (m *Manager) UpdateTrailingStop(symbol string, price, percent float64) (bool, error) {
	if percent <= 0 || price <= 0 {
		return false, nil
	}
	changed := false
	err := m.mutate(symbol, func(p *domain.Position) {
		candidate := price - p.EntryPrice*percent/100
		if candidate <= 0 {
			return
		}
		if p.TrailingStop == nil || candidate > *p.TrailingStop {
			v := candidate
			p.TrailingStop = &v
			changed = true
		}
	})
	return changed, err
}

// ClosePosition removes the position and returns the resulting Trade with
// PNL = (exit − entry) × quantity.
func (m *Manager) ClosePosition(ctx context.Context, symbol string, exitPrice float64, reason domain.CloseReason) (*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPositionNotFound, symbol)
	}

	exitTime := m.now().UTC()
	trade := &domain.Trade{
		ID:          fmt.Sprintf("%s_%d", symbol, exitTime.Unix()),
		Symbol:      symbol,
		Direction:   domain.Buy,
		Quantity:    p.Quantity,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exitPrice,
		EntryTime:   p.EntryTime,
		ExitTime:    exitTime,
		Status:      domain.TradeStatusClosed,
		PNL:         (exitPrice - p.EntryPrice) * p.Quantity,
		CloseReason: reason,
	}

	delete(m.positions, symbol)
	if err := m.save(); err != nil {
		m.positions[symbol] = p
		return nil, err
	}

	m.logger.Info(ctx, "Position closed", map[string]interface{}{
		"symbol":     symbol,
		"exit_price": exitPrice,
		"pnl":        trade.PNL,
		"reason":     reason,
	})
	return trade, nil
}

// RemovePosition deletes a position without producing a Trade.
func (m *Manager) RemovePosition(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrPositionNotFound, symbol)
	}
	delete(m.positions, symbol)
	if err := m.save(); err != nil {
		m.positions[symbol] = p
		return err
	}
	m.logger.Info(ctx, "Position removed", map[string]interface{}{"symbol": symbol})
	return nil
}

// TotalExposure sums quantity × current price across positions.
func (m *Manager) TotalExposure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.positions {
		total += p.Exposure()
	}
	return total
}

// TotalUnrealizedPnL sums the open PnL across positions.
func (m *Manager) TotalUnrealizedPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, p := range m.positions {
		total += p.UnrealizedPnL()
	}
	return total
}
