package domain

import "time"

// Position is a locally tracked spot holding with its intended exit levels.
// At most one Position exists per symbol.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	EntryTime    time.Time `json:"entry_time"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	TrailingStop *float64  `json:"trailing_stop"`
	OCOOrderID   *string   `json:"oco_order_id"` // Exchange order-list id of the protecting OCO
}

// IsProtected reports whether an OCO order is recorded for the position.
func (p *Position) IsProtected() bool {
	return p.OCOOrderID != nil && *p.OCOOrderID != ""
}

// Exposure is the position value at the current price.
func (p *Position) Exposure() float64 {
	return p.Quantity * p.CurrentPrice
}

// UnrealizedPnL is the open profit at the current price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * p.Quantity
}

// Clone returns a deep copy so callers can't mutate ledger state by accident.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	if p.TrailingStop != nil {
		v := *p.TrailingStop
		c.TrailingStop = &v
	}
	if p.OCOOrderID != nil {
		v := *p.OCOOrderID
		c.OCOOrderID = &v
	}
	return &c
}
