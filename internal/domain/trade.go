package domain

import "time"

// Trade represents a closed position.
type Trade struct {
	ID          string      // SYMBOL_<unix seconds>
	Symbol      string      // Trading symbol (e.g., "BTCUSDT")
	Direction   OrderSide   // Entry side; always BUY for spot longs
	Quantity    float64     // Size of the position traded
	EntryPrice  float64     // Price at which the position was entered
	ExitPrice   float64     // Price at which the position was exited
	EntryTime   time.Time   // Timestamp when the position was entered
	ExitTime    time.Time   // Timestamp when the position was exited
	Status      TradeStatus // Always CLOSED for now
	PNL         float64     // Profit and Loss for this trade
	CloseReason CloseReason // Reason why the position was closed (SL, TP, etc.)
}
