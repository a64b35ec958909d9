package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1h", "4h")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64 // Base asset volume
}

// Closes extracts the close prices of the given klines in order.
func Closes(klines []*Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}
