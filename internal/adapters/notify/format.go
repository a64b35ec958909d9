package notify

import (
	"fmt"
	"strings"
	"time"

	"cryptoSpotBot/internal/domain"
)

// TradeMessage renders a closed trade as plain text.
func TradeMessage(trade *domain.Trade) string {
	outcome := "LOSS"
	if trade.PNL > 0 {
		outcome = "PROFIT"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trade closed (%s): %s\n", outcome, trade.Symbol)
	fmt.Fprintf(&sb, "Reason: %s\n", trade.CloseReason)
	fmt.Fprintf(&sb, "Quantity: %.6f\n", trade.Quantity)
	fmt.Fprintf(&sb, "Entry: %.8g\n", trade.EntryPrice)
	fmt.Fprintf(&sb, "Exit: %.8g\n", trade.ExitPrice)
	fmt.Fprintf(&sb, "P&L: %.2f\n", trade.PNL)
	fmt.Fprintf(&sb, "Duration: %s", Duration(trade.ExitTime.Sub(trade.EntryTime)))
	return sb.String()
}

// SignalMessage renders an entry signal as plain text.
func SignalMessage(signal *domain.TradingSignal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Signal: %s %s\n", signal.Direction, signal.Symbol)
	fmt.Fprintf(&sb, "Strategy: %s\n", signal.StrategyName)
	fmt.Fprintf(&sb, "Price: %.8g\n", signal.Price)
	fmt.Fprintf(&sb, "Confidence: %.1f%%\n", signal.Confidence*100)
	if signal.StopLoss > 0 {
		fmt.Fprintf(&sb, "Stop Loss: %.8g\n", signal.StopLoss)
	} else {
		sb.WriteString("Stop Loss: N/A\n")
	}
	if signal.TakeProfit > 0 {
		fmt.Fprintf(&sb, "Take Profit: %.8g", signal.TakeProfit)
	} else {
		sb.WriteString("Take Profit: N/A")
	}
	return sb.String()
}

// ErrorMessage prefixes an operational error for delivery.
func ErrorMessage(message string) string {
	return "TRADING ERROR: " + message
}

// Duration renders a holding period as minutes, hours or days.
func Duration(d time.Duration) string {
	switch {
	case d <= 0:
		return "N/A"
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}
