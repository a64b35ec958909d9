package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderStatus mirrors the exchange order status values.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no further fills or cancels are possible for the order.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss     CloseReason = "SL"
	CloseReasonTakeProfit   CloseReason = "TP"
	CloseReasonOCOFilled    CloseReason = "OCO_FILLED"
	CloseReasonOCOCanceled  CloseReason = "OCO_CANCELED" // Protection removed on the exchange, nothing sold
	CloseReasonManual       CloseReason = "MANUAL"
	CloseReasonUnknown      CloseReason = "Unknown"
	CloseReasonTrailingStop CloseReason = "TRAILING_STOP"
)

// TradeStatus is the lifecycle state recorded on a Trade.
type TradeStatus string

const (
	TradeStatusClosed TradeStatus = "CLOSED"
)

// ErrorKind classifies why an order operation failed.
type ErrorKind string

const (
	ErrorKindNone                ErrorKind = ""
	ErrorKindLocalValidation     ErrorKind = "local_validation"
	ErrorKindInsufficientBalance ErrorKind = "insufficient_balance"
	ErrorKindFilterFailure       ErrorKind = "filter_failure"
	ErrorKindInvalidParameters   ErrorKind = "invalid_parameters"
	ErrorKindTransient           ErrorKind = "transient"
	ErrorKindRejected            ErrorKind = "rejected"
)
