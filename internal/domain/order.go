package domain

// OrderResult is the outcome of an order operation. Failed results carry an
// ErrorKind so callers can tell local validation from exchange rejections.
type OrderResult struct {
	Success        bool
	OrderID        string // Order id, or order-list id for OCO orders; empty when nothing was placed
	Status         OrderStatus
	Quantity       float64 // Quantity submitted after rounding
	FilledQuantity float64
	FilledPrice    float64 // Weighted average across fills
	Commission     float64
	ErrorMessage   string
	ErrorKind      ErrorKind
	Raw            interface{} // Exchange response, for diagnostics
}

// FailedOrder builds an unsuccessful result.
func FailedOrder(kind ErrorKind, msg string) *OrderResult {
	return &OrderResult{Success: false, ErrorKind: kind, ErrorMessage: msg}
}

// SymbolFilters holds the exchange trading rules for a symbol.
type SymbolFilters struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	Status      string
	StepSize    float64 // LOT_SIZE
	MinQty      float64
	MaxQty      float64
	TickSize    float64 // PRICE_FILTER
	MinPrice    float64
	MaxPrice    float64
	MinNotional float64 // NOTIONAL / MIN_NOTIONAL
}

// OCOState is the aggregate status of an OCO order list.
type OCOState string

const (
	OCOStateNew       OCOState = "NEW"
	OCOStateExecuting OCOState = "EXECUTING"
	OCOStateFilled    OCOState = "FILLED"
	OCOStateAllDone   OCOState = "ALL_DONE" // list finished with an executed leg
	OCOStateCanceled  OCOState = "CANCELED"
	OCOStateRejected  OCOState = "REJECTED"
	OCOStateExpired   OCOState = "EXPIRED"
)

// OCOStatus describes an OCO order list as reported by the exchange.
type OCOStatus struct {
	OrderListID    int64
	State          OCOState
	FilledPrice    float64 // Average price of the executed leg, 0 when unknown
	FilledQuantity float64
}

// Executed reports whether one of the legs filled.
func (s *OCOStatus) Executed() bool {
	return s.State == OCOStateFilled || s.State == OCOStateAllDone
}

// Active reports whether the OCO is still working on the exchange.
func (s *OCOStatus) Active() bool {
	return s.State == OCOStateExecuting || s.State == OCOStateNew
}
