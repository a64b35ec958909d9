package binanceclient

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	"github.com/adshao/go-binance/v2"
)

// --- Translation Helpers ---

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func translateCreateOrderResponse(order *binance.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	resp := &ports.OrderResponse{
		OrderID:            order.OrderID,
		OrderListID:        -1,
		Symbol:             order.Symbol,
		ClientOrderID:      order.ClientOrderID,
		Price:              parseFloat(order.Price),
		OrigQuantity:       parseFloat(order.OrigQuantity),
		ExecutedQty:        parseFloat(order.ExecutedQuantity),
		CumulativeQuoteQty: parseFloat(order.CummulativeQuoteQuantity),
		Status:             domain.OrderStatus(order.Status),
		Type:               string(order.Type),
		Side:               string(order.Side),
		Timestamp:          time.UnixMilli(order.TransactTime),
	}
	for _, f := range order.Fills {
		if f == nil {
			continue
		}
		resp.Fills = append(resp.Fills, ports.Fill{
			Price:           parseFloat(f.Price),
			Quantity:        parseFloat(f.Quantity),
			Commission:      parseFloat(f.Commission),
			CommissionAsset: f.CommissionAsset,
		})
	}
	return resp
}

func translateOrder(order *binance.Order) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	return &ports.OrderResponse{
		OrderID:            order.OrderID,
		OrderListID:        order.OrderListId,
		Symbol:             order.Symbol,
		ClientOrderID:      order.ClientOrderID,
		Price:              parseFloat(order.Price),
		StopPrice:          parseFloat(order.StopPrice),
		OrigQuantity:       parseFloat(order.OrigQuantity),
		ExecutedQty:        parseFloat(order.ExecutedQuantity),
		CumulativeQuoteQty: parseFloat(order.CummulativeQuoteQuantity),
		Status:             domain.OrderStatus(order.Status),
		Type:               string(order.Type),
		Side:               string(order.Side),
		Timestamp:          time.UnixMilli(order.UpdateTime),
	}
}

func translateOrders(orders []*binance.Order) []*ports.OrderResponse {
	out := make([]*ports.OrderResponse, 0, len(orders))
	for _, o := range orders {
		if r := translateOrder(o); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func translateCancelResponse(res *binance.CancelOrderResponse) *ports.OrderResponse {
	if res == nil {
		return nil
	}
	return &ports.OrderResponse{
		OrderID:            res.OrderID,
		OrderListID:        -1,
		Symbol:             res.Symbol,
		ClientOrderID:      res.ClientOrderID,
		Price:              parseFloat(res.Price),
		OrigQuantity:       parseFloat(res.OrigQuantity),
		ExecutedQty:        parseFloat(res.ExecutedQuantity),
		CumulativeQuoteQty: parseFloat(res.CummulativeQuoteQuantity),
		Status:             domain.OrderStatus(res.Status),
		Type:               string(res.Type),
		Side:               string(res.Side),
		Timestamp:          time.UnixMilli(res.TransactTime),
	}
}

func translateOCOResponse(res *binance.CreateOCOResponse) *ports.OCOResponse {
	if res == nil {
		return nil
	}
	resp := &ports.OCOResponse{
		OrderListID:     res.OrderListID,
		Symbol:          res.Symbol,
		ListOrderStatus: res.ListOrderStatus,
		Timestamp:       time.UnixMilli(res.TransactionTime),
	}
	for _, o := range res.Orders {
		if o == nil {
			continue
		}
		resp.Orders = append(resp.Orders, &ports.OrderResponse{
			OrderID:       o.OrderID,
			OrderListID:   res.OrderListID,
			Symbol:        o.Symbol,
			ClientOrderID: o.ClientOrderID,
		})
	}
	return resp
}

func translateTicker(s *binance.PriceChangeStats) *ports.Ticker24h {
	return &ports.Ticker24h{
		Symbol:             s.Symbol,
		LastPrice:          parseFloat(s.LastPrice),
		PriceChangePercent: parseFloat(s.PriceChangePercent),
		QuoteVolume:        parseFloat(s.QuoteVolume),
	}
}

// translateSymbolFilters reads LOT_SIZE, PRICE_FILTER and NOTIONAL (or the
// legacy MIN_NOTIONAL) from the raw exchange-info filter list.
func translateSymbolFilters(s *binance.Symbol) (*domain.SymbolFilters, error) {
	if s == nil {
		return nil, errors.New("received nil symbol info")
	}
	out := &domain.SymbolFilters{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		Status:     s.Status,
	}
	for _, f := range s.Filters {
		kind, _ := f["filterType"].(string)
		switch kind {
		case "LOT_SIZE":
			out.StepSize = filterValue(f, "stepSize")
			out.MinQty = filterValue(f, "minQty")
			out.MaxQty = filterValue(f, "maxQty")
		case "PRICE_FILTER":
			out.TickSize = filterValue(f, "tickSize")
			out.MinPrice = filterValue(f, "minPrice")
			out.MaxPrice = filterValue(f, "maxPrice")
		case "NOTIONAL", "MIN_NOTIONAL":
			if v := filterValue(f, "minNotional"); v > out.MinNotional {
				out.MinNotional = v
			}
		}
	}
	if out.StepSize <= 0 || out.TickSize <= 0 {
		return nil, fmt.Errorf("symbol %s is missing LOT_SIZE or PRICE_FILTER rules", s.Symbol)
	}
	return out, nil
}

func filterValue(f map[string]interface{}, key string) float64 {
	switch v := f[key].(type) {
	case string:
		return parseFloat(v)
	case float64:
		return v
	default:
		return 0
	}
}

func translateBinanceKline(bk *binance.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
