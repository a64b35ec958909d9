package binanceclient

import (
	"context"
	"fmt"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"

	"github.com/adshao/go-binance/v2"
)

// PlaceMarketOrder places a market order and returns the full fill report.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, clientOrderID string) (*ports.OrderResponse, error) {
	op := "PlaceMarketOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	svc := c.spotClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(quantity).
		NewOrderRespType(binance.NewOrderRespTypeFULL)
	if clientOrderID != "" {
		svc = svc.NewClientOrderID(clientOrderID)
	}
	order, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateCreateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":      symbol,
		"side":        side,
		"quantity":    quantity,
		"orderID":     resp.OrderID,
		"executedQty": resp.ExecutedQty,
		"avgPrice":    resp.AvgPrice(),
	})
	return resp, nil
}

// PlaceLimitOrder places a GTC limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price, clientOrderID string) (*ports.OrderResponse, error) {
	op := "PlaceLimitOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	svc := c.spotClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(quantity).
		Price(price).
		NewOrderRespType(binance.NewOrderRespTypeFULL)
	if clientOrderID != "" {
		svc = svc.NewClientOrderID(clientOrderID)
	}
	order, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateCreateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   symbol,
		"side":     side,
		"quantity": quantity,
		"price":    price,
		"orderID":  resp.OrderID,
		"status":   resp.Status,
	})
	return resp, nil
}

// PlaceOCOOrder places a take-profit limit + stop-limit order list.
func (c *Client) PlaceOCOOrder(ctx context.Context, req ports.OCORequest) (*ports.OCOResponse, error) {
	op := "PlaceOCOOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"symbol":         req.Symbol,
		"side":           req.Side,
		"quantity":       req.Quantity,
		"price":          req.Price,
		"stopPrice":      req.StopPrice,
		"stopLimitPrice": req.StopLimitPrice,
	}
	c.logger.Debug(ctx, op+": submitting order list", fields)

	svc := c.spotClient.NewCreateOCOService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Quantity(req.Quantity).
		Price(req.Price).
		StopPrice(req.StopPrice).
		StopLimitPrice(req.StopLimitPrice).
		StopLimitTimeInForce(binance.TimeInForceTypeGTC)
	if req.ListClientOrderID != "" {
		svc = svc.ListClientOrderID(req.ListClientOrderID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOCOResponse(res)
	fields["orderListID"] = resp.OrderListID
	c.logger.Info(ctx, op+" successful", fields)
	return resp, nil
}

// GetOrder returns the current state of an order.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	op := "GetOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	order, err := c.spotClient.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateOrder(order), nil
}

// CancelOrder cancels an open order on Binance.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	op := "CancelOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	res, err := c.spotClient.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateCancelResponse(res)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": resp.Status})
	return resp, nil
}

// CancelOCOOrder cancels both legs of an order list.
func (c *Client) CancelOCOOrder(ctx context.Context, symbol string, orderListID int64) error {
	op := "CancelOCOOrder"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if _, err := c.spotClient.NewCancelOCOService().Symbol(symbol).OrderListID(orderListID).Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderListID": orderListID})
	return nil
}

// GetOpenOrders lists open orders for a symbol, OCO legs included.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]*ports.OrderResponse, error) {
	op := "GetOpenOrders"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	orders, err := c.spotClient.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return translateOrders(orders), nil
}

// GetOCOStatus derives the state of an order list from its legs: open legs
// mean the list is still executing, otherwise the recent order history decides.
func (c *Client) GetOCOStatus(ctx context.Context, symbol string, orderListID int64) (*domain.OCOStatus, error) {
	op := "GetOCOStatus"
	open, err := c.GetOpenOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if legs := legsOf(open, orderListID); len(legs) > 0 {
		return &domain.OCOStatus{OrderListID: orderListID, State: domain.OCOStateExecuting}, nil
	}

	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	history, err := c.spotClient.NewListOrdersService().Symbol(symbol).Limit(allOrdersLimit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	status, err := classifyOCOLegs(orderListID, legsOf(translateOrders(history), orderListID))
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	c.logger.Debug(ctx, op+": resolved from order history", map[string]interface{}{
		"symbol":      symbol,
		"orderListID": orderListID,
		"state":       status.State,
		"filledPrice": status.FilledPrice,
	})
	return status, nil
}

func legsOf(orders []*ports.OrderResponse, orderListID int64) []*ports.OrderResponse {
	var legs []*ports.OrderResponse
	for _, o := range orders {
		if o.OrderListID == orderListID {
			legs = append(legs, o)
		}
	}
	return legs
}

// classifyOCOLegs maps the legs of a finished order list to a list state.
// Any executed quantity makes the list ALL_DONE with the weighted exit price.
func classifyOCOLegs(orderListID int64, legs []*ports.OrderResponse) (*domain.OCOStatus, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: order list %d", ports.ErrOrderNotFound, orderListID)
	}

	status := &domain.OCOStatus{OrderListID: orderListID}
	var quote, qty float64
	rejected, expired, working := false, false, false
	for _, leg := range legs {
		switch leg.Status {
		case domain.OrderStatusNew, domain.OrderStatusPartiallyFilled, domain.OrderStatusPendingCancel:
			working = true
		case domain.OrderStatusRejected:
			rejected = true
		case domain.OrderStatusExpired:
			expired = true
		}
		if leg.ExecutedQty > 0 {
			quote += leg.CumulativeQuoteQty
			qty += leg.ExecutedQty
		}
	}

	switch {
	case working:
		status.State = domain.OCOStateExecuting
	case qty > 0:
		status.State = domain.OCOStateAllDone
		status.FilledQuantity = qty
		status.FilledPrice = quote / qty
	case rejected:
		status.State = domain.OCOStateRejected
	case expired:
		status.State = domain.OCOStateExpired
	default:
		status.State = domain.OCOStateCanceled
	}
	return status, nil
}
