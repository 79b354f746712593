package syncengine

import (
	"context"

	"mtclient/src/errs"
	"mtclient/src/models"
	"mtclient/src/transport"
)

// -----------------------------------------------------------------------------

// RpcConnection is the thin request/reply facade of §4.6: no local state,
// no event subscriptions, every method a single correlated round trip
// through the shared transport.Client.
type RpcConnection struct {
	transport *transport.Client
}

// -----------------------------------------------------------------------------

func NewRpcConnection(transportClient *transport.Client) *RpcConnection {
	return &RpcConnection{transport: transportClient}
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetAccountInformation(ctx context.Context, instanceIndex string) (*models.AccountInformation, error) {
	reply, err := r.transport.Request(ctx, map[string]interface{}{"type": "getAccountInformation", "instanceIndex": instanceIndex})
	if err != nil {
		return nil, err
	}
	info, ok := decodeAccountInformation(reply["accountInformation"])
	if !ok {
		return nil, &errs.InternalError{Message: "malformed getAccountInformation reply"}
	}
	return info, nil
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetPositions(ctx context.Context, instanceIndex string) ([]*models.Position, error) {
	reply, err := r.transport.Request(ctx, map[string]interface{}{"type": "getPositions", "instanceIndex": instanceIndex})
	if err != nil {
		return nil, err
	}
	return decodePositions(reply["positions"]), nil
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetPosition(ctx context.Context, instanceIndex, positionID string) (*models.Position, error) {
	reply, err := r.transport.Request(ctx, map[string]interface{}{"type": "getPosition", "instanceIndex": instanceIndex, "positionId": positionID})
	if err != nil {
		return nil, err
	}
	if p := decodeSinglePosition(reply["position"]); p != nil {
		return p, nil
	}
	return nil, &errs.NotFoundError{Message: "position " + positionID + " not found"}
}

func decodeSinglePosition(v interface{}) *models.Position {
	ps := decodePositions([]interface{}{v})
	if len(ps) == 0 {
		return nil
	}
	return ps[0]
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetOrders(ctx context.Context, instanceIndex string) ([]*models.Order, error) {
	reply, err := r.transport.Request(ctx, map[string]interface{}{"type": "getOrders", "instanceIndex": instanceIndex})
	if err != nil {
		return nil, err
	}
	return decodeOrders(reply["orders"]), nil
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetOrder(ctx context.Context, instanceIndex, orderID string) (*models.Order, error) {
	reply, err := r.transport.Request(ctx, map[string]interface{}{"type": "getOrder", "instanceIndex": instanceIndex, "orderId": orderID})
	if err != nil {
		return nil, err
	}
	orders := decodeOrders([]interface{}{reply["order"]})
	if len(orders) == 0 {
		return nil, &errs.NotFoundError{Message: "order " + orderID + " not found"}
	}
	return orders[0], nil
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetHistoryOrdersByTicket(ctx context.Context, instanceIndex, ticket string) ([]*models.HistoryOrder, error) {
	return r.getHistoryOrders(ctx, map[string]interface{}{"type": "getHistoryOrdersByTicket", "instanceIndex": instanceIndex, "ticket": ticket})
}

func (r *RpcConnection) GetHistoryOrdersByPosition(ctx context.Context, instanceIndex, positionID string) ([]*models.HistoryOrder, error) {
	return r.getHistoryOrders(ctx, map[string]interface{}{"type": "getHistoryOrdersByPosition", "instanceIndex": instanceIndex, "positionId": positionID})
}

func (r *RpcConnection) GetHistoryOrdersByTimeRange(ctx context.Context, instanceIndex string, startTime, endTime string, offset, limit int) ([]*models.HistoryOrder, error) {
	return r.getHistoryOrders(ctx, map[string]interface{}{
		"type": "getHistoryOrdersByTimeRange", "instanceIndex": instanceIndex,
		"startTime": startTime, "endTime": endTime, "offset": offset, "limit": limit,
	})
}

func (r *RpcConnection) getHistoryOrders(ctx context.Context, payload map[string]interface{}) ([]*models.HistoryOrder, error) {
	reply, err := r.transport.Request(ctx, payload)
	if err != nil {
		return nil, err
	}
	orders := decodeOrders(reply["historyOrders"])
	out := make([]*models.HistoryOrder, 0, len(orders))
	arr, _ := reply["historyOrders"].([]interface{})
	for i, o := range orders {
		ho := &models.HistoryOrder{Order: *o}
		if i < len(arr) {
			if m, ok := arr[i].(map[string]interface{}); ok {
				ho.DoneTime = timeField(m, "doneTime")
			}
		}
		out = append(out, ho)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (r *RpcConnection) GetDealsByTicket(ctx context.Context, instanceIndex, ticket string) ([]*models.Deal, error) {
	return r.getDeals(ctx, map[string]interface{}{"type": "getDealsByTicket", "instanceIndex": instanceIndex, "ticket": ticket})
}

func (r *RpcConnection) GetDealsByPosition(ctx context.Context, instanceIndex, positionID string) ([]*models.Deal, error) {
	return r.getDeals(ctx, map[string]interface{}{"type": "getDealsByPosition", "instanceIndex": instanceIndex, "positionId": positionID})
}

func (r *RpcConnection) GetDealsByTimeRange(ctx context.Context, instanceIndex string, startTime, endTime string, offset, limit int) ([]*models.Deal, error) {
	return r.getDeals(ctx, map[string]interface{}{
		"type": "getDealsByTimeRange", "instanceIndex": instanceIndex,
		"startTime": startTime, "endTime": endTime, "offset": offset, "limit": limit,
	})
}

func (r *RpcConnection) getDeals(ctx context.Context, payload map[string]interface{}) ([]*models.Deal, error) {
	reply, err := r.transport.Request(ctx, payload)
	if err != nil {
		return nil, err
	}
	arr, _ := reply["deals"].([]interface{})
	out := make([]*models.Deal, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, &models.Deal{
			ID:         stringField(m, "id"),
			OrderID:    stringField(m, "orderId"),
			PositionID: stringField(m, "positionId"),
			Symbol:     stringField(m, "symbol"),
			Type:       stringField(m, "type"),
			Volume:     floatField(m, "volume"),
			Price:      floatField(m, "price"),
			Commission: floatField(m, "commission"),
			Swap:       floatField(m, "swap"),
			Profit:     floatField(m, "profit"),
			Time:       timeField(m, "time"),
			Platform:   models.Platform(stringField(m, "platform")),
		})
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// Trade submits a trade command and decodes the server's result (§4.6, §6).
func (r *RpcConnection) Trade(ctx context.Context, instanceIndex string, req *models.TradeRequest) (*models.TradeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &errs.ValidationError{Message: err.Error()}
	}

	payload := map[string]interface{}{
		"type":          "trade",
		"instanceIndex": instanceIndex,
		"trade":         req,
	}
	reply, err := r.transport.Request(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp := &models.TradeResponse{
		NumericCode: int(floatField(reply, "numericCode")),
		StringCode:  stringField(reply, "stringCode"),
		Message:     stringField(reply, "message"),
		OrderID:     stringField(reply, "orderId"),
		PositionID:  stringField(reply, "positionId"),
	}
	if resp.NumericCode != 0 && resp.NumericCode != 10009 {
		return resp, &errs.TradeError{Code: resp.NumericCode, StringCode: resp.StringCode, Message: resp.Message}
	}
	return resp, nil
}
