package models

import "time"

// OrderType enumerates the pending-order variants of §3/§6.
type OrderType string

const (
	OrderTypeBuy            OrderType = "ORDER_TYPE_BUY"
	OrderTypeSell           OrderType = "ORDER_TYPE_SELL"
	OrderTypeBuyLimit       OrderType = "ORDER_TYPE_BUY_LIMIT"
	OrderTypeSellLimit      OrderType = "ORDER_TYPE_SELL_LIMIT"
	OrderTypeBuyStop        OrderType = "ORDER_TYPE_BUY_STOP"
	OrderTypeSellStop       OrderType = "ORDER_TYPE_SELL_STOP"
	OrderTypeBuyStopLimit   OrderType = "ORDER_TYPE_BUY_STOP_LIMIT"
	OrderTypeSellStopLimit  OrderType = "ORDER_TYPE_SELL_STOP_LIMIT"
)

// IsBuyVariant reports whether this order type resolves against the ask
// price on a tick (§4.4 step 3): all BUY_* pending order variants do.
func (t OrderType) IsBuyVariant() bool {
	switch t {
	case OrderTypeBuy, OrderTypeBuyLimit, OrderTypeBuyStop, OrderTypeBuyStopLimit:
		return true
	default:
		return false
	}
}

// Order is a pending order, keyed by ID within a single instance (§3, inv. 1).
type Order struct {
	ID             string     `json:"id"`
	Type           OrderType  `json:"type"`
	State          string     `json:"state"`
	Symbol         string     `json:"symbol"`
	OpenPrice      float64    `json:"openPrice"`
	CurrentPrice   float64    `json:"currentPrice"`
	Volume         float64    `json:"volume"`
	CurrentVolume  float64    `json:"currentVolume"`
	PositionID     string     `json:"positionId,omitempty"`
	Time           time.Time  `json:"time"`
	DoneTime       *time.Time `json:"doneTime,omitempty"`
	Platform       Platform   `json:"platform"`
	Comment        string     `json:"comment,omitempty"`
	BrokerComment  string     `json:"brokerComment,omitempty"`
	ClientID       string     `json:"clientId,omitempty"`

	UpdateSequenceNumber        int64   `json:"updateSequenceNumber,omitempty"`
	AccountCurrencyExchangeRate float64 `json:"accountCurrencyExchangeRate,omitempty"`
}

func (o *Order) Clone() *Order {
	cp := *o
	if o.DoneTime != nil {
		v := *o.DoneTime
		cp.DoneTime = &v
	}
	return &cp
}
