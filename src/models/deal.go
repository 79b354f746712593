package models

import "time"

// Deal is an executed trade record, the unit HistoryStorage persists (§2).
type Deal struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId,omitempty"`
	PositionID  string    `json:"positionId,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	Type        string    `json:"type,omitempty"`
	Volume      float64   `json:"volume,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Commission  float64   `json:"commission,omitempty"`
	Swap        float64   `json:"swap,omitempty"`
	Profit      float64   `json:"profit,omitempty"`
	Time        time.Time `json:"time"`
	Platform    Platform  `json:"platform,omitempty"`
}

// HistoryOrder is a completed/cancelled order record returned by the
// getHistoryOrdersBy* request family (§4.6).
type HistoryOrder struct {
	Order
	DoneTime time.Time `json:"doneTime"`
}
