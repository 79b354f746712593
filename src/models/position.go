package models

import "time"

// PositionType is BUY or SELL.
type PositionType string

const (
	PositionTypeBuy  PositionType = "POSITION_TYPE_BUY"
	PositionTypeSell PositionType = "POSITION_TYPE_SELL"
)

// Position is keyed by ID within a single instance's position set (§3, inv. 1).
type Position struct {
	ID                string       `json:"id"`
	Type              PositionType `json:"type"`
	Symbol            string       `json:"symbol"`
	Volume            float64      `json:"volume"`
	OpenPrice         float64      `json:"openPrice"`
	CurrentPrice      float64      `json:"currentPrice"`
	CurrentTickValue  float64      `json:"currentTickValue"`
	StopLoss          *float64     `json:"stopLoss,omitempty"`
	TakeProfit        *float64     `json:"takeProfit,omitempty"`
	Swap              float64      `json:"swap"`
	Commission        float64      `json:"commission"`
	Profit            float64      `json:"profit"`
	UnrealizedProfit  float64      `json:"unrealizedProfit"`
	RealizedProfit    float64      `json:"realizedProfit"`
	Magic             int64        `json:"magic"`
	Time              time.Time    `json:"time"`
	UpdateTime        time.Time    `json:"updateTime"`
	Comment           string       `json:"comment,omitempty"`
	BrokerComment     string       `json:"brokerComment,omitempty"`
	ClientID          string       `json:"clientId,omitempty"`

	UpdateSequenceNumber       int64   `json:"updateSequenceNumber,omitempty"`
	AccountCurrencyExchangeRate float64 `json:"accountCurrencyExchangeRate,omitempty"`
}

// Clone returns a deep-enough copy for hashing/snapshot purposes (pointer
// fields are copied by value into fresh allocations).
func (p *Position) Clone() *Position {
	cp := *p
	if p.StopLoss != nil {
		v := *p.StopLoss
		cp.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		cp.TakeProfit = &v
	}
	return &cp
}
