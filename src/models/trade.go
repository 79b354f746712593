package models

import "time"

// TradeActionType enumerates every trade command variant of §6.
type TradeActionType string

const (
	ActionOrderTypeBuy           TradeActionType = "ORDER_TYPE_BUY"
	ActionOrderTypeSell          TradeActionType = "ORDER_TYPE_SELL"
	ActionOrderTypeBuyLimit      TradeActionType = "ORDER_TYPE_BUY_LIMIT"
	ActionOrderTypeSellLimit     TradeActionType = "ORDER_TYPE_SELL_LIMIT"
	ActionOrderTypeBuyStop       TradeActionType = "ORDER_TYPE_BUY_STOP"
	ActionOrderTypeSellStop      TradeActionType = "ORDER_TYPE_SELL_STOP"
	ActionOrderTypeBuyStopLimit  TradeActionType = "ORDER_TYPE_BUY_STOP_LIMIT"
	ActionOrderTypeSellStopLimit TradeActionType = "ORDER_TYPE_SELL_STOP_LIMIT"
	ActionPositionModify         TradeActionType = "POSITION_MODIFY"
	ActionPositionPartial        TradeActionType = "POSITION_PARTIAL"
	ActionPositionCloseID        TradeActionType = "POSITION_CLOSE_ID"
	ActionPositionCloseBy        TradeActionType = "POSITION_CLOSE_BY"
	ActionPositionsCloseSymbol   TradeActionType = "POSITIONS_CLOSE_SYMBOL"
	ActionOrderModify            TradeActionType = "ORDER_MODIFY"
	ActionOrderCancel            TradeActionType = "ORDER_CANCEL"
)

// PriceUnits enumerates how stopLoss/takeProfit values are interpreted.
type PriceUnits string

const (
	UnitsAbsolutePrice            PriceUnits = "ABSOLUTE_PRICE"
	UnitsRelativePrice            PriceUnits = "RELATIVE_PRICE"
	UnitsRelativePoints           PriceUnits = "RELATIVE_POINTS"
	UnitsRelativeCurrency         PriceUnits = "RELATIVE_CURRENCY"
	UnitsRelativeBalancePercentage PriceUnits = "RELATIVE_BALANCE_PERCENTAGE"
)

// Expiration describes a pending order's expiration policy.
type Expiration struct {
	Type string     `json:"type"`
	Time *time.Time `json:"time,omitempty"`
}

// TradeRequest is the trade command payload of §6. MaxCommentClientIDLen bounds
// |comment|+|clientId| per the spec ("≤26").
const MaxCommentClientIDLen = 26

type TradeRequest struct {
	ActionType       TradeActionType `json:"actionType"`
	Symbol           string          `json:"symbol,omitempty"`
	Volume           float64         `json:"volume,omitempty"`
	OpenPrice        float64         `json:"openPrice,omitempty"`
	StopLimitPrice   float64         `json:"stopLimitPrice,omitempty"`
	StopLoss         float64         `json:"stopLoss,omitempty"`
	StopLossUnits    PriceUnits      `json:"stopLossUnits,omitempty"`
	TakeProfit       float64         `json:"takeProfit,omitempty"`
	TakeProfitUnits  PriceUnits      `json:"takeProfitUnits,omitempty"`
	Comment          string          `json:"comment,omitempty"`
	ClientID         string          `json:"clientId,omitempty"`
	Magic            int64           `json:"magic,omitempty"`
	Slippage         float64         `json:"slippage,omitempty"`
	FillingModes     []string        `json:"fillingModes,omitempty"`
	Expiration       *Expiration     `json:"expiration,omitempty"`
	PositionID       string          `json:"positionId,omitempty"`
	CloseByPositionID string         `json:"closeByPositionId,omitempty"`
	OrderID          string          `json:"orderId,omitempty"`
}

// Validate enforces the |comment|+|clientId| ≤ 26 constraint of §6.
func (t *TradeRequest) Validate() error {
	if len(t.Comment)+len(t.ClientID) > MaxCommentClientIDLen {
		return &lengthError{}
	}
	return nil
}

type lengthError struct{}

func (e *lengthError) Error() string {
	return "comment and clientId combined must not exceed 26 characters"
}

// TradeResponse is the server's reply to a trade request.
type TradeResponse struct {
	NumericCode int    `json:"numericCode"`
	StringCode  string `json:"stringCode"`
	Message     string `json:"message"`
	OrderID     string `json:"orderId,omitempty"`
	PositionID  string `json:"positionId,omitempty"`
}
