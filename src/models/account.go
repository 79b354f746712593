package models

// Platform identifies which MetaTrader-family platform an instance mirrors.
type Platform string

const (
	PlatformMT4 Platform = "mt4"
	PlatformMT5 Platform = "mt5"
)

// AccountInformation is the per-instance account snapshot (§3). At most one
// exists per instance at a time; onSynchronizationStarted clears it.
type AccountInformation struct {
	Platform    Platform `json:"platform"`
	Broker      string   `json:"broker"`
	Currency    string   `json:"currency"` // ISO-3
	Server      string   `json:"server"`
	Balance     float64  `json:"balance"`
	Equity      float64  `json:"equity"`
	Margin      float64  `json:"margin"`
	FreeMargin  float64  `json:"freeMargin"`
	Leverage    float64  `json:"leverage"`
	MarginLevel float64  `json:"marginLevel"`
}
