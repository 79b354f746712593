package models

import "time"

// SymbolSpecification is keyed by symbol (§3).
type SymbolSpecification struct {
	Symbol        string  `json:"symbol"`
	Digits        int     `json:"digits"`
	TickSize      float64 `json:"tickSize"`
	ExecutionMode string  `json:"executionMode,omitempty"`
	FillingModes  []string `json:"fillingModes,omitempty"`
	Description   string  `json:"description,omitempty"`
}

func (s *SymbolSpecification) Clone() *SymbolSpecification {
	cp := *s
	if s.FillingModes != nil {
		cp.FillingModes = append([]string(nil), s.FillingModes...)
	}
	return &cp
}

// SymbolPrice is keyed by symbol (§3).
type SymbolPrice struct {
	Symbol           string    `json:"symbol"`
	Bid              float64   `json:"bid"`
	Ask              float64   `json:"ask"`
	ProfitTickValue  float64   `json:"profitTickValue"`
	LossTickValue    float64   `json:"lossTickValue"`
	Time             time.Time `json:"time"`
}
