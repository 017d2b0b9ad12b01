// Package strategy turns an IndicatorFrame into per-bar trading decisions.
//
// The generator is a fold over (previous, current) record pairs carrying an
// explicit PositionState:
//
//	Buy  (Flat → Long): RSI < entry, MACD crosses above its signal line
//	Sell (Long → Flat): RSI > exit,  MACD crosses below its signal line
//
// Every other bar is a Hold. A Sell is never produced while Flat and a Buy
// never while Long.
package strategy

import (
	"fmt"

	"swingtrader/internal/model"
)

// Mode selects how the MACD condition is evaluated.
type Mode string

const (
	// ModeStrict requires a crossover between the previous and current bar.
	ModeStrict Mode = "strict"
	// ModeLevel only requires MACD to currently be above (below) the signal
	// line. Re-enters on the first qualifying bar after every exit.
	ModeLevel Mode = "level"
)

// ParseMode maps a config string to a Mode; "" means strict.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeLevel:
		return ModeLevel, nil
	}
	return "", fmt.Errorf("unknown signal mode %q", s)
}

// Params configures the entry/exit rules.
type Params struct {
	EntryRSI float64 `json:"entry_rsi"` // buy only below this RSI
	ExitRSI  float64 `json:"exit_rsi"`  // sell only above this RSI
	Mode     Mode    `json:"mode"`
}

// DefaultParams returns the 30/70 strict-crossover rules.
func DefaultParams() Params {
	return Params{EntryRSI: 30, ExitRSI: 70, Mode: ModeStrict}
}

// Validate rejects thresholds outside (0,100) or in the wrong order. NaN is
// outside every range.
func (p Params) Validate() error {
	if !(p.EntryRSI > 0 && p.EntryRSI < 100) {
		return &model.ConfigError{Param: "entry_rsi", Value: p.EntryRSI, Msg: "must be in (0,100)"}
	}
	if !(p.ExitRSI > 0 && p.ExitRSI < 100) {
		return &model.ConfigError{Param: "exit_rsi", Value: p.ExitRSI, Msg: "must be in (0,100)"}
	}
	if p.EntryRSI >= p.ExitRSI {
		return &model.ConfigError{Param: "entry_rsi", Value: p.EntryRSI, Msg: "must be below exit_rsi"}
	}
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return &model.ConfigError{Param: "mode", Value: p.Mode, Msg: err.Error()}
	}
	return nil
}
