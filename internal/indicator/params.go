package indicator

import (
	"math"

	"swingtrader/internal/model"
)

// Params configures every indicator Compute produces.
type Params struct {
	SMAWindow    int       `json:"sma_window"`
	RSIWindow    int       `json:"rsi_window"`
	RSISmoothing Smoothing `json:"rsi_smoothing"`
	EMAFast      int       `json:"ema_fast"`
	EMASlow      int       `json:"ema_slow"`
	SignalSpan   int       `json:"signal_span"`
	Bollinger    bool      `json:"bollinger"`
	BollingerK   float64   `json:"bollinger_k"`
}

// DefaultParams returns SMA 20, RSI 14, EMA 12/26, signal 9, Bollinger 2σ.
func DefaultParams() Params {
	return Params{
		SMAWindow:    20,
		RSIWindow:    14,
		RSISmoothing: SmoothingSimple,
		EMAFast:      12,
		EMASlow:      26,
		SignalSpan:   9,
		Bollinger:    true,
		BollingerK:   2,
	}
}

// Validate rejects non-positive windows and an inverted EMA pair.
func (p Params) Validate() error {
	windows := []struct {
		name string
		v    int
	}{
		{"sma_window", p.SMAWindow},
		{"rsi_window", p.RSIWindow},
		{"ema_fast", p.EMAFast},
		{"ema_slow", p.EMASlow},
		{"signal_span", p.SignalSpan},
	}
	for _, w := range windows {
		if w.v <= 0 {
			return &model.ConfigError{Param: w.name, Value: w.v, Msg: "must be positive"}
		}
	}
	if p.EMAFast >= p.EMASlow {
		return &model.ConfigError{Param: "ema_fast", Value: p.EMAFast, Msg: "must be smaller than ema_slow"}
	}
	if p.Bollinger && (math.IsNaN(p.BollingerK) || math.IsInf(p.BollingerK, 0) || p.BollingerK <= 0) {
		return &model.ConfigError{Param: "bollinger_k", Value: p.BollingerK, Msg: "must be a positive finite multiplier"}
	}
	if _, err := ParseSmoothing(string(p.RSISmoothing)); err != nil {
		return &model.ConfigError{Param: "rsi_smoothing", Value: p.RSISmoothing, Msg: err.Error()}
	}
	return nil
}

// Warmup holds the number of leading undefined records per indicator.
type Warmup struct {
	SMA        int
	RSI        int
	EMAFast    int
	EMASlow    int
	MACD       int
	SignalLine int
}

// WarmupOf returns the leading-undefined counts implied by p.
func WarmupOf(p Params) Warmup {
	return Warmup{
		SMA:        p.SMAWindow - 1,
		RSI:        p.RSIWindow,
		EMAFast:    p.EMAFast - 1,
		EMASlow:    p.EMASlow - 1,
		MACD:       p.EMASlow - 1,
		SignalLine: p.EMASlow - 1 + p.SignalSpan - 1,
	}
}

// TradeableFrom is the first index at which the signal rules can fire:
// RSI, MACD and signal line all defined.
func (w Warmup) TradeableFrom() int {
	return max(w.RSI, w.MACD, w.SignalLine)
}
