package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Float is an indicator value that may still be in warm-up.
// An invalid Float must never be read as zero.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a defined Float.
func Some(v float64) Float { return Float{Value: v, Valid: true} }

// None is the undefined Float.
var None = Float{}

// MarshalJSON encodes undefined values as null so charts leave a gap.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f.Value, 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = None
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}

// IndicatorRecord holds every indicator for one bar.
type IndicatorRecord struct {
	TS            time.Time `json:"ts"`
	Close         float64   `json:"close"`
	SMA           Float     `json:"sma"`
	RSI           Float     `json:"rsi"`
	EMAFast       Float     `json:"ema_fast"`
	EMASlow       Float     `json:"ema_slow"`
	MACD          Float     `json:"macd"`
	SignalLine    Float     `json:"signal_line"`
	BollingerHigh Float     `json:"bollinger_high"`
	BollingerLow  Float     `json:"bollinger_low"`
}

// Tradeable reports whether the fields the signal rules read are all defined.
func (r IndicatorRecord) Tradeable() bool {
	return r.RSI.Valid && r.MACD.Valid && r.SignalLine.Valid
}

// IndicatorFrame has exactly one record per PriceBar, in series order.
type IndicatorFrame []IndicatorRecord

// FirstTradeable returns the index of the first record with RSI, MACD and
// signal line all defined, or -1 when the series never leaves warm-up.
func (f IndicatorFrame) FirstTradeable() int {
	for i, r := range f {
		if r.Tradeable() {
			return i
		}
	}
	return -1
}
