package model

import (
	"encoding/json"
	"math"
	"time"
)

// PriceBar is one trading day. Only the close is used by the engine.
type PriceBar struct {
	TS    time.Time `json:"ts"`    // calendar date (UTC midnight for daily bars)
	Close float64   `json:"close"` // always > 0
}

// RawBar is a bar as handed over by a market-data provider, before validation.
// A nil Close means the provider returned no close for that day.
type RawBar struct {
	TS    time.Time `json:"ts"`
	Close *float64  `json:"close"`
}

// ClosePtr is a helper for building RawBar literals.
func ClosePtr(v float64) *float64 { return &v }

// PriceSeries is an ordered, validated, read-only sequence of daily bars.
type PriceSeries struct {
	symbol string
	bars   []PriceBar
}

// NewPriceSeries validates raw provider bars and freezes them into a series.
//
// Rejects an empty input (ErrInsufficientData), a bar without a usable close
// (ErrMissingField) and out-of-order or duplicate timestamps (ErrInvalidSeries).
func NewPriceSeries(symbol string, raw []RawBar) (PriceSeries, error) {
	if len(raw) == 0 {
		return PriceSeries{}, &FieldError{Symbol: symbol, Index: -1, Field: "bars", Err: ErrInsufficientData}
	}
	bars := make([]PriceBar, 0, len(raw))
	for i, rb := range raw {
		if rb.Close == nil {
			return PriceSeries{}, &FieldError{Symbol: symbol, Index: i, TS: rb.TS, Field: "close", Err: ErrMissingField}
		}
		c := *rb.Close
		if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
			return PriceSeries{}, &FieldError{Symbol: symbol, Index: i, TS: rb.TS, Field: "close", Err: ErrMissingField}
		}
		if i > 0 && !rb.TS.After(raw[i-1].TS) {
			return PriceSeries{}, &FieldError{Symbol: symbol, Index: i, TS: rb.TS, Field: "ts", Err: ErrInvalidSeries}
		}
		bars = append(bars, PriceBar{TS: rb.TS, Close: c})
	}
	return PriceSeries{symbol: symbol, bars: bars}, nil
}

// MustPriceSeries builds a series from closes on consecutive days starting at
// start. It panics on invalid input and is meant for tests and fixtures.
func MustPriceSeries(symbol string, start time.Time, closes ...float64) PriceSeries {
	raw := make([]RawBar, len(closes))
	for i, c := range closes {
		raw[i] = RawBar{TS: start.AddDate(0, 0, i), Close: ClosePtr(c)}
	}
	s, err := NewPriceSeries(symbol, raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s PriceSeries) Symbol() string { return s.symbol }
func (s PriceSeries) Len() int       { return len(s.bars) }

// Bar returns the i-th bar.
func (s PriceSeries) Bar(i int) PriceBar { return s.bars[i] }

// Bars returns a copy of the underlying bars.
func (s PriceSeries) Bars() []PriceBar {
	cp := make([]PriceBar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Closes returns the close prices in chronological order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the final bar. ok is false for the zero series.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.bars) == 0 {
		return PriceBar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// IndexOf returns the index of the bar with timestamp ts, or -1.
func (s PriceSeries) IndexOf(ts time.Time) int {
	lo, hi := 0, len(s.bars)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case s.bars[mid].TS.Equal(ts):
			return mid
		case s.bars[mid].TS.Before(ts):
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// Raw converts the series back to provider form, e.g. for caching.
func (s PriceSeries) Raw() []RawBar {
	out := make([]RawBar, len(s.bars))
	for i, b := range s.bars {
		out[i] = RawBar{TS: b.TS, Close: ClosePtr(b.Close)}
	}
	return out
}

type seriesJSON struct {
	Symbol string     `json:"symbol"`
	Bars   []PriceBar `json:"bars"`
}

// MarshalJSON encodes the series as {"symbol":..., "bars":[...]}.
func (s PriceSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{Symbol: s.symbol, Bars: s.bars})
}

// UnmarshalJSON decodes and re-validates a series.
func (s *PriceSeries) UnmarshalJSON(data []byte) error {
	var aux seriesJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw := make([]RawBar, len(aux.Bars))
	for i, b := range aux.Bars {
		raw[i] = RawBar{TS: b.TS, Close: ClosePtr(b.Close)}
	}
	ps, err := NewPriceSeries(aux.Symbol, raw)
	if err != nil {
		return err
	}
	*s = ps
	return nil
}
