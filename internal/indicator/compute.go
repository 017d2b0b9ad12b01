package indicator

import (
	"fmt"

	"swingtrader/internal/model"
)

// set holds live indicator instances for one Compute call.
type set struct {
	params Params
	sma    *SMA
	rsi    *RSI
	macd   *MACD
}

func newSet(p Params) *set {
	return &set{
		params: p,
		sma:    NewSMA(p.SMAWindow),
		rsi:    NewRSI(p.RSIWindow, p.RSISmoothing),
		macd:   NewMACD(p.EMAFast, p.EMASlow, p.SignalSpan),
	}
}

// process updates all indicators with one bar and returns its record.
func (s *set) process(bar model.PriceBar) model.IndicatorRecord {
	s.sma.Update(bar)
	s.rsi.Update(bar)
	s.macd.Update(bar)

	rec := model.IndicatorRecord{
		TS:      bar.TS,
		Close:   bar.Close,
		SMA:     Current(s.sma),
		RSI:     Current(s.rsi),
		EMAFast: Current(s.macd.Fast()),
		EMASlow: Current(s.macd.Slow()),
		MACD:    Current(s.macd),
	}
	if rec.MACD.Valid {
		rec.SignalLine = s.macd.Signal()
	}
	if s.params.Bollinger {
		rec.BollingerHigh, rec.BollingerLow = s.sma.Bands(s.params.BollingerK)
	}
	return rec
}

// Compute builds the IndicatorFrame for series: one record per bar, same
// order. A series shorter than the warm-up still yields a frame whose
// leading records are undefined. Compute is pure and deterministic.
func Compute(series model.PriceSeries, p Params) (model.IndicatorFrame, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("indicator params: %w", err)
	}
	if p.RSISmoothing == "" {
		p.RSISmoothing = SmoothingSimple
	}

	s := newSet(p)
	frame := make(model.IndicatorFrame, series.Len())
	for i := 0; i < series.Len(); i++ {
		frame[i] = s.process(series.Bar(i))
	}
	return frame, nil
}
