package backtest

import (
	"time"

	"swingtrader/internal/metrics"
	"swingtrader/internal/model"
)

// Summary is the compact form of a Result that is published, cached and
// alerted on. It drops the per-bar frame and equity curve.
type Summary struct {
	RunID          string               `json:"run_id"`
	Symbol         string               `json:"symbol"`
	AsOf           time.Time            `json:"as_of"` // timestamp of the last bar
	Latest         model.BarSignal      `json:"latest"`
	Report         model.BacktestReport `json:"report"`
	Trades         []model.Trade        `json:"trades"`
	WarmupComplete bool                 `json:"warmup_complete"`
}

// Summary condenses r. Latest is the decision on the final bar, or a Flat
// hold on bar 0 for a one-bar series.
func (r *Result) Summary(runID string) Summary {
	s := Summary{
		RunID:          runID,
		Symbol:         r.Symbol,
		Report:         r.Report,
		Trades:         r.Trades,
		WarmupComplete: r.WarmupComplete,
	}
	if n := len(r.Bars); n > 0 {
		s.Latest = r.Bars[n-1]
	} else if len(r.Frame) > 0 {
		s.Latest = model.BarSignal{TS: r.Frame[0].TS, Close: r.Frame[0].Close, Action: model.ActionHold, Position: model.Flat}
	}
	s.AsOf = s.Latest.TS
	return s
}

// Actionable reports whether the final bar produced a BUY or SELL.
func (s Summary) Actionable() bool {
	return s.Latest.Action == model.ActionBuy || s.Latest.Action == model.ActionSell
}

// TradeCounts returns the number of BUY and SELL trades executed.
func (r *Result) TradeCounts() (buys, sells int) {
	for _, t := range r.Trades {
		switch t.Action {
		case model.ActionBuy:
			buys++
		case model.ActionSell:
			sells++
		}
	}
	return buys, sells
}

// Observe records a finished run, successful or not, on m.
func Observe(m *metrics.Metrics, symbol string, d time.Duration, res *Result, err error) {
	s := metrics.RunSummary{Symbol: symbol, Duration: d, Err: err}
	if err == nil && res != nil {
		s.Buys, s.Sells = res.TradeCounts()
		s.ReturnPercent = res.Report.ReturnPercent
		s.Open = res.Report.OpenPosition
	}
	m.ObserveRun(s)
}
