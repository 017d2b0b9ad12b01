package backtest

import (
	"fmt"

	"swingtrader/internal/indicator"
	"swingtrader/internal/model"
	"swingtrader/internal/strategy"
)

// Config is the complete, explicit parameter set of one run.
type Config struct {
	Indicators     indicator.Params `json:"indicators"`
	Signals        strategy.Params  `json:"signals"`
	InitialCapital float64          `json:"initial_capital"`
}

// DefaultConfig returns the standard indicator windows, 30/70 strict rules
// and 10,000 of starting capital.
func DefaultConfig() Config {
	return Config{
		Indicators:     indicator.DefaultParams(),
		Signals:        strategy.DefaultParams(),
		InitialCapital: 10000,
	}
}

// Validate checks every section; the first problem wins.
func (c Config) Validate() error {
	if err := c.Indicators.Validate(); err != nil {
		return err
	}
	if err := c.Signals.Validate(); err != nil {
		return err
	}
	return validateCapital(c.InitialCapital)
}

// Result carries every artifact of a run for presentation and archiving.
type Result struct {
	Symbol  string               `json:"symbol"`
	Config  Config               `json:"config"`
	Frame   model.IndicatorFrame `json:"frame"`
	Bars    []model.BarSignal    `json:"bars"`
	Signals []model.Signal       `json:"signals"`
	Trades  []model.Trade        `json:"trades"`
	Report  model.BacktestReport `json:"report"`
	Equity  []model.EquityPoint  `json:"equity"`

	// WarmupComplete is false when the series never got past indicator
	// warm-up; the run then has no trades and returns 0%.
	WarmupComplete bool `json:"warmup_complete"`
	FirstTradeable int  `json:"first_tradeable"` // -1 when WarmupComplete is false
}

// Evaluate runs the whole pipeline: validate config, compute indicators,
// generate signals, execute. It is pure; the same series and config always
// produce the same Result.
func Evaluate(series model.PriceSeries, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	last, ok := series.Last()
	if !ok {
		return nil, &model.FieldError{Symbol: series.Symbol(), Index: -1, Field: "bars", Err: model.ErrInsufficientData}
	}

	frame, err := indicator.Compute(series, cfg.Indicators)
	if err != nil {
		return nil, err
	}
	bars, err := strategy.Generate(frame, cfg.Signals)
	if err != nil {
		return nil, err
	}
	signals := strategy.Actionable(bars)

	out, err := Execute(signals, last.Close, cfg.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", series.Symbol(), err)
	}

	equity, err := EquityCurve(series, bars, cfg.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", series.Symbol(), err)
	}

	first := frame.FirstTradeable()
	return &Result{
		Symbol:         series.Symbol(),
		Config:         cfg,
		Frame:          frame,
		Bars:           bars,
		Signals:        signals,
		Trades:         out.Trades,
		Report:         out.Report,
		Equity:         equity,
		WarmupComplete: first >= 0,
		FirstTradeable: first,
	}, nil
}

// EquityCurve marks the ledger to market at every bar close. bars is the
// per-bar Generate output (starting at index 1); bar 0 is always Flat. A
// BUY while Long or a SELL while Flat is an InvariantError.
func EquityCurve(series model.PriceSeries, bars []model.BarSignal, capital float64) ([]model.EquityPoint, error) {
	if series.Len() == 0 {
		return nil, nil
	}
	l := NewLedger(capital)
	curve := make([]model.EquityPoint, 0, series.Len())
	curve = append(curve, l.Point(0, series.Bar(0).Close))
	for _, b := range bars {
		if b.Action != model.ActionHold {
			if _, err := l.Apply(model.Signal{Index: b.Index, TS: b.TS, Price: b.Close, Action: b.Action}); err != nil {
				return nil, fmt.Errorf("equity curve: %w", err)
			}
		}
		curve = append(curve, l.Point(b.Index, b.Close))
	}
	return curve, nil
}
