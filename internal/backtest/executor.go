package backtest

import (
	"fmt"
	"math"

	"swingtrader/internal/model"
)

// Outcome is the result of executing one event stream.
type Outcome struct {
	Trades []model.Trade        `json:"trades"`
	Report model.BacktestReport `json:"report"`
}

// Execute folds the actionable events over a fresh ledger and finalizes
// it: an open position is marked to market at lastClose.
//
// Events must alternate Buy, Sell, Buy, … starting with Buy; anything else
// fails with an error wrapping model.ErrInvariantViolation that names the
// offending event.
func Execute(events []model.Signal, lastClose, initialCapital float64) (Outcome, error) {
	if err := validateCapital(initialCapital); err != nil {
		return Outcome{}, err
	}

	l := NewLedger(initialCapital)
	for _, ev := range events {
		if _, err := l.Apply(ev); err != nil {
			return Outcome{}, fmt.Errorf("execute: %w", err)
		}
	}

	if l.Position() == model.Long && !validPrice(lastClose) {
		return Outcome{}, &model.FieldError{Index: -1, Field: "last_close", Err: model.ErrMissingField}
	}

	trades := l.Trades()
	return Outcome{
		Trades: trades,
		Report: buildReport(initialCapital, l.Equity(lastClose), len(trades), l.Position() == model.Long, lastClose),
	}, nil
}

func buildReport(initial, final float64, trades int, open bool, lastClose float64) model.BacktestReport {
	return model.BacktestReport{
		InitialCapital: initial,
		FinalBalance:   final,
		ReturnPercent:  (final - initial) / initial * 100,
		TotalTrades:    trades,
		OpenPosition:   open,
		LastClose:      lastClose,
	}
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

func validateCapital(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
		return &model.ConfigError{Param: "initial_capital", Value: c, Msg: "must be a positive amount"}
	}
	return nil
}
