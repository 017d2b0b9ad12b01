package backtest

import (
	"fmt"

	"swingtrader/internal/model"
)

// Replay rebuilds the final balance from a trade log and the series it was
// produced from, without reference to signals or indicators. Each trade must
// sit on a bar of series and be priced at that bar's close.
//
// For any run, Replay(Outcome.Trades, series, capital) equals
// Outcome.Report.FinalBalance exactly.
func Replay(trades []model.Trade, series model.PriceSeries, initialCapital float64) (float64, error) {
	if err := validateCapital(initialCapital); err != nil {
		return 0, err
	}
	last, ok := series.Last()
	if !ok {
		return 0, &model.FieldError{Symbol: series.Symbol(), Index: -1, Field: "bars", Err: model.ErrInsufficientData}
	}

	cash, units := initialCapital, 0.0
	long := false
	for _, t := range trades {
		i := series.IndexOf(t.TS)
		if i < 0 {
			return 0, &model.FieldError{Symbol: series.Symbol(), Index: -1, TS: t.TS, Field: "ts", Err: model.ErrInvalidSeries}
		}
		if close := series.Bar(i).Close; close != t.Price {
			return 0, fmt.Errorf("replay trade %d: price %v differs from close %v: %w",
				t.Seq, t.Price, close, model.ErrInvariantViolation)
		}
		switch {
		case t.Action == model.ActionBuy && !long:
			units, cash = cash/t.Price, 0
			long = true
		case t.Action == model.ActionSell && long:
			cash, units = units*t.Price, 0
			long = false
		default:
			pos := model.Flat
			if long {
				pos = model.Long
			}
			return 0, &model.InvariantError{Index: i, TS: t.TS, Action: t.Action, Position: pos}
		}
	}
	if long {
		return units * last.Close, nil
	}
	return cash, nil
}
