// Package backtest replays actionable signals against a single-position,
// all-in ledger and reports the outcome.
//
// Every Buy converts the whole cash balance into units at the bar close;
// every Sell converts all units back. There are no fees, no slippage and no
// fractional-position sizing, so exactly one of cash and holdings is nonzero
// at any time.
package backtest

import "swingtrader/internal/model"

// Ledger is the mutable simulation state of one run. It is owned by a
// single goroutine and never shared between runs.
type Ledger struct {
	cash     float64
	holdings float64 // units of the instrument
	position model.PositionState
	trades   []model.Trade
}

// NewLedger opens a Flat ledger holding capital in cash.
func NewLedger(capital float64) *Ledger {
	return &Ledger{cash: capital, position: model.Flat}
}

func (l *Ledger) Cash() float64                 { return l.cash }
func (l *Ledger) Holdings() float64             { return l.holdings }
func (l *Ledger) Position() model.PositionState { return l.position }

// Trades returns a copy of the trade log.
func (l *Ledger) Trades() []model.Trade {
	cp := make([]model.Trade, len(l.trades))
	copy(cp, l.trades)
	return cp
}

// Apply executes one actionable signal at its price. A Buy while Long, a
// Sell while Flat, or a Hold is an InvariantError and leaves the ledger
// untouched.
func (l *Ledger) Apply(s model.Signal) (model.Trade, error) {
	if !validPrice(s.Price) {
		return model.Trade{}, &model.FieldError{Index: s.Index, TS: s.TS, Field: "price", Err: model.ErrMissingField}
	}

	var qty float64
	switch {
	case s.Action == model.ActionBuy && l.position == model.Flat:
		qty = l.cash / s.Price
		l.holdings, l.cash = qty, 0
		l.position = model.Long
	case s.Action == model.ActionSell && l.position == model.Long:
		qty = l.holdings
		l.cash, l.holdings = l.holdings*s.Price, 0
		l.position = model.Flat
	default:
		return model.Trade{}, &model.InvariantError{Index: s.Index, TS: s.TS, Action: s.Action, Position: l.position}
	}

	t := model.Trade{
		Seq:           len(l.trades) + 1,
		TS:            s.TS,
		Price:         s.Price,
		Action:        s.Action,
		Quantity:      qty,
		CashAfter:     l.cash,
		HoldingsAfter: l.holdings,
	}
	l.trades = append(l.trades, t)
	return t, nil
}

// Equity marks the ledger to market at price.
func (l *Ledger) Equity(price float64) float64 {
	if l.position == model.Long {
		return l.holdings * price
	}
	return l.cash
}

// Point is the mark-to-market snapshot of the ledger at bar index.
func (l *Ledger) Point(index int, price float64) model.EquityPoint {
	return model.EquityPoint{
		Index:    index,
		Cash:     l.cash,
		Holdings: l.holdings,
		Equity:   l.Equity(price),
		Position: l.position,
	}
}
