package strategy

import (
	"fmt"

	"swingtrader/internal/model"
)

// Generate runs the position state machine over frame, starting Flat at
// bar index 1. It returns one BarSignal per bar from index 1, Holds included.
func Generate(frame model.IndicatorFrame, p Params) ([]model.BarSignal, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("signal params: %w", err)
	}
	if p.Mode == "" {
		p.Mode = ModeStrict
	}

	state := model.Flat
	out := make([]model.BarSignal, 0, max(len(frame)-1, 0))
	for pr := range Pairs(frame) {
		var (
			action model.Action
			reason string
		)
		state, action, reason = p.Step(state, pr)
		out = append(out, model.BarSignal{
			Index:    pr.Index,
			TS:       pr.Cur.TS,
			Close:    pr.Cur.Close,
			Action:   action,
			Position: state,
			Reason:   reason,
		})
	}
	return out, nil
}

// Actionable filters the Buy and Sell bars out of a Generate result.
func Actionable(bars []model.BarSignal) []model.Signal {
	var out []model.Signal
	for _, b := range bars {
		if b.Action == model.ActionHold {
			continue
		}
		out = append(out, model.Signal{
			Index:  b.Index,
			TS:     b.TS,
			Price:  b.Close,
			Action: b.Action,
			Reason: b.Reason,
		})
	}
	return out
}

// ValidateAlternation checks that signals read Buy, Sell, Buy, … starting
// with Buy.
func ValidateAlternation(signals []model.Signal) error {
	state := model.Flat
	for _, s := range signals {
		switch {
		case s.Action == model.ActionBuy && state == model.Flat:
			state = model.Long
		case s.Action == model.ActionSell && state == model.Long:
			state = model.Flat
		default:
			return &model.InvariantError{Index: s.Index, TS: s.TS, Action: s.Action, Position: state}
		}
	}
	return nil
}
