package strategy

import (
	"fmt"

	"swingtrader/internal/model"
)

// Step applies the transition rules for one pair and returns the next
// state, the action for the current bar and a human-readable reason for
// actionable bars.
func (p Params) Step(state model.PositionState, pr Pair) (model.PositionState, model.Action, string) {
	switch state {
	case model.Flat:
		if ok, reason := p.entry(pr); ok {
			return model.Long, model.ActionBuy, reason
		}
	case model.Long:
		if ok, reason := p.exit(pr); ok {
			return model.Flat, model.ActionSell, reason
		}
	}
	return state, model.ActionHold, ""
}

func (p Params) entry(pr Pair) (bool, string) {
	if !p.defined(pr) {
		return false, ""
	}
	cur := pr.Cur
	if cur.RSI.Value >= p.EntryRSI || cur.MACD.Value <= cur.SignalLine.Value {
		return false, ""
	}
	if p.Mode == ModeStrict && pr.Prev.MACD.Value > pr.Prev.SignalLine.Value {
		return false, ""
	}
	return true, fmt.Sprintf("RSI %.1f < %.0f, MACD above signal", cur.RSI.Value, p.EntryRSI)
}

func (p Params) exit(pr Pair) (bool, string) {
	if !p.defined(pr) {
		return false, ""
	}
	cur := pr.Cur
	if cur.RSI.Value <= p.ExitRSI || cur.MACD.Value >= cur.SignalLine.Value {
		return false, ""
	}
	if p.Mode == ModeStrict && pr.Prev.MACD.Value < pr.Prev.SignalLine.Value {
		return false, ""
	}
	return true, fmt.Sprintf("RSI %.1f > %.0f, MACD below signal", cur.RSI.Value, p.ExitRSI)
}

// defined reports whether every value the rules read is out of warm-up.
func (p Params) defined(pr Pair) bool {
	if !pr.Cur.Tradeable() {
		return false
	}
	if p.Mode == ModeStrict {
		return pr.Prev.MACD.Valid && pr.Prev.SignalLine.Valid
	}
	return true
}
