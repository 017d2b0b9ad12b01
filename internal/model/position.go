package model

// PositionState is the single-position state of a backtest.
type PositionState string

const (
	Flat PositionState = "FLAT"
	Long PositionState = "LONG"
)

func (p PositionState) String() string { return string(p) }
