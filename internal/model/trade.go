package model

import "time"

// Action is the per-bar decision of the signal generator.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// BarSignal is the state machine output for one bar.
type BarSignal struct {
	Index    int           `json:"index"`
	TS       time.Time     `json:"ts"`
	Close    float64       `json:"close"`
	Action   Action        `json:"action"`
	Position PositionState `json:"position"` // position after this bar
	Reason   string        `json:"reason,omitempty"`
}

// Signal is an actionable (BUY or SELL) event.
type Signal struct {
	Index  int       `json:"index"`
	TS     time.Time `json:"ts"`
	Price  float64   `json:"price"`
	Action Action    `json:"action"`
	Reason string    `json:"reason,omitempty"`
}

// Trade is one executed event in the trade log. Never mutated once appended.
type Trade struct {
	Seq           int       `json:"seq"`
	TS            time.Time `json:"ts"`
	Price         float64   `json:"price"`
	Action        Action    `json:"action"`
	Quantity      float64   `json:"quantity"` // units bought or sold
	CashAfter     float64   `json:"cash_after"`
	HoldingsAfter float64   `json:"holdings_after"`
}
