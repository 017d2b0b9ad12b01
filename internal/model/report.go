package model

// BacktestReport is the final outcome of one run.
type BacktestReport struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalBalance   float64 `json:"final_balance"`
	ReturnPercent  float64 `json:"return_percent"`
	TotalTrades    int     `json:"total_trades"`
	OpenPosition   bool    `json:"open_position"` // true when marked to market at LastClose
	LastClose      float64 `json:"last_close"`
}

// EquityPoint is the mark-to-market value of the ledger after one bar.
type EquityPoint struct {
	Index    int           `json:"index"`
	Cash     float64       `json:"cash"`
	Holdings float64       `json:"holdings"`
	Equity   float64       `json:"equity"`
	Position PositionState `json:"position"`
}
