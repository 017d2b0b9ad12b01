package indicator

import "swingtrader/internal/model"

// EMA is the exponential moving average with α = 2/(span+1), seeded with the
// mean of the first span values.
type EMA struct {
	seed
	alpha   float64
	current float64
}

func NewEMA(span int) *EMA {
	return &EMA{
		seed:  seed{period: span},
		alpha: 2.0 / float64(span+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(bar model.PriceBar) { e.Add(bar.Close) }

// Add feeds a raw value; MACD uses it for the signal line.
func (e *EMA) Add(v float64) {
	if absorbed, mean, done := e.seed.add(v); absorbed {
		if done {
			e.current = mean
		}
		return
	}
	// incremental form keeps a constant input exactly constant
	e.current += e.alpha * (v - e.current)
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.full() }
