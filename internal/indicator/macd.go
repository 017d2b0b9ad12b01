package indicator

import "swingtrader/internal/model"

// MACD tracks EMA(fast) − EMA(slow) and its signal line, EMA(MACD, signal).
// The signal EMA only receives MACD values once both EMAs are seeded.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
}

// NewMACD creates a MACD with the given spans (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(bar model.PriceBar) {
	m.fast.Update(bar)
	m.slow.Update(bar)
	if !m.Ready() {
		return
	}
	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Add(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.line }
func (m *MACD) Ready() bool    { return m.fast.Ready() && m.slow.Ready() }

// Fast and Slow expose the component EMAs.
func (m *MACD) Fast() *EMA { return m.fast }
func (m *MACD) Slow() *EMA { return m.slow }

// Signal returns the signal line value, undefined during its own warm-up.
func (m *MACD) Signal() model.Float { return Current(m.signal) }
