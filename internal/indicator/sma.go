package indicator

import (
	"math"

	"swingtrader/internal/model"
)

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; the same window also yields the
// rolling standard deviation for Bollinger bands.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(bar model.PriceBar) { s.Add(bar.Close) }

// Add feeds a raw value.
func (s *SMA) Add(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// StdDev returns the sample standard deviation (n-1) of the current window.
// ok is false until the window is full or when the window has one element.
func (s *SMA) StdDev() (float64, bool) {
	if !s.Ready() || s.period < 2 {
		return 0, false
	}
	var ss float64
	for _, v := range s.buf {
		d := v - s.current
		ss += d * d
	}
	return math.Sqrt(ss / float64(s.period-1)), true
}

// Bands returns sma ± k·σ.
func (s *SMA) Bands(k float64) (high, low model.Float) {
	sd, ok := s.StdDev()
	if !ok {
		return model.None, model.None
	}
	return model.Some(s.current + k*sd), model.Some(s.current - k*sd)
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}
