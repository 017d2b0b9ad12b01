package indicator

import "swingtrader/internal/model"

// seed accumulates the first period values into their mean. EMA and SMMA
// both start from it.
type seed struct {
	period int
	n      int
	sum    float64
}

// add reports whether the value was absorbed by the seed, and the seed mean
// once the period is filled.
func (s *seed) add(v float64) (absorbed bool, mean float64, done bool) {
	if s.n >= s.period {
		return false, 0, false
	}
	s.n++
	s.sum += v
	if s.n == s.period {
		return true, s.sum / float64(s.period), true
	}
	return true, 0, false
}

func (s *seed) full() bool { return s.n >= s.period }

// SMMA is Wilder's smoothed average: the mean of the first period values,
// then (prev·(period−1) + value) / period.
type SMMA struct {
	seed
	current float64
}

func NewSMMA(period int) *SMMA {
	return &SMMA{seed: seed{period: period}}
}

func (s *SMMA) Name() string { return "SMMA" }

func (s *SMMA) Update(bar model.PriceBar) { s.Add(bar.Close) }

// Add feeds a raw value. RSI feeds gains and losses through it.
func (s *SMMA) Add(v float64) {
	if absorbed, mean, done := s.seed.add(v); absorbed {
		if done {
			s.current = mean
		}
		return
	}
	p := float64(s.period)
	s.current = (s.current*(p-1) + v) / p
}

func (s *SMMA) Value() float64 { return s.current }
func (s *SMMA) Ready() bool    { return s.full() }
