package indicator

import (
	"fmt"

	"swingtrader/internal/model"
)

// Smoothing selects how RSI averages gains and losses.
type Smoothing string

const (
	// SmoothingSimple is a plain rolling mean over the window.
	SmoothingSimple Smoothing = "simple"
	// SmoothingWilder seeds with the mean of the first window, then applies
	// Wilder's (n-1)/n recursion.
	SmoothingWilder Smoothing = "wilder"
)

// ParseSmoothing maps a config string to a Smoothing; "" means simple.
func ParseSmoothing(s string) (Smoothing, error) {
	switch Smoothing(s) {
	case "", SmoothingSimple:
		return SmoothingSimple, nil
	case SmoothingWilder:
		return SmoothingWilder, nil
	}
	return "", fmt.Errorf("unknown rsi smoothing %q", s)
}

// Neutral RSI used when the window holds no price movement at all.
const NeutralRSI = 50.0

// RSI calculates the Relative Strength Index from day-over-day percentage
// changes. Ready after period+1 bars (period changes).
//
// Zero average loss saturates at 100; zero gain and zero loss is NeutralRSI.
type RSI struct {
	period    int
	smoothing Smoothing
	count     int
	prevClose float64
	current   float64

	// simple: rolling window of the last `period` gains/losses
	gains  []float64
	losses []float64
	idx    int

	// wilder
	avgGain *SMMA
	avgLoss *SMMA
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int, smoothing Smoothing) *RSI {
	r := &RSI{period: period, smoothing: smoothing}
	if smoothing == SmoothingWilder {
		r.avgGain = NewSMMA(period)
		r.avgLoss = NewSMMA(period)
	} else {
		r.smoothing = SmoothingSimple
		r.gains = make([]float64, period)
		r.losses = make([]float64, period)
	}
	return r
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(bar model.PriceBar) {
	price := bar.Close
	r.count++

	if r.count == 1 {
		// first bar: record the price, no change yet
		r.prevClose = price
		return
	}

	change := (price - r.prevClose) / r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.smoothing == SmoothingWilder {
		r.avgGain.Add(gain)
		r.avgLoss.Add(loss)
		if r.Ready() {
			r.current = rsiFromAverages(r.avgGain.Value(), r.avgLoss.Value())
		}
		return
	}

	r.gains[r.idx] = gain
	r.losses[r.idx] = loss
	r.idx = (r.idx + 1) % r.period
	if !r.Ready() {
		return
	}

	// Sums are taken over the window, not carried, so a window without
	// losses yields exactly zero.
	var sumGain, sumLoss float64
	for i := 0; i < r.period; i++ {
		sumGain += r.gains[i]
		sumLoss += r.losses[i]
	}
	n := float64(r.period)
	r.current = rsiFromAverages(sumGain/n, sumLoss/n)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	v := 100.0 - (100.0 / (1.0 + rs))
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
