// Package indicator provides technical indicator calculations over daily bars.
//
// Streaming indicators implement the Indicator interface: bars are fed one at
// a time and the current value is read back once Ready. Compute folds a set
// of them over a whole PriceSeries to build an IndicatorFrame.
package indicator

import "swingtrader/internal/model"

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "RSI").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.PriceBar)

	// Value returns the current value. Meaningless until Ready.
	Value() float64

	// Ready returns true when enough bars have been accumulated.
	Ready() bool
}

// Current returns the indicator value as an optional Float.
func Current(ind Indicator) model.Float {
	if !ind.Ready() {
		return model.None
	}
	return model.Some(ind.Value())
}
