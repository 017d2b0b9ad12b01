package strategy

import (
	"iter"

	"swingtrader/internal/model"
)

// Pair is one step of the fold: the record at Index and the one before it.
type Pair struct {
	Index int
	Prev  model.IndicatorRecord
	Cur   model.IndicatorRecord
}

// Pairs yields (frame[i-1], frame[i]) for i = 1 … len(frame)-1.
func Pairs(frame model.IndicatorFrame) iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		for i := 1; i < len(frame); i++ {
			if !yield(Pair{Index: i, Prev: frame[i-1], Cur: frame[i]}) {
				return
			}
		}
	}
}
