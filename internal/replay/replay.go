// Package replay streams a finished backtest bar by bar at a configurable
// pace, for clients that animate the run.
package replay

import (
	"context"
	"log"
	"time"

	"swingtrader/internal/backtest"
	"swingtrader/internal/model"
)

// Frame is one replayed bar: its indicators, the decision taken on it and
// the ledger after it. Bar 0 has no decision.
type Frame struct {
	Index     int                   `json:"index"`
	Record    model.IndicatorRecord `json:"record"`
	Decision  *model.BarSignal      `json:"decision,omitempty"`
	Equity    model.EquityPoint     `json:"equity"`
	Remaining int                   `json:"remaining"`
}

// Frames flattens a Result into replay frames, one per bar.
func Frames(res *backtest.Result) []Frame {
	out := make([]Frame, len(res.Frame))
	for i, rec := range res.Frame {
		out[i] = Frame{Index: i, Record: rec, Remaining: len(res.Frame) - 1 - i}
		if i < len(res.Equity) {
			out[i].Equity = res.Equity[i]
		}
	}
	for i := range res.Bars {
		b := res.Bars[i]
		if b.Index < len(out) {
			out[b.Index].Decision = &b
		}
	}
	return out
}

// Replayer paces frames onto a channel.
type Replayer struct {
	// Interval is the pause between frames; 0 replays as fast as the
	// consumer reads.
	Interval time.Duration
	// MaxPause caps Interval.
	MaxPause time.Duration
}

// New creates a Replayer emitting one frame per interval.
func New(interval time.Duration) *Replayer {
	return &Replayer{Interval: interval, MaxPause: 5 * time.Second}
}

// Run emits frames from index from onwards into outCh. It returns
// ctx.Err() when cancelled and nil after the last frame. outCh is not
// closed.
func (r *Replayer) Run(ctx context.Context, frames []Frame, from int, outCh chan<- Frame) error {
	if from < 0 {
		from = 0
	}
	pause := r.Interval
	if r.MaxPause > 0 && pause > r.MaxPause {
		pause = r.MaxPause
	}

	emitted := 0
	for i := from; i < len(frames); i++ {
		if emitted > 0 && pause > 0 {
			select {
			case <-ctx.Done():
				log.Printf("[replay] cancelled after %d frames", emitted)
				return ctx.Err()
			case <-time.After(pause):
			}
		}
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d frames", emitted)
			return ctx.Err()
		case outCh <- frames[i]:
			emitted++
		}
	}
	return nil
}
