// Package bus broadcasts values from one producer to many consumers.
package bus

import (
	"context"
	"log"
	"sync"
)

// FanOut broadcasts values to N subscriber channels. If a subscriber
// channel is full, the value is dropped for that subscriber so a slow
// consumer never blocks the producer.
type FanOut[T any] struct {
	mu      sync.RWMutex
	outputs map[int]chan T
	nextID  int
	bufSize int
	closed  bool

	// OnDrop is called when a value is dropped for a subscriber.
	OnDrop func(subscriberID int)
}

// New creates a FanOut with the given buffer size for output channels.
func New[T any](outputBufferSize int) *FanOut[T] {
	return &FanOut[T]{
		outputs: make(map[int]chan T),
		bufSize: outputBufferSize,
	}
}

// Subscribe creates a new output channel. The returned cancel func removes
// and closes it; it is safe to call more than once.
func (f *FanOut[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, f.bufSize)
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := f.nextID
	f.nextID++
	f.outputs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			if c, ok := f.outputs[id]; ok {
				delete(f.outputs, id)
				close(c)
			}
			f.mu.Unlock()
		})
	}
}

// Publish sends v to every subscriber without blocking.
func (f *FanOut[T]) Publish(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, ch := range f.outputs {
		select {
		case ch <- v:
		default:
			if f.OnDrop != nil {
				f.OnDrop(id)
			} else {
				log.Printf("[bus] subscriber %d full, dropping value", id)
			}
		}
	}
}

// Run publishes everything read from input until ctx is cancelled or input
// is closed, then closes all subscribers.
func (f *FanOut[T]) Run(ctx context.Context, input <-chan T) {
	defer f.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-input:
			if !ok {
				return
			}
			f.Publish(v)
		}
	}
}

// Close closes every subscriber channel; later Subscribe calls get a
// closed channel.
func (f *FanOut[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.outputs {
		close(ch)
		delete(f.outputs, id)
	}
}

// Subscribers returns the current subscriber count.
func (f *FanOut[T]) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.outputs)
}
