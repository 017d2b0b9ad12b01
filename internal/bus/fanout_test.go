package bus

import (
	"context"
	"testing"
	"time"
)

type runEvent struct {
	Symbol string
	Trades int
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[runEvent](10)
	out1, _ := fo.Subscribe()
	out2, _ := fo.Subscribe()

	input := make(chan runEvent, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- runEvent{Symbol: "BTC-USD", Trades: 2}

	for i, out := range []<-chan runEvent{out1, out2} {
		select {
		case ev := <-out:
			if ev.Symbol != "BTC-USD" || ev.Trades != 2 {
				t.Errorf("out%d: unexpected event %+v", i+1, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for event", i+1)
		}
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New[int](1)
	drops := 0
	fo.OnDrop = func(int) { drops++ }
	out, _ := fo.Subscribe()

	fo.Publish(1)
	fo.Publish(2) // buffer full
	if drops != 1 {
		t.Errorf("expected 1 drop, got %d", drops)
	}
	if v := <-out; v != 1 {
		t.Errorf("expected first value, got %d", v)
	}
}

func TestFanOut_Unsubscribe(t *testing.T) {
	fo := New[int](1)
	out, cancel := fo.Subscribe()
	if fo.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-out; ok {
		t.Error("expected closed channel after cancel")
	}
	if fo.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", fo.Subscribers())
	}
	fo.Publish(1) // no subscribers, no panic
}

func TestFanOut_CloseEndsSubscribers(t *testing.T) {
	fo := New[int](1)
	out, cancel := fo.Subscribe()
	fo.Close()
	if _, ok := <-out; ok {
		t.Error("expected closed channel")
	}
	cancel() // already closed by Close
	late, _ := fo.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after Close should return a closed channel")
	}
}
