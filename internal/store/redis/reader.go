package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"swingtrader/internal/backtest"
	"swingtrader/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// GetSeries returns the cached series, ok=false on a miss. A cached value
// that no longer decodes or validates is reported as a miss and logged.
func (s *Store) GetSeries(ctx context.Context, symbol string, lookbackDays int) (model.PriceSeries, bool, error) {
	var data []byte
	err := s.cb.Execute(func() error {
		var err error
		data, err = s.client.Get(ctx, SeriesKey(symbol, lookbackDays)).Bytes()
		return err
	})
	switch {
	case errors.Is(err, goredis.Nil):
		return model.PriceSeries{}, false, nil
	case err != nil:
		return model.PriceSeries{}, false, err
	}

	var series model.PriceSeries
	if err := json.Unmarshal(data, &series); err != nil {
		slog.Warn("redis: dropping undecodable series", "symbol", symbol, "err", err)
		return model.PriceSeries{}, false, nil
	}
	return series, true, nil
}

// LatestResult returns the most recently published summary for symbol.
func (s *Store) LatestResult(ctx context.Context, symbol string) (backtest.Summary, bool, error) {
	var data []byte
	err := s.cb.Execute(func() error {
		var err error
		data, err = s.client.Get(ctx, LatestKey(symbol)).Bytes()
		return err
	})
	switch {
	case errors.Is(err, goredis.Nil):
		return backtest.Summary{}, false, nil
	case err != nil:
		return backtest.Summary{}, false, err
	}
	var sum backtest.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return backtest.Summary{}, false, fmt.Errorf("decode latest %s: %w", symbol, err)
	}
	return sum, true, nil
}

// History returns up to n published summaries for symbol, newest first.
// Entries that fail to decode are skipped.
func (s *Store) History(ctx context.Context, symbol string, n int64) ([]backtest.Summary, error) {
	if n <= 0 {
		n = 20
	}
	var msgs []goredis.XMessage
	err := s.cb.Execute(func() error {
		var err error
		msgs, err = s.client.XRevRangeN(ctx, HistoryStream(symbol), "+", "-", n).Result()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", HistoryStream(symbol), err)
	}
	return decodeHistory(msgs), nil
}

func decodeHistory(msgs []goredis.XMessage) []backtest.Summary {
	out := make([]backtest.Summary, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var sum backtest.Summary
		if err := json.Unmarshal([]byte(data), &sum); err != nil {
			continue
		}
		out = append(out, sum)
	}
	return out
}

// SubscribeResults forwards summaries published on pub:backtest:* to out.
// Slow consumers lose messages rather than block the subscription.
// Blocks until ctx is cancelled.
func (s *Store) SubscribeResults(ctx context.Context, out chan<- backtest.Summary) error {
	pubsub := s.client.PSubscribe(ctx, resultPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", resultPattern, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sum, ok := decodeMessage(msg)
			if !ok {
				continue
			}
			select {
			case out <- sum:
			default:
			}
		}
	}
}

func decodeMessage(msg *goredis.Message) (backtest.Summary, bool) {
	var sum backtest.Summary
	if err := json.Unmarshal([]byte(msg.Payload), &sum); err != nil {
		return sum, false
	}
	// fill a missing symbol from the channel name
	if sym := strings.TrimPrefix(msg.Channel, "pub:backtest:"); sym != msg.Channel && sum.Symbol == "" {
		sum.Symbol = sym
	}
	return sum, true
}
