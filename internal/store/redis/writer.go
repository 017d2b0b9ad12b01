package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"swingtrader/internal/backtest"
	"swingtrader/internal/metrics"
	"swingtrader/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSeriesTTL     = 6 * time.Hour
	defaultLatestTTL     = 48 * time.Hour
	defaultHistoryMaxLen = 500

	resultPattern = "pub:backtest:*"
)

// Key layout.
func SeriesKey(symbol string, lookbackDays int) string {
	return "series:" + symbol + ":" + strconv.Itoa(lookbackDays) + "d"
}
func LatestKey(symbol string) string     { return "backtest:latest:" + symbol }
func HistoryStream(symbol string) string { return "backtest:history:" + symbol }
func ResultChannel(symbol string) string { return "pub:backtest:" + symbol }

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	SeriesTTL     time.Duration // lifetime of cached price series
	LatestTTL     time.Duration // lifetime of backtest:latest:{symbol}
	HistoryMaxLen int64         // approximate cap of each history stream

	MaxFailures  int           // breaker threshold, default 5
	ResetTimeout time.Duration // breaker cool-down, default 10s
}

func (c *Config) defaults() {
	if c.SeriesTTL <= 0 {
		c.SeriesTTL = defaultSeriesTTL
	}
	if c.LatestTTL <= 0 {
		c.LatestTTL = defaultLatestTTL
	}
	if c.HistoryMaxLen <= 0 {
		c.HistoryMaxLen = defaultHistoryMaxLen
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 10 * time.Second
	}
}

// Store caches price series and publishes backtest summaries. Every command
// goes through a circuit breaker so a dead Redis degrades to cache misses
// instead of stalling runs.
type Store struct {
	client  *goredis.Client
	cb      *CircuitBreaker
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a Store and pings the server.
func New(cfg Config, m *metrics.Metrics) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewWithClient(client, cfg, m), nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config, m *metrics.Metrics) *Store {
	cfg.defaults()
	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	cb.IsFailure = isFailure
	cb.OnStateChange = func(from, to State) {
		slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		m.SetBreakerState(int(to), to == StateOpen)
	}
	return &Store{client: client, cb: cb, cfg: cfg, metrics: m}
}

// isFailure counts transport and server errors. Misses and caller
// cancellation say nothing about Redis health.
func isFailure(err error) bool {
	return !errors.Is(err, goredis.Nil) &&
		!errors.Is(err, context.Canceled)
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker exposes the circuit breaker state.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// PutSeries caches a validated series under series:{symbol}:{lookback}d.
func (s *Store) PutSeries(ctx context.Context, lookbackDays int, series model.PriceSeries) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", series.Symbol(), err)
	}
	key := SeriesKey(series.Symbol(), lookbackDays)
	return s.cb.Execute(func() error {
		return s.client.Set(ctx, key, data, s.cfg.SeriesTTL).Err()
	})
}

// PublishResult stores the summary as the symbol's latest result, appends it
// to the history stream and notifies subscribers, in one pipeline.
func (s *Store) PublishResult(ctx context.Context, sum backtest.Summary) error {
	if sum.Symbol == "" {
		return &model.FieldError{Index: -1, Field: "symbol", Err: model.ErrMissingField}
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary %s: %w", sum.Symbol, err)
	}
	payload := string(data)

	err = s.cb.Execute(func() error {
		pipe := s.client.Pipeline()
		pipe.Set(ctx, LatestKey(sum.Symbol), payload, s.cfg.LatestTTL)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: HistoryStream(sum.Symbol),
			MaxLen: s.cfg.HistoryMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"data": payload,
			},
		})
		pipe.Publish(ctx, ResultChannel(sum.Symbol), payload)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", sum.Symbol, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
