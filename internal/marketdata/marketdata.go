// Package marketdata turns provider price history into validated
// PriceSeries. Providers implement Source; Loaders add validation and
// caching on top.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swingtrader/internal/logger"
	"swingtrader/internal/metrics"
	"swingtrader/internal/model"
)

// Source supplies raw daily bars; see model.PriceSource.
type Source = model.PriceSource

// Loader returns a validated series for a symbol and lookback window.
type Loader interface {
	Load(ctx context.Context, symbol string, lookbackDays int) (model.PriceSeries, error)
}

// Load fetches raw bars from src and validates them into a series.
func Load(ctx context.Context, src Source, symbol string, lookbackDays int) (model.PriceSeries, error) {
	if lookbackDays <= 0 {
		return model.PriceSeries{}, &model.ConfigError{Param: "lookback_days", Value: lookbackDays, Msg: "must be positive"}
	}
	raw, err := src.FetchDaily(ctx, symbol, lookbackDays)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("%s fetch %s: %w", src.Name(), symbol, err)
	}
	series, err := model.NewPriceSeries(symbol, raw)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("%s %s: %w", src.Name(), symbol, err)
	}
	return series, nil
}

// Direct loads straight from a Source, recording fetch metrics.
type Direct struct {
	Source  Source
	Metrics *metrics.Metrics
}

func (d Direct) Load(ctx context.Context, symbol string, lookbackDays int) (model.PriceSeries, error) {
	start := time.Now()
	s, err := Load(ctx, d.Source, symbol, lookbackDays)
	d.Metrics.ObserveFetch(d.Source.Name(), time.Since(start), err)
	return s, err
}

// Cached serves series from Cache and falls back to Next on a miss,
// writing the fetched series back. Cache failures are logged and never
// fail the load.
type Cached struct {
	Next    Loader
	Cache   model.SeriesCache
	Metrics *metrics.Metrics
}

func (c Cached) Load(ctx context.Context, symbol string, lookbackDays int) (model.PriceSeries, error) {
	s, ok, err := c.Cache.GetSeries(ctx, symbol, lookbackDays)
	if err != nil {
		slog.Warn("series cache read failed", append(logger.LogWithRun(ctx), "symbol", symbol, "error", err)...)
	}
	if ok {
		c.Metrics.ObserveCache(true)
		return s, nil
	}
	c.Metrics.ObserveCache(false)

	s, err = c.Next.Load(ctx, symbol, lookbackDays)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if err := c.Cache.PutSeries(ctx, lookbackDays, s); err != nil {
		slog.Warn("series cache write failed", append(logger.LogWithRun(ctx), "symbol", symbol, "error", err)...)
	}
	return s, nil
}
