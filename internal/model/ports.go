package model

import "context"

// ── Port interfaces ──
// These decouple the engine's callers from concrete providers and stores
// (Yahoo, CSV, SQLite, Redis).

// PriceSource supplies raw daily bars for one instrument.
type PriceSource interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// FetchDaily returns up to lookbackDays daily bars, oldest first.
	FetchDaily(ctx context.Context, symbol string, lookbackDays int) ([]RawBar, error)
}

// SeriesCache stores validated series between fetches.
// Get returns ok=false on a miss.
type SeriesCache interface {
	GetSeries(ctx context.Context, symbol string, lookbackDays int) (PriceSeries, bool, error)
	PutSeries(ctx context.Context, lookbackDays int, s PriceSeries) error
}
