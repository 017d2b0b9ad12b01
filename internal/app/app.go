// Package app assembles the configured components shared by the commands.
package app

import (
	"fmt"

	"swingtrader/config"
	"swingtrader/internal/marketdata"
	"swingtrader/internal/marketdata/csvfeed"
	"swingtrader/internal/marketdata/yahoo"
	"swingtrader/internal/metrics"
	"swingtrader/internal/model"
	"swingtrader/internal/notification"
	"swingtrader/internal/store/sqlite"
)

// Source builds the market-data source named by cfg.Data.Source. archive
// is only read for the sqlite source.
func Source(cfg *config.Config, archive *sqlite.Reader) (marketdata.Source, error) {
	switch cfg.Data.Source {
	case "yahoo":
		f := yahoo.New(cfg.Data.FetchTimeout, cfg.Data.FetchRetries)
		if cfg.Data.YahooBaseURL != "" {
			f.BaseURL = cfg.Data.YahooBaseURL
		}
		return f, nil
	case "csv":
		return csvfeed.New(cfg.Data.CSVDir), nil
	case "sqlite":
		if archive == nil {
			return nil, &model.ConfigError{Param: "data.source", Value: "sqlite", Msg: "sqlite store is not open"}
		}
		return archive, nil
	}
	return nil, &model.ConfigError{Param: "data.source", Value: cfg.Data.Source, Msg: "unknown source"}
}

// Loader wraps src with fetch metrics and, when cache is non-nil, the
// series cache.
func Loader(src marketdata.Source, cache model.SeriesCache, m *metrics.Metrics) marketdata.Loader {
	var l marketdata.Loader = marketdata.Direct{Source: src, Metrics: m}
	if cache != nil {
		l = marketdata.Cached{Next: l, Cache: cache, Metrics: m}
	}
	return l
}

// Notifier always logs alerts and adds the webhook and Telegram channels
// that are configured.
func Notifier(cfg *config.Config, m *metrics.Metrics) *notification.Multi {
	n := &notification.Multi{
		Notifiers: []notification.Notifier{notification.NewLogNotifier()},
		Metrics:   m,
	}
	if cfg.Notify.WebhookURL != "" {
		n.Notifiers = append(n.Notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramToken != "" {
		n.Notifiers = append(n.Notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	return n
}

// LoadConfig loads and validates the configuration at path.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
