package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"swingtrader/config"
	"swingtrader/internal/marketdata"
	"swingtrader/internal/marketdata/csvfeed"
	"swingtrader/internal/marketdata/yahoo"
	"swingtrader/internal/model"
	"swingtrader/internal/store/sqlite"
)

func TestSource(t *testing.T) {
	cfg := config.Default()

	src, err := Source(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*yahoo.Fetcher); !ok || src.Name() != "yahoo" {
		t.Errorf("yahoo source = %T", src)
	}

	cfg.Data.YahooBaseURL = "http://127.0.0.1:1"
	src, _ = Source(cfg, nil)
	if src.(*yahoo.Fetcher).BaseURL != "http://127.0.0.1:1" {
		t.Error("base URL override ignored")
	}

	cfg.Data.Source = "csv"
	src, _ = Source(cfg, nil)
	if _, ok := src.(*csvfeed.Feed); !ok {
		t.Errorf("csv source = %T", src)
	}

	cfg.Data.Source = "sqlite"
	if _, err := Source(cfg, nil); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("sqlite without store: %v", err)
	}
	path := filepath.Join(t.TempDir(), "swing.db")
	w, err := sqlite.New(sqlite.WriterConfig{DBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	r, err := sqlite.NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if src, err := Source(cfg, r); err != nil || src.Name() != "sqlite" {
		t.Errorf("sqlite source = %v, %v", src, err)
	}
}

type memCache struct {
	puts int
}

func (m *memCache) GetSeries(context.Context, string, int) (model.PriceSeries, bool, error) {
	return model.PriceSeries{}, false, nil
}

func (m *memCache) PutSeries(context.Context, int, model.PriceSeries) error {
	m.puts++
	return nil
}

func TestLoader(t *testing.T) {
	src := csvfeed.New(t.TempDir())
	if _, ok := Loader(src, nil, nil).(marketdata.Direct); !ok {
		t.Error("expected a direct loader without cache")
	}
	if _, ok := Loader(src, &memCache{}, nil).(marketdata.Cached); !ok {
		t.Error("expected a cached loader")
	}
}

func TestNotifier(t *testing.T) {
	cfg := config.Default()
	if n := Notifier(cfg, nil); len(n.Notifiers) != 1 || n.Notifiers[0].Name() != "log" {
		t.Errorf("default notifiers = %d", len(n.Notifiers))
	}
	cfg.Notify.WebhookURL = "http://example.invalid/hook"
	cfg.Notify.TelegramToken = "t"
	cfg.Notify.TelegramChatID = "1"
	n := Notifier(cfg, nil)
	if len(n.Notifiers) != 3 || n.Notifiers[1].Name() != "webhook" || n.Notifiers[2].Name() != "telegram" {
		t.Errorf("notifiers = %+v", n.Notifiers)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SWING_SOURCE", "ftp")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml")); !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("err = %v", err)
	}
	t.Setenv("SWING_SOURCE", "yahoo")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml")); err != nil {
		t.Errorf("err = %v", err)
	}
}
