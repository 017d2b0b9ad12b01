package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"swingtrader/internal/backtest"
	"swingtrader/internal/indicator"
	"swingtrader/internal/model"
	"swingtrader/internal/strategy"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Strategy Strategy `yaml:"strategy"`
	Backtest struct {
		InitialCapital float64 `yaml:"initial_capital"`
	} `yaml:"backtest"`
	Data     Data     `yaml:"data"`
	Redis    Redis    `yaml:"redis"`
	SQLite   SQLite   `yaml:"sqlite"`
	HTTP     HTTP     `yaml:"http"`
	Schedule Schedule `yaml:"schedule"`
	Notify   Notify   `yaml:"notify"`
	Log      Log      `yaml:"log"`
}

// Strategy holds indicator windows and signal rules.
type Strategy struct {
	SMAWindow    int     `yaml:"sma_window"`
	RSIWindow    int     `yaml:"rsi_window"`
	RSISmoothing string  `yaml:"rsi_smoothing"` // simple | wilder
	EMAFast      int     `yaml:"ema_fast"`
	EMASlow      int     `yaml:"ema_slow"`
	SignalSpan   int     `yaml:"signal_span"`
	Bollinger    bool    `yaml:"bollinger"`
	BollingerK   float64 `yaml:"bollinger_k"`
	EntryRSI     float64 `yaml:"entry_rsi"`
	ExitRSI      float64 `yaml:"exit_rsi"`
	Mode         string  `yaml:"mode"` // strict | level
}

type Data struct {
	Source       string        `yaml:"source"` // yahoo | csv | sqlite
	LookbackDays int           `yaml:"lookback_days"`
	Watchlist    []string      `yaml:"watchlist"`
	CSVDir       string        `yaml:"csv_dir"`
	YahooBaseURL string        `yaml:"yahoo_base_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRetries int           `yaml:"fetch_retries"`
}

type Redis struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	SeriesTTL time.Duration `yaml:"series_ttl"`
}

type SQLite struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"` // 0 keeps every run
}

type HTTP struct {
	APIAddr        string        `yaml:"api_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	ReplayInterval time.Duration `yaml:"replay_interval"`
}

type Schedule struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // six fields, seconds first
	Workers int    `yaml:"workers"`
}

type Notify struct {
	WebhookURL     string `yaml:"webhook_url"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
}

type Log struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Default returns the built-in configuration: SMA 20, RSI 14, EMA 12/26,
// signal 9, Bollinger 2, thresholds 30/70, capital 10000.
func Default() *Config {
	ip := indicator.DefaultParams()
	sp := strategy.DefaultParams()
	cfg := &Config{
		Strategy: Strategy{
			SMAWindow:    ip.SMAWindow,
			RSIWindow:    ip.RSIWindow,
			RSISmoothing: string(ip.RSISmoothing),
			EMAFast:      ip.EMAFast,
			EMASlow:      ip.EMASlow,
			SignalSpan:   ip.SignalSpan,
			Bollinger:    ip.Bollinger,
			BollingerK:   ip.BollingerK,
			EntryRSI:     sp.EntryRSI,
			ExitRSI:      sp.ExitRSI,
			Mode:         string(sp.Mode),
		},
		Data: Data{
			Source:       "yahoo",
			LookbackDays: 180,
			Watchlist:    []string{"AAPL", "MSFT", "BTC", "NDX"},
			CSVDir:       "data/csv",
			FetchTimeout: 10 * time.Second,
			FetchRetries: 3,
		},
		Redis: Redis{
			Addr:      "localhost:6379",
			SeriesTTL: 6 * time.Hour,
		},
		SQLite: SQLite{
			Enabled: true,
			Path:    "data/swing.db",
		},
		HTTP: HTTP{
			APIAddr:        ":8080",
			MetricsAddr:    ":9090",
			ReplayInterval: 250 * time.Millisecond,
		},
		Schedule: Schedule{
			Cron:    "0 30 22 * * 1-5",
			Workers: 4,
		},
		Log: Log{
			Level:   "info",
			Service: "swingtrader",
		},
	}
	cfg.Backtest.InitialCapital = backtest.DefaultConfig().InitialCapital
	return cfg
}

// Load starts from Default, overlays the YAML file at path (a missing file
// is not an error) and then environment variable overrides. The result is
// not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Data.Watchlist = normalizeSymbols(cfg.Data.Watchlist)
	return cfg, nil
}

// applyEnv overlays environment variables. Malformed numbers are
// configuration errors, not silently ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.setString("SWING_SOURCE", &c.Data.Source)
	e.setInt("SWING_LOOKBACK_DAYS", &c.Data.LookbackDays)
	e.setList("SWING_WATCHLIST", &c.Data.Watchlist)
	e.setString("SWING_CSV_DIR", &c.Data.CSVDir)
	e.setString("SWING_YAHOO_BASE_URL", &c.Data.YahooBaseURL)
	e.setDuration("SWING_FETCH_TIMEOUT", &c.Data.FetchTimeout)

	e.setString("SWING_MODE", &c.Strategy.Mode)
	e.setString("SWING_RSI_SMOOTHING", &c.Strategy.RSISmoothing)
	e.setFloat("SWING_ENTRY_RSI", &c.Strategy.EntryRSI)
	e.setFloat("SWING_EXIT_RSI", &c.Strategy.ExitRSI)
	e.setFloat("SWING_INITIAL_CAPITAL", &c.Backtest.InitialCapital)

	e.setBool("REDIS_ENABLED", &c.Redis.Enabled)
	e.setString("REDIS_ADDR", &c.Redis.Addr)
	e.setString("REDIS_PASSWORD", &c.Redis.Password)
	e.setBool("SQLITE_ENABLED", &c.SQLite.Enabled)
	e.setString("SQLITE_PATH", &c.SQLite.Path)
	e.setString("API_ADDR", &c.HTTP.APIAddr)
	e.setString("METRICS_ADDR", &c.HTTP.MetricsAddr)

	e.setBool("SCHEDULE_ENABLED", &c.Schedule.Enabled)
	e.setString("SCHEDULE_CRON", &c.Schedule.Cron)

	e.setString("WEBHOOK_URL", &c.Notify.WebhookURL)
	e.setString("TELEGRAM_BOT_TOKEN", &c.Notify.TelegramToken)
	e.setString("TELEGRAM_CHAT_ID", &c.Notify.TelegramChatID)

	e.setString("LOG_LEVEL", &c.Log.Level)
	return e.err
}

// BacktestConfig returns the engine parameters carried by this configuration.
func (c *Config) BacktestConfig() backtest.Config {
	s := c.Strategy
	return backtest.Config{
		Indicators: indicator.Params{
			SMAWindow:    s.SMAWindow,
			RSIWindow:    s.RSIWindow,
			RSISmoothing: indicator.Smoothing(s.RSISmoothing),
			EMAFast:      s.EMAFast,
			EMASlow:      s.EMASlow,
			SignalSpan:   s.SignalSpan,
			Bollinger:    s.Bollinger,
			BollingerK:   s.BollingerK,
		},
		Signals: strategy.Params{
			EntryRSI: s.EntryRSI,
			ExitRSI:  s.ExitRSI,
			Mode:     strategy.Mode(s.Mode),
		},
		InitialCapital: c.Backtest.InitialCapital,
	}
}

// CronParser accepts the six-field, seconds-first specs the scheduler runs.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var sources = map[string]bool{"yahoo": true, "csv": true, "sqlite": true}

// Validate checks every section. Errors wrap model.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.BacktestConfig().Validate(); err != nil {
		return err
	}
	if !sources[c.Data.Source] {
		return &model.ConfigError{Param: "data.source", Value: c.Data.Source, Msg: "must be yahoo, csv or sqlite"}
	}
	if c.Data.LookbackDays <= 0 {
		return &model.ConfigError{Param: "data.lookback_days", Value: c.Data.LookbackDays, Msg: "must be positive"}
	}
	if c.Data.Source == "csv" && c.Data.CSVDir == "" {
		return &model.ConfigError{Param: "data.csv_dir", Value: c.Data.CSVDir, Msg: "required for the csv source"}
	}
	if c.Data.Source == "sqlite" && (!c.SQLite.Enabled || c.SQLite.Path == "") {
		return &model.ConfigError{Param: "sqlite.path", Value: c.SQLite.Path, Msg: "the sqlite source needs an enabled store"}
	}
	if c.Data.FetchRetries < 0 {
		return &model.ConfigError{Param: "data.fetch_retries", Value: c.Data.FetchRetries, Msg: "must not be negative"}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &model.ConfigError{Param: "redis.addr", Value: c.Redis.Addr, Msg: "required when redis is enabled"}
	}
	if c.SQLite.RetainDays < 0 {
		return &model.ConfigError{Param: "sqlite.retain_days", Value: c.SQLite.RetainDays, Msg: "must not be negative"}
	}
	if c.Schedule.Enabled {
		if len(c.Data.Watchlist) == 0 {
			return &model.ConfigError{Param: "data.watchlist", Value: c.Data.Watchlist, Msg: "the scheduler needs at least one symbol"}
		}
		if _, err := CronParser.Parse(c.Schedule.Cron); err != nil {
			return &model.ConfigError{Param: "schedule.cron", Value: c.Schedule.Cron, Msg: err.Error()}
		}
		if c.Schedule.Workers <= 0 {
			return &model.ConfigError{Param: "schedule.workers", Value: c.Schedule.Workers, Msg: "must be positive"}
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		return &model.ConfigError{Param: "notify.telegram_chat_id", Value: c.Notify.TelegramChatID, Msg: "telegram needs both token and chat id"}
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// envReader applies overrides and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = &model.ConfigError{Param: key, Value: v, Msg: err.Error()}
	}
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = strings.Split(v, ",")
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
