// Package scheduler re-evaluates the watchlist on a cron schedule and fans
// the results out to the archive, the result cache, live subscribers and
// alert channels.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"swingtrader/internal/backtest"
	"swingtrader/internal/bus"
	"swingtrader/internal/logger"
	"swingtrader/internal/marketdata"
	"swingtrader/internal/metrics"
	"swingtrader/internal/model"
	"swingtrader/internal/notification"
	"swingtrader/internal/store/sqlite"
)

// Publisher makes a summary visible to other processes.
type Publisher interface {
	PublishResult(ctx context.Context, sum backtest.Summary) error
}

// BarArchive keeps the raw series each run was evaluated on.
type BarArchive interface {
	SaveSeries(ctx context.Context, s model.PriceSeries) error
}

// Pruner drops archived runs older than a cutoff.
type Pruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// Options wires a Scheduler. Loader is required; every sink is optional.
type Options struct {
	Watchlist    []string
	LookbackDays int
	Config       backtest.Config
	Source       string // recorded with archived runs
	Workers      int

	Loader    marketdata.Loader
	Archive   chan<- sqlite.RunRecord
	Bars      BarArchive
	Publisher Publisher
	Notifier  notification.Notifier
	Live      *bus.FanOut[backtest.Summary]
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus

	Pruner     Pruner
	RetainDays int

	Now func() time.Time
}

// Scheduler manages the evaluation cron jobs.
type Scheduler struct {
	Cron *cron.Cron
	opts Options

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler using six-field (seconds-first) cron specs.
func New(opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		opts: opts,
	}
}

// Register adds the watchlist evaluation at spec and, when RetainDays is
// set, a nightly prune of the run archive.
func (s *Scheduler) Register(ctx context.Context, spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			slog.Warn("scheduled evaluation aborted", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register evaluation: %w", err)
	}
	if s.opts.Pruner != nil && s.opts.RetainDays > 0 {
		if _, err := s.Cron.AddFunc("0 15 3 * * *", func() { s.prune(ctx) }); err != nil {
			return fmt.Errorf("register prune: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started", "symbols", len(s.opts.Watchlist))
}

// Stop stops the scheduler and waits for a running evaluation to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// ErrBusy is returned by RunOnce while another evaluation is in progress.
var ErrBusy = errors.New("evaluation already running")

// RunOnce evaluates the whole watchlist now and dispatches the results.
// Per-symbol failures are logged, counted and alerted; the returned error
// is ErrBusy or a cancelled context.
func (s *Scheduler) RunOnce(ctx context.Context) ([]backtest.JobResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := s.opts.Now()
	jobs := make([]backtest.Job, 0, len(s.opts.Watchlist))
	for _, sym := range s.opts.Watchlist {
		jobs = append(jobs, backtest.Job{
			Symbol: sym,
			Config: s.opts.Config,
			Load:   s.loadFunc(sym),
		})
	}

	results, err := backtest.RunBatch(ctx, jobs, s.opts.Workers)
	failures := 0
	for _, jr := range results {
		if jr.Result == nil && jr.Err == nil {
			continue // never started: batch cancelled
		}
		backtest.Observe(s.opts.Metrics, jr.Symbol, jr.Duration, jr.Result, jr.Err)
		if jr.Err != nil {
			failures++
		}
		s.dispatch(ctx, jr)
	}
	if s.opts.Health != nil {
		s.opts.Health.RecordBatch(s.opts.Now(), failures)
	}
	slog.Info("watchlist evaluated",
		"symbols", len(jobs), "failures", failures, "duration", s.opts.Now().Sub(start))
	return results, err
}

func (s *Scheduler) loadFunc(symbol string) backtest.LoadFunc {
	return func(ctx context.Context) (model.PriceSeries, error) {
		series, err := s.opts.Loader.Load(ctx, symbol, s.opts.LookbackDays)
		if err != nil || s.opts.Bars == nil {
			return series, err
		}
		if err := s.opts.Bars.SaveSeries(ctx, series); err != nil {
			slog.Warn("archive bars failed", append(logger.LogWithRun(ctx), "symbol", symbol, "error", err)...)
		}
		return series, nil
	}
}

// dispatch hands one job result to every configured sink.
func (s *Scheduler) dispatch(ctx context.Context, jr backtest.JobResult) {
	ctx = logger.WithRunID(ctx, jr.RunID)
	attrs := append(logger.LogWithRun(ctx), "symbol", jr.Symbol)

	if jr.Err != nil {
		s.notify(ctx, notification.FailureAlert(jr.Symbol, jr.RunID, jr.Err, s.opts.Now()))
		return
	}
	sum := jr.Result.Summary(jr.RunID)

	if s.opts.Archive != nil {
		rec := sqlite.NewRunRecord(jr.RunID, s.opts.Source, s.opts.LookbackDays, jr.Result)
		select {
		case s.opts.Archive <- rec:
		case <-ctx.Done():
			return
		}
	}
	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishResult(ctx, sum); err != nil {
			slog.Warn("publish result failed", append(attrs, "error", err)...)
		}
	}
	if s.opts.Live != nil {
		s.opts.Live.Publish(sum)
	}
	if alert, ok := notification.SignalAlert(sum); ok {
		s.notify(ctx, alert)
	}
}

func (s *Scheduler) notify(ctx context.Context, a notification.Alert) {
	if s.opts.Notifier == nil {
		return
	}
	if err := s.opts.Notifier.Send(ctx, a); err != nil {
		slog.Warn("alert failed", append(logger.LogWithRun(ctx), "title", a.Title, "error", err)...)
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	cutoff := s.opts.Now().AddDate(0, 0, -s.opts.RetainDays)
	n, err := s.opts.Pruner.PruneRuns(ctx, cutoff)
	if err != nil {
		slog.Warn("prune runs failed", "error", err)
		return
	}
	slog.Info("pruned archived runs", "deleted", n, "before", cutoff.Format(time.DateOnly))
}
