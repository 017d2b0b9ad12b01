// cmd/swingd is the long-running service: HTTP API, metrics and health
// endpoints, and the scheduled re-evaluation of the watchlist.
//
// Usage:
//
//	go run ./cmd/swingd -config=swing.yaml -run-on-start
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"swingtrader/internal/api"
	"swingtrader/internal/app"
	"swingtrader/internal/backtest"
	"swingtrader/internal/bus"
	"swingtrader/internal/logger"
	"swingtrader/internal/metrics"
	"swingtrader/internal/model"
	"swingtrader/internal/scheduler"
	redisstore "swingtrader/internal/store/redis"
	sqlitestore "swingtrader/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "swing.yaml", "Path to YAML config (missing file = defaults)")
	runOnStart := flag.Bool("run-on-start", false, "Evaluate the watchlist once at startup")
	flag.Parse()

	cfg, err := app.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("[swingd] %v", err)
	}
	logger.Init(cfg.Log.Service, logger.ParseLevel(cfg.Log.Level))
	log.Printf("[swingd] starting: source=%s lookback=%dd symbols=%v", cfg.Data.Source, cfg.Data.LookbackDays, cfg.Data.Watchlist)

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.Redis.Enabled, cfg.SQLite.Enabled)
	health.SetSymbols(cfg.Data.Watchlist)
	metricsSrv := metrics.NewServer(cfg.HTTP.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite archive ----
	var (
		sqlWriter *sqlitestore.Writer
		sqlReader *sqlitestore.Reader
		archiveCh chan sqlitestore.RunRecord
		archived  chan struct{}
	)
	if cfg.SQLite.Enabled {
		os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755)
		sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLite.Path})
		if err != nil {
			log.Fatalf("[swingd] sqlite init failed: %v", err)
		}
		defer sqlWriter.Close()
		sqlReader, err = sqlitestore.NewReader(cfg.SQLite.Path)
		if err != nil {
			log.Fatalf("[swingd] sqlite reader failed: %v", err)
		}
		defer sqlReader.Close()
		health.SetSQLiteOK(true)

		archiveCh = make(chan sqlitestore.RunRecord, 256)
		archived = make(chan struct{})
		go func() {
			sqlWriter.Run(ctx, archiveCh)
			close(archived)
		}()
		log.Println("[swingd] sqlite archive ready")
	}

	// ---- Redis cache + result publishing ----
	var redisStore *redisstore.Store
	if cfg.Redis.Enabled {
		redisStore, err = redisstore.New(redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			SeriesTTL: cfg.Redis.SeriesTTL,
		}, prom)
		if err != nil {
			log.Printf("[swingd] WARNING: redis init failed: %v (continuing without redis)", err)
			health.SetRedisConnected(false)
		} else {
			defer redisStore.Close()
			health.SetRedisConnected(true)
			log.Println("[swingd] redis store ready")
		}
	}

	// ---- Periodic liveness checks ----
	if redisStore != nil || sqlReader != nil {
		if redisStore != nil && sqlReader != nil {
			health.StartLivenessChecker(ctx, redisStore.Client(), sqlReader.DB(), 10*time.Second)
		} else if redisStore != nil {
			health.StartLivenessChecker(ctx, redisStore.Client(), nil, 10*time.Second)
		} else {
			health.StartLivenessChecker(ctx, nil, sqlReader.DB(), 10*time.Second)
		}
	}

	// ---- Market data ----
	src, err := app.Source(cfg, sqlReader)
	if err != nil {
		log.Fatalf("[swingd] %v", err)
	}
	var cache model.SeriesCache
	if redisStore != nil {
		cache = redisStore
	}
	loader := app.Loader(src, cache, prom)

	// ---- Live result feed ----
	// With Redis, every instance hears every publish; without it the
	// scheduler feeds the bus directly.
	live := bus.New[backtest.Summary](64)
	live.OnDrop = func(id int) { log.Printf("[swingd] live subscriber %d lagging, result dropped", id) }
	var schedLive *bus.FanOut[backtest.Summary]
	if redisStore != nil {
		resultCh := make(chan backtest.Summary, 64)
		go func() {
			if err := redisStore.SubscribeResults(ctx, resultCh); err != nil {
				log.Printf("[swingd] redis subscribe: %v", err)
			}
		}()
		go live.Run(ctx, resultCh)
	} else {
		schedLive = live
		defer live.Close()
	}

	// ---- Scheduler ----
	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled || *runOnStart {
		opts := scheduler.Options{
			Watchlist:    cfg.Data.Watchlist,
			LookbackDays: cfg.Data.LookbackDays,
			Config:       cfg.BacktestConfig(),
			Source:       src.Name(),
			Workers:      cfg.Schedule.Workers,
			Loader:       loader,
			Notifier:     app.Notifier(cfg, prom),
			Live:         schedLive,
			Metrics:      prom,
			Health:       health,
			RetainDays:   cfg.SQLite.RetainDays,
		}
		if archiveCh != nil {
			opts.Archive = archiveCh
			if cfg.Data.Source != "sqlite" {
				opts.Bars = sqlWriter
			}
			opts.Pruner = sqlWriter
		}
		if redisStore != nil {
			opts.Publisher = redisStore
		}
		sched = scheduler.New(opts)
	}
	if sched != nil && cfg.Schedule.Enabled {
		if err := sched.Register(ctx, cfg.Schedule.Cron); err != nil {
			log.Fatalf("[swingd] %v", err)
		}
		sched.Start()
	}
	if sched != nil && *runOnStart {
		go func() {
			if _, err := sched.RunOnce(ctx); err != nil {
				log.Printf("[swingd] startup evaluation: %v", err)
			}
		}()
	}

	// ---- HTTP API ----
	deps := api.Deps{
		Loader:         loader,
		Config:         cfg.BacktestConfig(),
		LookbackDays:   cfg.Data.LookbackDays,
		Symbols:        cfg.Data.Watchlist,
		Live:           live,
		Health:         health,
		Metrics:        prom,
		ReplayInterval: cfg.HTTP.ReplayInterval,
	}
	if sqlReader != nil {
		deps.Runs = sqlReader
	}
	if redisStore != nil {
		deps.Latest = redisStore
	}
	apiSrv := api.NewServer(cfg.HTTP.APIAddr, deps)
	go func() {
		if err := apiSrv.Start(); err != nil {
			log.Printf("[swingd] api server: %v", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[swingd] shutdown signal received, cleaning up...")
	if sched != nil {
		sched.Stop()
	}
	cancel()
	if archived != nil {
		<-archived // final batch flush
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[swingd] shutdown complete.")
}
