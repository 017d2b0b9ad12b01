package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backtest engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec // labels: symbol, outcome=ok|error
	TradesTotal  *prometheus.CounterVec // labels: symbol, action
	RunDur       prometheus.Histogram
	LastReturn   *prometheus.GaugeVec // labels: symbol
	OpenPosition *prometheus.GaugeVec // labels: symbol (0=flat, 1=long)

	// Market data
	FetchDur    *prometheus.HistogramVec // labels: source
	FetchErrors *prometheus.CounterVec   // labels: source
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Outbound
	AlertsTotal   *prometheus.CounterVec // labels: notifier, outcome
	ReplayClients prometheus.Gauge
}

// NewMetrics registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New registers and returns all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swing_backtest_runs_total",
			Help: "Backtest runs by symbol and outcome",
		}, []string{"symbol", "outcome"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swing_backtest_trades_total",
			Help: "Simulated trades by symbol and action",
		}, []string{"symbol", "action"}),
		RunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swing_backtest_run_duration_seconds",
			Help:    "Wall time of one load+evaluate run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		LastReturn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swing_backtest_last_return_percent",
			Help: "Return of the latest run per symbol",
		}, []string{"symbol"}),
		OpenPosition: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swing_backtest_open_position",
			Help: "Whether the latest run ended long (1) or flat (0)",
		}, []string{"symbol"}),

		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swing_marketdata_fetch_duration_seconds",
			Help:    "Price history fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swing_marketdata_fetch_errors_total",
			Help: "Failed price history fetches",
		}, []string{"source"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_series_cache_hits_total",
			Help: "Series served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_series_cache_misses_total",
			Help: "Series fetched because the cache had no entry",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swing_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swing_alerts_total",
			Help: "Signal alerts sent by notifier and outcome",
		}, []string{"notifier", "outcome"}),
		ReplayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swing_replay_clients",
			Help: "Connected WebSocket replay clients",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.TradesTotal,
		m.RunDur,
		m.LastReturn,
		m.OpenPosition,
		m.FetchDur,
		m.FetchErrors,
		m.CacheHits,
		m.CacheMisses,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.AlertsTotal,
		m.ReplayClients,
	)

	return m
}

// RunSummary is the slice of a backtest outcome the metrics record.
type RunSummary struct {
	Symbol        string
	Duration      time.Duration
	Err           error
	Buys, Sells   int
	ReturnPercent float64
	Open          bool
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(s RunSummary) {
	if m == nil {
		return
	}
	m.RunDur.Observe(s.Duration.Seconds())
	if s.Err != nil {
		m.RunsTotal.WithLabelValues(s.Symbol, "error").Inc()
		return
	}
	m.RunsTotal.WithLabelValues(s.Symbol, "ok").Inc()
	m.TradesTotal.WithLabelValues(s.Symbol, "BUY").Add(float64(s.Buys))
	m.TradesTotal.WithLabelValues(s.Symbol, "SELL").Add(float64(s.Sells))
	m.LastReturn.WithLabelValues(s.Symbol).Set(s.ReturnPercent)
	open := 0.0
	if s.Open {
		open = 1
	}
	m.OpenPosition.WithLabelValues(s.Symbol).Set(open)
}

// ObserveFetch records one market-data fetch.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDur.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(source).Inc()
	}
}

// ObserveCache records a series cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// SetBreakerState mirrors the Redis circuit breaker; trips count entries
// into the open state.
func (m *Metrics) SetBreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.RedisCircuitBreakerState.Set(float64(state))
	if tripped {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// ObserveAlert records one notifier delivery.
func (m *Metrics) ObserveAlert(notifier string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AlertsTotal.WithLabelValues(notifier, outcome).Inc()
}

// ReplayConnected adjusts the replay client gauge by delta.
func (m *Metrics) ReplayConnected(delta int) {
	if m == nil {
		return
	}
	m.ReplayClients.Add(float64(delta))
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastRunAt      time.Time `json:"last_run_at"`
	LastRunErrors  int       `json:"last_run_errors"`
	Symbols        []string  `json:"symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`

	redisEnabled  bool
	sqliteEnabled bool
}

// NewHealthStatus returns a default health status. Disabled dependencies do
// not degrade the reported status.
func NewHealthStatus(redisEnabled, sqliteEnabled bool) *HealthStatus {
	return &HealthStatus{
		StartedAt:     time.Now(),
		redisEnabled:  redisEnabled,
		sqliteEnabled: sqliteEnabled,
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// RecordBatch notes the completion time and failure count of a scheduled
// batch.
func (h *HealthStatus) RecordBatch(at time.Time, failures int) {
	h.mu.Lock()
	h.LastRunAt = at
	h.LastRunErrors = failures
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// Status is the /healthz payload.
type Status struct {
	Status          string   `json:"status"`
	Uptime          string   `json:"uptime"`
	RedisConnected  bool     `json:"redis_connected"`
	RedisLatencyMs  float64  `json:"redis_latency_ms"`
	SQLiteOK        bool     `json:"sqlite_ok"`
	SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
	LastRunAt       string   `json:"last_run_at,omitempty"`
	LastRunErrors   int      `json:"last_run_errors"`
	Symbols         []string `json:"symbols"`
	LastCheckAt     string   `json:"last_check_at"`
}

// Snapshot computes the current status and its HTTP code.
func (h *HealthStatus) Snapshot() (Status, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	redisDown := h.redisEnabled && !h.RedisConnected
	sqliteDown := h.sqliteEnabled && !h.SQLiteOK

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if redisDown || sqliteDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && sqliteDown {
		overallStatus = "unhealthy"
	}

	st := Status{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastRunErrors:   h.LastRunErrors,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}
	if !h.LastRunAt.IsZero() {
		st.LastRunAt = h.LastRunAt.Format(time.RFC3339)
	}
	return st, httpCode
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, httpCode := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
