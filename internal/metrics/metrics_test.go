package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// value gathers reg and returns the counter or gauge named name whose
// labels include every k=v pair in labels.
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			have := map[string]string{}
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRun(RunSummary{Symbol: "BTC-USD", Duration: time.Millisecond, Buys: 2, Sells: 1, ReturnPercent: 12.5, Open: true})
	m.ObserveRun(RunSummary{Symbol: "BTC-USD", Err: errors.New("boom")})

	if got := value(t, reg, "swing_backtest_runs_total", "symbol", "BTC-USD", "outcome", "ok"); got != 1 {
		t.Errorf("ok runs = %v", got)
	}
	if got := value(t, reg, "swing_backtest_runs_total", "symbol", "BTC-USD", "outcome", "error"); got != 1 {
		t.Errorf("error runs = %v", got)
	}
	if got := value(t, reg, "swing_backtest_trades_total", "symbol", "BTC-USD", "action", "BUY"); got != 2 {
		t.Errorf("buys = %v", got)
	}
	if got := value(t, reg, "swing_backtest_last_return_percent", "symbol", "BTC-USD"); got != 12.5 {
		t.Errorf("last return = %v", got)
	}
	if got := value(t, reg, "swing_backtest_open_position", "symbol", "BTC-USD"); got != 1 {
		t.Errorf("open position = %v", got)
	}
}

func TestCacheAndBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.SetBreakerState(1, true)

	if got := value(t, reg, "swing_series_cache_hits_total"); got != 1 {
		t.Errorf("hits = %v", got)
	}
	if got := value(t, reg, "swing_series_cache_misses_total"); got != 2 {
		t.Errorf("misses = %v", got)
	}
	if got := value(t, reg, "swing_redis_circuit_breaker_state"); got != 1 {
		t.Errorf("breaker state = %v", got)
	}
	if got := value(t, reg, "swing_redis_circuit_breaker_trips_total"); got != 1 {
		t.Errorf("breaker trips = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(RunSummary{Symbol: "X"})
	m.ObserveFetch("yahoo", time.Second, nil)
	m.ObserveCache(true)
	m.SetBreakerState(2, false)
	m.ObserveAlert("log", nil)
	m.ReplayConnected(1)
}

func TestHealthz(t *testing.T) {
	h := NewHealthStatus(true, false)
	h.SetSymbols([]string{"BTC-USD"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with redis down, got %d", rec.Code)
	}

	h.SetRedisConnected(true)
	h.RecordBatch(time.Now(), 0)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "healthy" || len(st.Symbols) != 1 || st.LastRunAt == "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(":0", NewHealthStatus(false, false))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics returned %d", rec.Code)
	}
}
