package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"swingtrader/internal/model"
)

// 2024-03-04 14:30 UTC (NYSE open), then the next two sessions.
const chartBody = `{"chart":{"result":[{
 "meta":{"gmtoffset":-18000},
 "timestamp":[1709562600,1709649000,1709735400,1709821800],
 "indicators":{"quote":[{
   "open":[100.0,101.0,null,103.0],
   "close":[100.5,null,null,103.5]
 }]}
}],"error":null}}`

func newTestFetcher(url string) *Fetcher {
	f := New(2*time.Second, 2)
	f.BaseURL = url
	f.Backoff = time.Millisecond
	f.Now = func() time.Time { return time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchDaily_Decode(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		fmt.Fprint(w, chartBody)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	bars, err := f.FetchDaily(context.Background(), "NDX", 90)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v8/finance/chart/%5ENDX" {
		t.Errorf("symbol not mapped/escaped: %s", gotPath)
	}
	if !strings.Contains(gotQuery, "interval=1d") || !strings.Contains(gotQuery, "period2=1709856000") {
		t.Errorf("unexpected query %s", gotQuery)
	}

	// The all-null row is skipped; the open-but-no-close row stays with a nil close.
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	want := []time.Time{
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
	}
	for i, b := range bars {
		if !b.TS.Equal(want[i]) {
			t.Errorf("bar %d date %v, want %v", i, b.TS, want[i])
		}
	}
	if bars[0].Close == nil || *bars[0].Close != 100.5 || bars[1].Close != nil {
		t.Errorf("unexpected closes %+v", bars)
	}

	if _, err := model.NewPriceSeries("^NDX", bars); !errors.Is(err, model.ErrMissingField) {
		t.Errorf("missing close must fail validation, got %v", err)
	}
}

func TestFetchDaily_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chartBody)
	}))
	defer srv.Close()

	bars, err := newTestFetcher(srv.URL).FetchDaily(context.Background(), "BTC-USD", 90)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 || len(bars) != 3 {
		t.Errorf("calls=%d bars=%d", calls.Load(), len(bars))
	}
}

func TestFetchDaily_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).FetchDaily(context.Background(), "BTC-USD", 90)
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 1 try + 2 retries, got %d", calls.Load())
	}
}

func TestFetchDaily_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestFetcher(srv.URL).FetchDaily(context.Background(), "NOPE", 90); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestFetchDaily_APIErrorAndEmpty(t *testing.T) {
	bodies := map[string]string{
		"api error": `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`,
		"empty":     `{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()
			if _, err := newTestFetcher(srv.URL).FetchDaily(context.Background(), "X", 90); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFetchDaily_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher(srv.URL).FetchDaily(ctx, "X", 90)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
