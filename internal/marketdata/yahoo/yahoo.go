// Package yahoo fetches daily closes from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"swingtrader/internal/logger"
	"swingtrader/internal/model"
)

// DefaultBaseURL is the public chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData is returned when the provider answers without any bars.
var ErrNoData = errors.New("yahoo: no data returned")

// Fetcher implements model.PriceSource over the chart API. Requests are
// bounded by the client timeout and retried with exponential backoff on
// transport errors, 429 and 5xx responses.
type Fetcher struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	Retries   int               // extra attempts after the first
	Backoff   time.Duration     // first retry delay, doubled each attempt
	Now       func() time.Time
}

// New creates a fetcher with the given request timeout and retry budget.
func New(timeout time.Duration, retries int) *Fetcher {
	return &Fetcher{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: DefaultBaseURL,
		SymbolMap: map[string]string{
			"BTC":    "BTC-USD",
			"NDX":    "^NDX",
			"NAS100": "^NDX",
		},
		Retries: retries,
		Backoff: 500 * time.Millisecond,
		Now:     time.Now,
	}
}

func (f *Fetcher) Name() string { return "yahoo" }

func (f *Fetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// chart is the subset of the chart API response the fetcher reads.
type chart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// statusError is a non-200 reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo: status %d, body: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// FetchDaily returns the daily bars of the last lookbackDays calendar days,
// oldest first. Rows where the provider has neither open nor close (market
// holidays) are skipped; a row with an open but no close is returned with
// a nil Close so validation can reject it.
func (f *Fetcher) FetchDaily(ctx context.Context, symbol string, lookbackDays int) ([]model.RawBar, error) {
	now := f.Now().UTC()
	from := now.AddDate(0, 0, -lookbackDays)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), from.Unix(), now.Unix())

	var (
		body []byte
		err  error
	)
	delay := f.Backoff
	for attempt := 0; ; attempt++ {
		body, err = f.get(ctx, u)
		if err == nil || attempt >= f.Retries || !retryable(err) {
			break
		}
		slog.Warn("yahoo fetch retry", append(logger.LogWithRun(ctx),
			"symbol", symbol, "attempt", attempt+1, "delay", delay, "error", err)...)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	if err != nil {
		return nil, err
	}
	return decode(body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return true
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

func decode(body []byte) ([]model.RawBar, error) {
	var c chart
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if c.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", c.Chart.Error.Description)
	}
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Timestamp) == 0 ||
		len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	result := c.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.RawBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		var open, closePx *float64
		if i < len(quote.Open) {
			open = quote.Open[i]
		}
		if i < len(quote.Close) {
			closePx = quote.Close[i]
		}
		if open == nil && closePx == nil {
			continue // holiday row
		}
		day := exchangeDate(ts, result.Meta.GMTOffset)
		// The live bar can repeat the last session's date; keep the newest.
		if n := len(bars); n > 0 && bars[n-1].TS.Equal(day) {
			bars[n-1].Close = closePx
			continue
		}
		bars = append(bars, model.RawBar{TS: day, Close: closePx})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// exchangeDate maps a bar timestamp to its trading date at UTC midnight.
func exchangeDate(ts, gmtOffset int64) time.Time {
	t := time.Unix(ts+gmtOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
