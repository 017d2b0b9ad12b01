package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"swingtrader/internal/backtest"
	"swingtrader/internal/indicator"
	"swingtrader/internal/logger"
	"swingtrader/internal/marketdata/yahoo"
	"swingtrader/internal/model"
	"swingtrader/internal/store/sqlite"
	"swingtrader/internal/strategy"
)

type handler struct {
	deps Deps
}

func (h *handler) health(c *gin.Context) {
	if h.deps.Health != nil {
		h.deps.Health.ServeHTTP(c.Writer, c.Request)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) symbols(c *gin.Context) {
	symbols := h.deps.Symbols
	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"symbols":       symbols,
		"instruments":   model.Instruments(symbols),
		"lookback_days": h.deps.LookbackDays,
	})
}

// runRequest is an on-demand run decoded from the query string.
type runRequest struct {
	Symbol   string
	Lookback int
	Config   backtest.Config
}

// parseRun overlays ?lookback=&mode=&capital=&entry=&exit=&smoothing= on
// the server defaults.
func (h *handler) parseRun(c *gin.Context) (runRequest, error) {
	req := runRequest{
		Symbol:   strings.ToUpper(strings.TrimSpace(c.Param("symbol"))),
		Lookback: h.deps.LookbackDays,
		Config:   h.deps.Config,
	}
	if req.Symbol == "" {
		return req, &model.ConfigError{Param: "symbol", Value: "", Msg: "required"}
	}
	if v := c.Query("lookback"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, &model.ConfigError{Param: "lookback", Value: v, Msg: "must be an integer"}
		}
		req.Lookback = n
	}
	if v := c.Query("mode"); v != "" {
		m, err := strategy.ParseMode(v)
		if err != nil {
			return req, &model.ConfigError{Param: "mode", Value: v, Msg: err.Error()}
		}
		req.Config.Signals.Mode = m
	}
	if v := c.Query("smoothing"); v != "" {
		req.Config.Indicators.RSISmoothing = indicator.Smoothing(v)
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"capital", &req.Config.InitialCapital},
		{"entry", &req.Config.Signals.EntryRSI},
		{"exit", &req.Config.Signals.ExitRSI},
	}
	for _, f := range floats {
		v := c.Query(f.key)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, &model.ConfigError{Param: f.key, Value: v, Msg: "must be a number"}
		}
		*f.dst = x
	}
	if req.Lookback <= 0 {
		return req, &model.ConfigError{Param: "lookback", Value: req.Lookback, Msg: "must be positive"}
	}
	if err := req.Config.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// evaluate loads and runs req, recording metrics.
func (h *handler) evaluate(ctx context.Context, req runRequest) (*backtest.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, h.deps.RunTimeout)
	defer cancel()

	start := time.Now()
	series, err := h.deps.Loader.Load(ctx, req.Symbol, req.Lookback)
	var res *backtest.Result
	if err == nil {
		res, err = backtest.Evaluate(series, req.Config)
	}
	backtest.Observe(h.deps.Metrics, req.Symbol, time.Since(start), res, err)
	return res, err
}

func (h *handler) backtest(c *gin.Context) {
	req, err := h.parseRun(c)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, runID := logger.EnsureRunID(c.Request.Context())
	res, err := h.evaluate(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"run_id":          runID,
		"symbol":          res.Symbol,
		"lookback_days":   req.Lookback,
		"config":          res.Config,
		"report":          res.Report,
		"trades":          res.Trades,
		"signals":         res.Signals,
		"warmup_complete": res.WarmupComplete,
		"first_tradeable": res.FirstTradeable,
	}
	if c.Query("detail") == "full" {
		body["frame"] = res.Frame
		body["bars"] = res.Bars
		body["equity"] = res.Equity
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) latest(c *gin.Context) {
	if h.deps.Latest == nil {
		unavailable(c, "result cache")
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))
	sum, ok, err := h.deps.Latest.LatestResult(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no published result", "symbol": symbol})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *handler) listRuns(c *gin.Context) {
	if h.deps.Runs == nil {
		unavailable(c, "run archive")
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(c, &model.ConfigError{Param: "limit", Value: v, Msg: "must be in 1..500"})
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs.ListRuns(c.Request.Context(), strings.ToUpper(c.Query("symbol")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if runs == nil {
		runs = []sqlite.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *handler) getRun(c *gin.Context) {
	if h.deps.Runs == nil {
		unavailable(c, "run archive")
		return
	}
	rec, err := h.deps.Runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) runTrades(c *gin.Context) {
	if h.deps.Runs == nil {
		unavailable(c, "run archive")
		return
	}
	rec, err := h.deps.Runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	trades := rec.Trades
	if trades == nil {
		trades = []model.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": rec.ID, "symbol": rec.Symbol, "trades": trades})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, sqlite.ErrRunNotFound),
		errors.Is(err, yahoo.ErrNoData),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientData),
		errors.Is(err, model.ErrMissingField),
		errors.Is(err, model.ErrInvalidSeries):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrInvariantViolation):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
