// Package api serves backtests over HTTP: on-demand runs, the archive of
// past runs and a WebSocket replay of a run bar by bar.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swingtrader/internal/backtest"
	"swingtrader/internal/bus"
	"swingtrader/internal/marketdata"
	"swingtrader/internal/metrics"
	"swingtrader/internal/store/sqlite"
)

// RunStore is the archive of past runs.
type RunStore interface {
	ListRuns(ctx context.Context, symbol string, limit int) ([]sqlite.RunRecord, error)
	GetRun(ctx context.Context, id string) (sqlite.RunRecord, error)
}

// LatestStore holds the most recent published result per symbol.
type LatestStore interface {
	LatestResult(ctx context.Context, symbol string) (backtest.Summary, bool, error)
}

// Deps are the collaborators of the API. Loader is required; the rest are
// optional and their routes answer 503 when unset.
type Deps struct {
	Loader       marketdata.Loader
	Config       backtest.Config // defaults for on-demand runs
	LookbackDays int
	Symbols      []string

	Runs    RunStore
	Latest  LatestStore
	Live    *bus.FanOut[backtest.Summary]
	Health  http.Handler
	Metrics *metrics.Metrics

	ReplayInterval time.Duration
	RunTimeout     time.Duration
}

// Server is the HTTP API server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	deps   Deps
}

// NewServer creates the server and registers all routes.
func NewServer(addr string, deps Deps) *Server {
	if deps.RunTimeout <= 0 {
		deps.RunTimeout = 30 * time.Second
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine: engine,
		deps:   deps,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	h := &handler{deps: s.deps}

	s.engine.GET("/health", h.health)

	api := s.engine.Group("/api")
	{
		api.GET("/symbols", h.symbols)
		api.GET("/backtest/:symbol", h.backtest)
		api.GET("/latest/:symbol", h.latest)
		api.GET("/runs", h.listRuns)
		api.GET("/runs/:id", h.getRun)
		api.GET("/runs/:id/trades", h.runTrades)
	}

	ws := s.engine.Group("/ws")
	{
		ws.GET("/replay/:symbol", h.replay)
		ws.GET("/live", h.live)
	}
}

// Start serves until Shutdown. It blocks.
func (s *Server) Start() error {
	slog.Info("api listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		slog.Debug("http request",
			"method", c.Request.Method, "path", path,
			"status", c.Writer.Status(), "latency", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
