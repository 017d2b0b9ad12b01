package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"swingtrader/internal/logger"
	"swingtrader/internal/replay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Message is the envelope of every WebSocket message.
// Type is "frame", "report", "result" or "error".
type Message struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// replay evaluates the requested run, then streams one "frame" message per
// bar followed by a final "report". ?interval= (e.g. 100ms) paces frames and
// ?from= skips leading bars.
func (h *handler) replay(c *gin.Context) {
	req, parseErr := h.parseRun(c)
	interval := h.deps.ReplayInterval
	if v := c.Query("interval"); v != "" && parseErr == nil {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be a non-negative duration"})
			return
		}
		interval = d
	}
	from, _ := strconv.Atoi(c.Query("from"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go readUntilClosed(conn, cancel)

	ctx, runID := logger.EnsureRunID(ctx)
	if parseErr != nil {
		writeMessage(conn, Message{Type: "error", RunID: runID, Error: parseErr.Error()})
		return
	}
	res, err := h.evaluate(ctx, req)
	if err != nil {
		writeMessage(conn, Message{Type: "error", RunID: runID, Error: err.Error()})
		return
	}

	h.deps.Metrics.ReplayConnected(1)
	defer h.deps.Metrics.ReplayConnected(-1)

	frames := replay.Frames(res)
	out := make(chan replay.Frame)
	done := make(chan error, 1)
	go func() {
		done <- replay.New(interval).Run(ctx, frames, from, out)
		close(out)
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case f, ok := <-out:
			if !ok {
				if err := <-done; err != nil {
					return
				}
				writeMessage(conn, Message{Type: "report", RunID: runID, Data: res.Summary(runID)})
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeMessage(conn, Message{Type: "frame", RunID: runID, Data: f}); err != nil {
				cancel()
				<-done
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				<-done
				return
			}
		}
	}
}

// live pushes every summary published on the bus as a "result" message.
func (h *handler) live(c *gin.Context) {
	if h.deps.Live == nil {
		unavailable(c, "live feed")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go readUntilClosed(conn, cancel)

	sub, unsubscribe := h.deps.Live.Subscribe()
	defer unsubscribe()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case sum, ok := <-sub:
			if !ok {
				return
			}
			if err := writeMessage(conn, Message{Type: "result", RunID: sum.RunID, Data: sum}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, m Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}

// readUntilClosed drains client frames so pongs and close frames are
// processed, and cancels when the client goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
