// Package notification delivers trade-signal alerts to external channels
// (logs, generic webhooks, Telegram).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"swingtrader/internal/backtest"
	"swingtrader/internal/metrics"
	"swingtrader/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel   `json:"level"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Symbol  string       `json:"symbol,omitempty"`
	Action  model.Action `json:"action,omitempty"`
	Price   float64      `json:"price,omitempty"`
	TS      time.Time    `json:"ts"`
	RunID   string       `json:"run_id,omitempty"`
}

// SignalAlert builds the alert for a BUY or SELL on the latest bar of a run.
// ok is false when the latest bar is a HOLD.
func SignalAlert(sum backtest.Summary) (Alert, bool) {
	if !sum.Actionable() {
		return Alert{}, false
	}
	l := sum.Latest
	return Alert{
		Level:  AlertInfo,
		Title:  fmt.Sprintf("%s %s", l.Action, sum.Symbol),
		Symbol: sum.Symbol,
		Action: l.Action,
		Price:  l.Close,
		TS:     l.TS,
		RunID:  sum.RunID,
		Message: fmt.Sprintf("%s %s at %.2f on %s (%s). Backtest return %.2f%% over %d trades.",
			l.Action, sum.Symbol, l.Close, l.TS.Format("2006-01-02"), l.Reason,
			sum.Report.ReturnPercent, sum.Report.TotalTrades),
	}, true
}

// FailureAlert reports a watchlist symbol that could not be evaluated.
func FailureAlert(symbol, runID string, err error, at time.Time) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "evaluation failed: " + symbol,
		Message: err.Error(),
		Symbol:  symbol,
		TS:      at,
		RunID:   runID,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts. Used when no external channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.InfoContext(ctx, "alert",
		"level", alert.Level, "title", alert.Title, "message", alert.Message, "run_id", alert.RunID)
	return nil
}

// Multi sends every alert to all backends. One failing backend does not
// stop the others; the joined error reports all failures.
type Multi struct {
	Notifiers []Notifier
	Metrics   *metrics.Metrics
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m.Notifiers {
		err := n.Send(ctx, alert)
		m.Metrics.ObserveAlert(n.Name(), err)
		if err != nil {
			slog.WarnContext(ctx, "notify failed", "notifier", n.Name(), "title", alert.Title, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
