package backtest

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"swingtrader/internal/logger"
	"swingtrader/internal/model"
)

// LoadFunc supplies the series for one job.
type LoadFunc func(ctx context.Context) (model.PriceSeries, error)

// Job is one independent run: a symbol, how to load it and its config.
type Job struct {
	Symbol string
	Config Config
	Load   LoadFunc
}

// JobResult pairs a job with its outcome. Exactly one of Result and Err is
// set.
type JobResult struct {
	Symbol   string
	RunID    string
	Result   *Result
	Err      error
	Duration time.Duration
}

// RunBatch evaluates jobs concurrently, at most workers at a time
// (GOMAXPROCS when workers <= 0). A failing job does not stop the others;
// its error is reported in its JobResult. Results keep the order of jobs.
// The returned error is non-nil only when ctx was cancelled.
func RunBatch(ctx context.Context, jobs []Job, workers int) ([]JobResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runJob(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func runJob(ctx context.Context, job Job) JobResult {
	runID := logger.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	start := time.Now()
	jr := JobResult{Symbol: job.Symbol, RunID: runID}

	series, err := job.Load(ctx)
	if err == nil {
		jr.Result, err = Evaluate(series, job.Config)
	}
	jr.Err = err
	jr.Duration = time.Since(start)

	attrs := append(logger.LogWithRun(ctx), "symbol", job.Symbol, "duration", jr.Duration)
	if err != nil {
		slog.Warn("backtest job failed", append(attrs, "error", err)...)
		return jr
	}
	slog.Debug("backtest job done", append(attrs,
		"trades", jr.Result.Report.TotalTrades,
		"return_pct", jr.Result.Report.ReturnPercent)...)
	return jr
}
