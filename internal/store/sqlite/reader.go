package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"swingtrader/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Reader provides read-only access to archived bars and runs. It also
// serves archived bars as a model.PriceSource.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

func (r *Reader) Name() string { return "sqlite" }

// ReadBars returns the archived bars of symbol with ts >= from, oldest first.
func (r *Reader) ReadBars(ctx context.Context, symbol string, from time.Time) ([]model.RawBar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, close FROM price_bars
		WHERE symbol = ? AND ts >= ?
		ORDER BY ts ASC
	`, symbol, from.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query price_bars: %w", err)
	}
	defer rows.Close()

	var bars []model.RawBar
	for rows.Next() {
		var (
			tsUnix int64
			c      float64
		)
		if err := rows.Scan(&tsUnix, &c); err != nil {
			return nil, fmt.Errorf("sqlite scan price_bars: %w", err)
		}
		bars = append(bars, model.RawBar{TS: time.Unix(tsUnix, 0).UTC(), Close: model.ClosePtr(c)})
	}
	return bars, rows.Err()
}

// FetchDaily returns the archived bars of the last lookbackDays calendar
// days, counted back from the newest archived bar.
func (r *Reader) FetchDaily(ctx context.Context, symbol string, lookbackDays int) ([]model.RawBar, error) {
	var last sql.NullInt64
	if err := r.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM price_bars WHERE symbol = ?`, symbol).Scan(&last); err != nil {
		return nil, fmt.Errorf("sqlite last bar: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	from := time.Unix(last.Int64, 0).UTC().AddDate(0, 0, -lookbackDays+1)
	return r.ReadBars(ctx, symbol, from)
}

// ReadSeries loads and validates the archived bars of symbol since from.
func (r *Reader) ReadSeries(ctx context.Context, symbol string, from time.Time) (model.PriceSeries, error) {
	bars, err := r.ReadBars(ctx, symbol, from)
	if err != nil {
		return model.PriceSeries{}, err
	}
	return model.NewPriceSeries(symbol, bars)
}

const runColumns = `id, symbol, source, lookback_days, created_at, config,
	initial_capital, final_balance, return_percent, total_trades, open_position, last_close, warmup_complete`

func scanRun(row interface{ Scan(...any) error }) (RunRecord, error) {
	var (
		rec       RunRecord
		createdAt int64
		cfg       string
	)
	rep := &rec.Report
	if err := row.Scan(&rec.ID, &rec.Symbol, &rec.Source, &rec.LookbackDays, &createdAt, &cfg,
		&rep.InitialCapital, &rep.FinalBalance, &rep.ReturnPercent, &rep.TotalTrades, &rep.OpenPosition,
		&rep.LastClose, &rec.WarmupComplete); err != nil {
		return RunRecord{}, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal run config: %w", err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first, optionally filtered by
// symbol ("" for all). Trades are not loaded.
func (r *Reader) ListRuns(ctx context.Context, symbol string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM backtest_runs
		WHERE (? = '' OR symbol = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query backtest_runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan backtest_runs: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// GetRun loads one run with its trade log.
func (r *Reader) GetRun(ctx context.Context, id string) (RunRecord, error) {
	rec, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("sqlite read run: %w", err)
	}
	rec.Trades, err = r.RunTrades(ctx, id)
	return rec, err
}

// RunTrades returns the trade log of a run in sequence order.
func (r *Reader) RunTrades(ctx context.Context, runID string) ([]model.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, ts, action, price, quantity, cash_after, holdings_after
		FROM run_trades WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query run_trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var (
			t      model.Trade
			tsUnix int64
			action string
		)
		if err := rows.Scan(&t.Seq, &tsUnix, &action, &t.Price, &t.Quantity, &t.CashAfter, &t.HoldingsAfter); err != nil {
			return nil, fmt.Errorf("sqlite scan run_trades: %w", err)
		}
		t.TS = time.Unix(tsUnix, 0).UTC()
		t.Action = model.Action(action)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
