// Package sqlite archives price bars, backtest runs and their trade logs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"swingtrader/internal/backtest"
	"swingtrader/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 20
	defaultFlushDelay = 500 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/swing.db"
}

// RunRecord is one archived backtest run.
type RunRecord struct {
	ID             string               `json:"id"`
	Symbol         string               `json:"symbol"`
	Source         string               `json:"source"`
	LookbackDays   int                  `json:"lookback_days"`
	CreatedAt      time.Time            `json:"created_at"`
	Config         backtest.Config      `json:"config"`
	Report         model.BacktestReport `json:"report"`
	WarmupComplete bool                 `json:"warmup_complete"`
	Trades         []model.Trade        `json:"trades,omitempty"`
}

// NewRunRecord builds the archive row for a finished run.
func NewRunRecord(id, source string, lookbackDays int, res *backtest.Result) RunRecord {
	return RunRecord{
		ID:             id,
		Symbol:         res.Symbol,
		Source:         source,
		LookbackDays:   lookbackDays,
		CreatedAt:      time.Now().UTC(),
		Config:         res.Config,
		Report:         res.Report,
		WarmupComplete: res.WarmupComplete,
		Trades:         res.Trades,
	}
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_bars (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			id              TEXT    PRIMARY KEY,
			symbol          TEXT    NOT NULL,
			source          TEXT    NOT NULL,
			lookback_days   INTEGER NOT NULL,
			created_at      INTEGER NOT NULL,
			config          TEXT    NOT NULL,
			initial_capital REAL    NOT NULL,
			final_balance   REAL    NOT NULL,
			return_percent  REAL    NOT NULL,
			total_trades    INTEGER NOT NULL,
			open_position   INTEGER NOT NULL,
			last_close      REAL    NOT NULL,
			warmup_complete INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_symbol_created ON backtest_runs(symbol, created_at);

		CREATE TABLE IF NOT EXISTS run_trades (
			run_id         TEXT    NOT NULL,
			seq            INTEGER NOT NULL,
			ts             INTEGER NOT NULL,
			action         TEXT    NOT NULL,
			price          REAL    NOT NULL,
			quantity       REAL    NOT NULL,
			cash_after     REAL    NOT NULL,
			holdings_after REAL    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

// SaveSeries upserts every bar of s in one transaction.
func (w *Writer) SaveSeries(ctx context.Context, s model.PriceSeries) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO price_bars (symbol, ts, close) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < s.Len(); i++ {
		b := s.Bar(i)
		if _, err := stmt.ExecContext(ctx, s.Symbol(), b.TS.Unix(), b.Close); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s %d: %w", s.Symbol(), i, err)
		}
	}
	return tx.Commit()
}

// SaveRun archives one run and its trade log.
func (w *Writer) SaveRun(ctx context.Context, rec RunRecord) error {
	return w.insertRuns(ctx, []RunRecord{rec})
}

// Run reads records from runCh and archives them in batched transactions.
// Flushes every batchSize records OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or runCh is closed.
func (w *Writer) Run(ctx context.Context, runCh <-chan RunRecord) {
	batch := make([]RunRecord, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		// ctx may already be cancelled; the final flush must still commit.
		if err := w.insertRuns(context.Background(), batch); err != nil {
			log.Printf("[sqlite] run batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d runs in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-runCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertRuns inserts runs and their trades in a single transaction.
func (w *Writer) insertRuns(ctx context.Context, runs []RunRecord) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	runStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO backtest_runs (id, symbol, source, lookback_days, created_at, config,
			initial_capital, final_balance, return_percent, total_trades, open_position, last_close, warmup_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer runStmt.Close()

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO run_trades (run_id, seq, ts, action, price, quantity, cash_after, holdings_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer tradeStmt.Close()

	for _, r := range runs {
		cfg, err := json.Marshal(r.Config)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal run config: %w", err)
		}
		rep := r.Report
		if _, err := runStmt.ExecContext(ctx, r.ID, r.Symbol, r.Source, r.LookbackDays, r.CreatedAt.Unix(), string(cfg),
			rep.InitialCapital, rep.FinalBalance, rep.ReturnPercent, rep.TotalTrades, rep.OpenPosition, rep.LastClose,
			r.WarmupComplete); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert run %s: %w", r.ID, err)
		}
		for _, t := range r.Trades {
			if _, err := tradeStmt.ExecContext(ctx, r.ID, t.Seq, t.TS.Unix(), string(t.Action), t.Price, t.Quantity,
				t.CashAfter, t.HoldingsAfter); err != nil {
				tx.Rollback()
				return fmt.Errorf("sqlite insert trade %s/%d: %w", r.ID, t.Seq, err)
			}
		}
	}

	return tx.Commit()
}

// PruneRuns deletes runs (and their trades) older than before.
func (w *Writer) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_trades WHERE run_id IN (SELECT id FROM backtest_runs WHERE created_at < ?)`, before.Unix()); err != nil {
		tx.Rollback()
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, before.Unix())
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
