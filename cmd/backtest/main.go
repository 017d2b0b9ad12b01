// cmd/backtest runs one backtest and prints the report.
//
// Usage:
//
//	go run ./cmd/backtest -symbol=AAPL -lookback=180
//	go run ./cmd/backtest -symbol=BTC -source=csv -csv-dir=data/csv -mode=level -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"swingtrader/config"
	"swingtrader/internal/app"
	"swingtrader/internal/backtest"
	"swingtrader/internal/logger"
	"swingtrader/internal/marketdata"
	"swingtrader/internal/report"
	sqlitestore "swingtrader/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Flags
	cfgPath := flag.String("config", "swing.yaml", "Path to YAML config (missing file = defaults)")
	symbol := flag.String("symbol", "", "Instrument to backtest, e.g. AAPL, BTC, NDX")
	source := flag.String("source", "", "Market data source: yahoo | csv | sqlite")
	lookback := flag.Int("lookback", 0, "Lookback window in calendar days (e.g. 90, 180)")
	mode := flag.String("mode", "", "Signal mode: strict | level")
	smoothing := flag.String("smoothing", "", "RSI smoothing: simple | wilder")
	capital := flag.Float64("capital", 0, "Initial capital")
	entry := flag.Float64("entry", 0, "Buy only below this RSI")
	exit := flag.Float64("exit", 0, "Sell only above this RSI")
	csvDir := flag.String("csv-dir", "", "Directory of <SYMBOL>.csv files for -source=csv")
	dbPath := flag.String("db", "", "SQLite database path")
	archive := flag.Bool("archive", false, "Store bars and the run in SQLite")
	asJSON := flag.Bool("json", false, "Print the full result as JSON")
	showBars := flag.Bool("bars", false, "Print the per-bar decision table")
	lang := flag.String("lang", "en", "Locale for number formatting")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("[backtest] -symbol is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[backtest] config: %v", err)
	}
	logger.Init("backtest", logger.ParseLevel(cfg.Log.Level))

	// Flags override the file and environment for this run only.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["source"] {
		cfg.Data.Source = *source
	}
	if set["lookback"] {
		cfg.Data.LookbackDays = *lookback
	}
	if set["mode"] {
		cfg.Strategy.Mode = *mode
	}
	if set["smoothing"] {
		cfg.Strategy.RSISmoothing = *smoothing
	}
	if set["capital"] {
		cfg.Backtest.InitialCapital = *capital
	}
	if set["entry"] {
		cfg.Strategy.EntryRSI = *entry
	}
	if set["exit"] {
		cfg.Strategy.ExitRSI = *exit
	}
	if set["csv-dir"] {
		cfg.Data.CSVDir = *csvDir
	}
	if set["db"] {
		cfg.SQLite.Path = *dbPath
	}
	if cfg.Data.Source == "sqlite" || *archive {
		cfg.SQLite.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Open SQLite when reading from or writing to it
	var writer *sqlitestore.Writer
	var reader *sqlitestore.Reader
	if cfg.SQLite.Enabled && (cfg.Data.Source == "sqlite" || *archive) {
		writer, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLite.Path})
		if err != nil {
			log.Fatalf("[backtest] sqlite init failed: %v", err)
		}
		defer writer.Close()
		reader, err = sqlitestore.NewReader(cfg.SQLite.Path)
		if err != nil {
			log.Fatalf("[backtest] sqlite reader failed: %v", err)
		}
		defer reader.Close()
	}

	src, err := app.Source(cfg, reader)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	sym := strings.ToUpper(*symbol)
	ctx, runID := logger.EnsureRunID(ctx)
	start := time.Now()
	series, err := marketdata.Load(ctx, src, sym, cfg.Data.LookbackDays)
	if err != nil {
		log.Fatalf("[backtest] load %s: %v", sym, err)
	}
	res, err := backtest.Evaluate(series, cfg.BacktestConfig())
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	if *archive && writer != nil {
		if cfg.Data.Source != "sqlite" {
			if err := writer.SaveSeries(ctx, series); err != nil {
				log.Printf("[backtest] archive bars: %v", err)
			}
		}
		rec := sqlitestore.NewRunRecord(runID, src.Name(), cfg.Data.LookbackDays, res)
		if err := writer.SaveRun(ctx, rec); err != nil {
			log.Printf("[backtest] archive run: %v", err)
		} else {
			fmt.Fprintf(os.Stderr, "archived run %s\n", runID)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			RunID string `json:"run_id"`
			*backtest.Result
		}{runID, res}); err != nil {
			log.Fatalf("[backtest] encode: %v", err)
		}
		return
	}

	tag, err := language.Parse(*lang)
	if err != nil {
		tag = language.English
	}
	opts := report.DefaultOptions()
	opts.Lang = tag
	opts.ShowBars = *showBars
	if err := report.Render(os.Stdout, res, opts); err != nil {
		log.Fatalf("[backtest] render: %v", err)
	}
	fmt.Fprintf(os.Stderr, "\n%s via %s in %v (run %s)\n", sym, src.Name(), time.Since(start).Round(time.Millisecond), runID)
}
