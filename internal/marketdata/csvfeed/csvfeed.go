// Package csvfeed reads daily closes from CSV files, one file per symbol.
//
// Files have a header row with a date column ("date" or "ts") and a
// "close" column; other columns are ignored. Dates are YYYY-MM-DD or
// RFC 3339. An empty close cell yields a bar with a nil close.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"swingtrader/internal/model"
)

// Feed implements model.PriceSource over a directory of <symbol>.csv files.
type Feed struct {
	Dir string
	Now func() time.Time
}

// New returns a feed rooted at dir.
func New(dir string) *Feed {
	return &Feed{Dir: dir, Now: time.Now}
}

func (f *Feed) Name() string { return "csv" }

// Path returns the file read for symbol. Characters that are awkward in
// file names (^, /) are replaced by underscores.
func (f *Feed) Path(symbol string) string {
	name := strings.NewReplacer("^", "_", "/", "_", `\`, "_").Replace(symbol)
	return filepath.Join(f.Dir, name+".csv")
}

// FetchDaily reads the symbol's file and keeps the bars of the last
// lookbackDays calendar days counted back from the newest bar in the file.
func (f *Feed) FetchDaily(ctx context.Context, symbol string, lookbackDays int) ([]model.RawBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path(symbol))
	if err != nil {
		return nil, fmt.Errorf("csvfeed: %w", err)
	}
	defer file.Close()

	bars, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("csvfeed %s: %w", symbol, err)
	}
	return Window(bars, lookbackDays), nil
}

// Window keeps the bars no older than lookbackDays before the last bar.
func Window(bars []model.RawBar, lookbackDays int) []model.RawBar {
	if len(bars) == 0 || lookbackDays <= 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].TS.AddDate(0, 0, -lookbackDays)
	for i, b := range bars {
		if b.TS.After(cutoff) {
			return bars[i:]
		}
	}
	return nil
}

// Parse reads a date,close CSV. Row order is preserved; ordering is
// validated later by model.NewPriceSeries.
func Parse(r io.Reader) ([]model.RawBar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	dateCol, closeCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "ts", "timestamp":
			dateCol = i
		case "close", "adj close":
			if closeCol < 0 {
				closeCol = i
			}
		}
	}
	if dateCol < 0 {
		return nil, &model.FieldError{Index: -1, Field: "date", Err: model.ErrMissingField}
	}
	if closeCol < 0 {
		return nil, &model.FieldError{Index: -1, Field: "close", Err: model.ErrMissingField}
	}

	var bars []model.RawBar
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if dateCol >= len(rec) {
			return nil, &model.FieldError{Index: row, Field: "date", Err: model.ErrMissingField}
		}
		ts, err := parseDate(rec[dateCol])
		if err != nil {
			return nil, &model.FieldError{Index: row, Field: "date", Err: fmt.Errorf("%w: %v", model.ErrInvalidSeries, err)}
		}
		bar := model.RawBar{TS: ts}
		if closeCol < len(rec) && strings.TrimSpace(rec[closeCol]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
			if err != nil {
				return nil, &model.FieldError{Index: row, TS: ts, Field: "close", Err: fmt.Errorf("%w: %v", model.ErrMissingField, err)}
			}
			bar.Close = &v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Write stores a series as date,close CSV.
func Write(w io.Writer, s model.PriceSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "close"}); err != nil {
		return err
	}
	for _, b := range s.Bars() {
		if err := cw.Write([]string{b.TS.Format("2006-01-02"), strconv.FormatFloat(b.Close, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
