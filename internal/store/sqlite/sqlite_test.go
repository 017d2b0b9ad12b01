package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"swingtrader/internal/backtest"
	"swingtrader/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func open(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swing.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return w, r
}

func TestSeries_RoundTrip(t *testing.T) {
	w, r := open(t)
	ctx := context.Background()
	s := model.MustPriceSeries("BTC-USD", day0, 42000, 42500.5, 41900, 43000)
	if err := w.SaveSeries(ctx, s); err != nil {
		t.Fatal(err)
	}
	// Upsert is idempotent.
	if err := w.SaveSeries(ctx, s); err != nil {
		t.Fatal(err)
	}

	back, err := r.ReadSeries(ctx, "BTC-USD", day0)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != 4 || back.Bar(1).Close != 42500.5 || !back.Bar(3).TS.Equal(day0.AddDate(0, 0, 3)) {
		t.Errorf("unexpected series %+v", back.Bars())
	}

	raw, err := r.FetchDaily(ctx, "BTC-USD", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || *raw[0].Close != 41900 {
		t.Errorf("expected the last two days, got %+v", raw)
	}

	none, err := r.FetchDaily(ctx, "^NDX", 90)
	if err != nil || len(none) != 0 {
		t.Errorf("expected no bars for unknown symbol, got %v/%v", none, err)
	}
}

func evaluate(t *testing.T) *backtest.Result {
	t.Helper()
	closes := []float64{100, 90, 95, 120, 110, 80, 130}
	res, err := backtest.Evaluate(model.MustPriceSeries("X", day0, closes...), backtest.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRun_SaveAndLoad(t *testing.T) {
	w, r := open(t)
	ctx := context.Background()

	res := evaluate(t)
	rec := NewRunRecord("run-1", "csv", 90, res)
	rec.Trades = []model.Trade{
		{Seq: 1, TS: day0.AddDate(0, 0, 1), Price: 90, Action: model.ActionBuy, Quantity: 111.1, HoldingsAfter: 111.1},
		{Seq: 2, TS: day0.AddDate(0, 0, 3), Price: 120, Action: model.ActionSell, Quantity: 111.1, CashAfter: 13332},
	}
	rec.Report.TotalTrades = 2
	if err := w.SaveRun(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "X" || got.Source != "csv" || got.LookbackDays != 90 || got.Report != rec.Report {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Config != res.Config {
		t.Errorf("config not round-tripped: %+v", got.Config)
	}
	if len(got.Trades) != 2 || got.Trades[1].Action != model.ActionSell || got.Trades[1].CashAfter != 13332 {
		t.Errorf("unexpected trades %+v", got.Trades)
	}

	if _, err := r.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	w, r := open(t)
	ctx := context.Background()
	res := evaluate(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, sym := range []string{"BTC-USD", "^NDX", "BTC-USD"} {
		rec := NewRunRecord("run-"+string(rune('a'+i)), "yahoo", 90, res)
		rec.Symbol = sym
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := w.SaveRun(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.ListRuns(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "run-c" || all[2].ID != "run-a" {
		t.Errorf("expected newest first, got %v", ids(all))
	}

	btc, err := r.ListRuns(ctx, "BTC-USD", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(btc) != 1 || btc[0].ID != "run-c" {
		t.Errorf("unexpected filtered runs %v", ids(btc))
	}

	n, err := w.PruneRuns(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned runs, got %d", n)
	}
}

func TestWriter_RunDrainsChannel(t *testing.T) {
	w, r := open(t)
	res := evaluate(t)

	ch := make(chan RunRecord, 5)
	for i := 0; i < 3; i++ {
		ch <- NewRunRecord("bg-"+string(rune('0'+i)), "yahoo", 90, res)
	}
	close(ch)
	w.Run(context.Background(), ch) // returns once ch is drained and closed

	runs, err := r.ListRuns(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 archived runs, got %d", len(runs))
	}
}

func ids(runs []RunRecord) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
