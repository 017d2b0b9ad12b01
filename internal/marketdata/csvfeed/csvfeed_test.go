package csvfeed

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swingtrader/internal/model"
)

func TestParse(t *testing.T) {
	in := "Date,Open,Close,Volume\n2024-01-02,1,100.5,10\n2024-01-03,1,,10\n2024-01-04T00:00:00Z,1,102,10\n"
	bars, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if *bars[0].Close != 100.5 || bars[1].Close != nil || *bars[2].Close != 102 {
		t.Errorf("unexpected closes %+v", bars)
	}
	if !bars[2].TS.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected ts %v", bars[2].TS)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]error{
		"day,close\n2024-01-01,1\n":  model.ErrMissingField,
		"date,price\n2024-01-01,1\n": model.ErrMissingField,
		"date,close\nyesterday,1\n":  model.ErrInvalidSeries,
		"date,close\n2024-01-01,x\n": model.ErrMissingField,
	}
	for in, want := range cases {
		if _, err := Parse(strings.NewReader(in)); !errors.Is(err, want) {
			t.Errorf("%q: expected %v, got %v", in, want, err)
		}
	}
}

func TestWindow(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []model.RawBar
	for i := 0; i < 10; i++ {
		bars = append(bars, model.RawBar{TS: day.AddDate(0, 0, i), Close: model.ClosePtr(1)})
	}
	got := Window(bars, 3)
	if len(got) != 3 || !got[0].TS.Equal(day.AddDate(0, 0, 7)) {
		t.Errorf("unexpected window %+v", got)
	}
	if len(Window(bars, 100)) != 10 {
		t.Error("long lookback should keep every bar")
	}
}

func TestFeed_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	s := model.MustPriceSeries("^NDX", day, 17000, 17100.25, 16950)

	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		t.Fatal(err)
	}
	f := New(dir)
	if err := os.WriteFile(f.Path("^NDX"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if filepath.Base(f.Path("^NDX")) != "_NDX.csv" {
		t.Errorf("unexpected file name %s", f.Path("^NDX"))
	}

	raw, err := f.FetchDaily(context.Background(), "^NDX", 90)
	if err != nil {
		t.Fatal(err)
	}
	back, err := model.NewPriceSeries("^NDX", raw)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != 3 || back.Bar(1).Close != 17100.25 {
		t.Errorf("unexpected series %+v", back.Bars())
	}

	if _, err := f.FetchDaily(context.Background(), "MISSING", 90); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
