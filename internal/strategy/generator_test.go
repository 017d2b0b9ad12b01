package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"swingtrader/internal/model"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// rec builds a fully defined record.
func rec(i int, close, rsi, macd, signal float64) model.IndicatorRecord {
	return model.IndicatorRecord{
		TS:         day0.AddDate(0, 0, i),
		Close:      close,
		RSI:        model.Some(rsi),
		MACD:       model.Some(macd),
		SignalLine: model.Some(signal),
	}
}

// warm builds a record still in warm-up.
func warm(i int, close float64) model.IndicatorRecord {
	return model.IndicatorRecord{TS: day0.AddDate(0, 0, i), Close: close}
}

func actions(bars []model.BarSignal) []model.Action {
	out := make([]model.Action, len(bars))
	for i, b := range bars {
		out[i] = b.Action
	}
	return out
}

func assertActions(t *testing.T, got []model.BarSignal, want ...model.Action) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d bars %v, want %d", len(got), actions(got), len(want))
	}
	for i := range want {
		if got[i].Action != want[i] {
			t.Errorf("bar %d: got %s, want %s (all: %v)", got[i].Index, got[i].Action, want[i], actions(got))
		}
	}
}

const (
	B = model.ActionBuy
	S = model.ActionSell
	H = model.ActionHold
)

func TestGenerate_StrictCrossoverEntryAndExit(t *testing.T) {
	frame := model.IndicatorFrame{
		rec(0, 100, 25, -1.0, 0.0), // below
		rec(1, 98, 25, 0.5, 0.0),   // crosses above, RSI < 30 → BUY
		rec(2, 97, 25, 0.8, 0.1),   // still above, no new cross → HOLD
		rec(3, 105, 75, 1.0, 0.5),  // above, RSI high but no cross down → HOLD
		rec(4, 110, 75, 0.2, 0.6),  // crosses below, RSI > 70 → SELL
		rec(5, 109, 75, 0.1, 0.5),  // still below → HOLD
	}
	bars, err := Generate(frame, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, B, H, H, S, H)

	if bars[0].Index != 1 || !bars[0].TS.Equal(frame[1].TS) || bars[0].Close != 98 {
		t.Errorf("first bar signal misaligned: %+v", bars[0])
	}
	if bars[0].Position != model.Long || bars[3].Position != model.Flat {
		t.Errorf("positions not tracked: %+v", bars)
	}
}

func TestGenerate_NoRetriggerWhileConditionPersists(t *testing.T) {
	frame := model.IndicatorFrame{
		rec(0, 100, 20, -1, 0),
		rec(1, 99, 20, 1, 0),
		rec(2, 98, 20, 2, 0),
		rec(3, 97, 20, 3, 0),
	}
	bars, err := Generate(frame, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, B, H, H)
}

func TestGenerate_SellNeverWhileFlat(t *testing.T) {
	frame := model.IndicatorFrame{
		rec(0, 100, 80, 1, 0),
		rec(1, 100, 80, -1, 0), // exit condition, but Flat
		rec(2, 100, 80, 1, 0),
		rec(3, 100, 80, -1, 0),
	}
	bars, err := Generate(frame, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, H, H, H)
}

func TestGenerate_BuyNeverWhileLong(t *testing.T) {
	frame := model.IndicatorFrame{
		rec(0, 100, 20, -1, 0),
		rec(1, 100, 20, 1, 0),  // BUY
		rec(2, 100, 20, -1, 0), // cross down but RSI low → HOLD
		rec(3, 100, 20, 1, 0),  // entry condition again, already Long → HOLD
	}
	bars, err := Generate(frame, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, B, H, H)
}

func TestGenerate_UndefinedIsHold(t *testing.T) {
	frame := model.IndicatorFrame{
		warm(0, 100),
		rec(1, 100, 20, 1, 0), // previous bar undefined → no strict crossover
		rec(2, 100, 20, 2, 0),
	}
	bars, err := Generate(frame, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, H, H)

	frame = model.IndicatorFrame{
		rec(0, 100, 20, -1, 0),
		{TS: day0.AddDate(0, 0, 1), Close: 100, MACD: model.Some(1), SignalLine: model.Some(0)}, // RSI undefined
	}
	bars, _ = Generate(frame, DefaultParams())
	assertActions(t, bars, H)
}

func TestGenerate_UndefinedIsNotZero(t *testing.T) {
	// An undefined signal line read as 0 would make MACD 0.5 look "above".
	frame := model.IndicatorFrame{
		rec(0, 100, 20, -1, 0),
		{TS: day0.AddDate(0, 0, 1), Close: 100, RSI: model.Some(20), MACD: model.Some(0.5)},
	}
	bars, err := Generate(frame, Params{EntryRSI: 30, ExitRSI: 70, Mode: ModeLevel})
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, H)
}

func TestGenerate_LevelModeReenters(t *testing.T) {
	frame := model.IndicatorFrame{
		rec(0, 100, 20, 1, 0),  // already above
		rec(1, 100, 20, 1, 0),  // level: BUY without a cross
		rec(2, 100, 80, -1, 0), // SELL
		rec(3, 100, 20, 1, 0),  // level: BUY again
		rec(4, 100, 20, 2, 0),  // Long → HOLD
	}
	p := DefaultParams()
	p.Mode = ModeLevel
	bars, err := Generate(frame, p)
	if err != nil {
		t.Fatal(err)
	}
	assertActions(t, bars, B, S, B, H)

	strict, _ := Generate(frame, DefaultParams())
	assertActions(t, strict, H, H, B, H)
}

func TestGenerate_EmptyAndSingleBar(t *testing.T) {
	for _, frame := range []model.IndicatorFrame{nil, {rec(0, 100, 20, 1, 0)}} {
		bars, err := Generate(frame, DefaultParams())
		if err != nil {
			t.Fatal(err)
		}
		if len(bars) != 0 {
			t.Errorf("expected no bars for frame of %d, got %d", len(frame), len(bars))
		}
	}
}

func TestGenerate_RejectsBadParams(t *testing.T) {
	bad := []Params{
		{EntryRSI: 0, ExitRSI: 70, Mode: ModeStrict},
		{EntryRSI: 30, ExitRSI: 100, Mode: ModeStrict},
		{EntryRSI: 70, ExitRSI: 30, Mode: ModeStrict},
		{EntryRSI: 30, ExitRSI: 70, Mode: "loose"},
		{EntryRSI: math.NaN(), ExitRSI: 70, Mode: ModeStrict},
		{EntryRSI: 30, ExitRSI: math.NaN(), Mode: ModeStrict},
		{EntryRSI: math.Inf(-1), ExitRSI: 70, Mode: ModeStrict},
	}
	for _, p := range bad {
		if _, err := Generate(nil, p); !errors.Is(err, model.ErrConfiguration) {
			t.Errorf("%+v: expected ErrConfiguration, got %v", p, err)
		}
	}
}

func TestActionable_FiltersHoldsAndKeepsAlternation(t *testing.T) {
	frame := model.IndicatorFrame{
		rec(0, 100, 25, -1, 0),
		rec(1, 90, 25, 1, 0),
		rec(2, 95, 50, 1, 0),
		rec(3, 120, 75, -1, 0),
		rec(4, 118, 25, -2, 0),
		rec(5, 100, 25, 1, 0),
	}
	bars, err := Generate(frame, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	sigs := Actionable(bars)
	if len(sigs) != 3 {
		t.Fatalf("expected 3 actionable signals, got %d: %+v", len(sigs), sigs)
	}
	if sigs[0].Price != 90 || sigs[1].Price != 120 || sigs[2].Price != 100 {
		t.Errorf("unexpected prices: %+v", sigs)
	}
	if sigs[0].Reason == "" {
		t.Error("expected a reason on actionable signals")
	}
	if err := ValidateAlternation(sigs); err != nil {
		t.Errorf("generated stream should alternate: %v", err)
	}
}

func TestValidateAlternation_Violations(t *testing.T) {
	cases := [][]model.Signal{
		{{Index: 1, Action: S}},
		{{Index: 1, Action: B}, {Index: 2, Action: B}},
		{{Index: 1, Action: B}, {Index: 2, Action: S}, {Index: 3, Action: S}},
		{{Index: 1, Action: H}},
	}
	for i, c := range cases {
		err := ValidateAlternation(c)
		if !errors.Is(err, model.ErrInvariantViolation) {
			t.Errorf("case %d: expected ErrInvariantViolation, got %v", i, err)
		}
	}
}

func TestPairs_StopsEarly(t *testing.T) {
	frame := model.IndicatorFrame{warm(0, 1), warm(1, 2), warm(2, 3), warm(3, 4)}
	var seen []int
	for pr := range Pairs(frame) {
		if pr.Prev.Close != float64(pr.Index) || pr.Cur.Close != float64(pr.Index+1) {
			t.Fatalf("pair %d not adjacent: %+v", pr.Index, pr)
		}
		seen = append(seen, pr.Index)
		if pr.Index == 2 {
			break
		}
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("unexpected pair indices %v", seen)
	}
}
