// Package report renders backtest results as plain text for terminals and
// logs. Money is rounded half-away-from-zero to cents before formatting and
// digits are grouped per locale.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"swingtrader/internal/backtest"
	"swingtrader/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

// Formatter formats money and percentages for one locale.
type Formatter struct {
	p *message.Printer
}

// NewFormatter returns a Formatter for tag. English grouping is
// "12,345.67"; German is "12.345,67".
func NewFormatter(tag language.Tag) Formatter {
	return Formatter{p: message.NewPrinter(tag)}
}

// Money renders v with two decimals and digit grouping.
func (f Formatter) Money(v float64) string {
	return f.p.Sprintf("%.2f", cents(v))
}

// Percent renders v (already in percent) with two decimals and a sign.
func (f Formatter) Percent(v float64) string {
	r := cents(v)
	sign := ""
	if r >= 0 {
		sign = "+"
	}
	return sign + f.p.Sprintf("%.2f", r) + "%"
}

// Quantity renders fractional units with four decimals.
func (f Formatter) Quantity(v float64) string {
	r, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return f.p.Sprintf("%.4f", r)
}

// cents rounds to two places in decimal arithmetic so that 1.005 renders
// as 1.01 rather than the binary float's 1.00.
func cents(v float64) float64 {
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// Options controls Render.
type Options struct {
	Lang      language.Tag
	ShowBars  bool // include the per-bar decision table
	ShowTrade bool // include the trade log
}

// DefaultOptions prints the summary and trade log in English.
func DefaultOptions() Options {
	return Options{Lang: language.English, ShowTrade: true}
}

// Render writes a summary of res to w.
func Render(w io.Writer, res *backtest.Result, opts Options) error {
	f := NewFormatter(opts.Lang)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rep := res.Report
	cfg := res.Config

	fmt.Fprintf(tw, "Symbol\t%s\n", res.Symbol)
	if n := len(res.Frame); n > 0 {
		fmt.Fprintf(tw, "Bars\t%d (%s .. %s)\n", n,
			res.Frame[0].TS.Format(dateLayout), res.Frame[n-1].TS.Format(dateLayout))
	}
	if res.WarmupComplete {
		fmt.Fprintf(tw, "Warm-up\tcomplete from bar %d\n", res.FirstTradeable)
	} else {
		fmt.Fprintf(tw, "Warm-up\tincomplete, no signals possible\n")
	}
	fmt.Fprintf(tw, "Strategy\t%s, RSI %g/%g, SMA %d, RSI %d (%s), MACD %d/%d/%d\n",
		cfg.Signals.Mode, cfg.Signals.EntryRSI, cfg.Signals.ExitRSI,
		cfg.Indicators.SMAWindow, cfg.Indicators.RSIWindow, cfg.Indicators.RSISmoothing,
		cfg.Indicators.EMAFast, cfg.Indicators.EMASlow, cfg.Indicators.SignalSpan)
	fmt.Fprintf(tw, "Initial capital\t%s\n", f.Money(rep.InitialCapital))
	fmt.Fprintf(tw, "Final balance\t%s\n", f.Money(rep.FinalBalance))
	fmt.Fprintf(tw, "Return\t%s\n", f.Percent(rep.ReturnPercent))
	fmt.Fprintf(tw, "Trades\t%d\n", rep.TotalTrades)
	if rep.OpenPosition {
		fmt.Fprintf(tw, "Open position\tyes, marked at last close %s\n", f.Money(rep.LastClose))
	} else {
		fmt.Fprintf(tw, "Open position\tno\n")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if opts.ShowTrade && len(res.Trades) > 0 {
		fmt.Fprintln(w)
		if err := renderTrades(w, f, res.Trades); err != nil {
			return err
		}
	}
	if opts.ShowBars && len(res.Bars) > 0 {
		fmt.Fprintln(w)
		if err := renderBars(w, f, res); err != nil {
			return err
		}
	}
	return nil
}

func renderTrades(w io.Writer, f Formatter, trades []model.Trade) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDate\tAction\tPrice\tQuantity\tCash\tHoldings\t")
	for _, t := range trades {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			t.Seq, t.TS.Format(dateLayout), t.Action,
			f.Money(t.Price), f.Quantity(t.Quantity), f.Money(t.CashAfter), f.Quantity(t.HoldingsAfter))
	}
	return tw.Flush()
}

func renderBars(w io.Writer, f Formatter, res *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Bar\tDate\tClose\tRSI\tMACD\tSignal\tAction\tPosition")
	for _, b := range res.Bars {
		r := res.Frame[b.Index]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.Index, b.TS.Format(dateLayout), f.Money(b.Close),
			f.optional(r.RSI, "%.2f"), f.optional(r.MACD, "%.4f"), f.optional(r.SignalLine, "%.4f"),
			b.Action, b.Position)
	}
	return tw.Flush()
}

func (f Formatter) optional(v model.Float, format string) string {
	if !v.Valid {
		return "-"
	}
	return f.p.Sprintf(format, v.Value)
}
