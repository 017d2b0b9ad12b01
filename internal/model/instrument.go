package model

// Instrument is a selectable asset on the watchlist.
type Instrument struct {
	Symbol string `json:"symbol"` // internal symbol, e.g. "BTC"
	Name   string `json:"name"`   // display label
}

var instrumentNames = map[string]string{
	"BTC":    "Bitcoin (BTC-USD)",
	"NDX":    "Nasdaq 100 (^NDX)",
	"NAS100": "Nasdaq 100 (^NDX)",
	"AAPL":   "Apple Inc.",
	"MSFT":   "Microsoft Corp.",
	"SPY":    "SPDR S&P 500 ETF",
	"QQQ":    "Invesco QQQ Trust",
}

// Instruments labels symbols for display. Unknown symbols are their own
// label.
func Instruments(symbols []string) []Instrument {
	out := make([]Instrument, 0, len(symbols))
	for _, s := range symbols {
		name, ok := instrumentNames[s]
		if !ok {
			name = s
		}
		out = append(out, Instrument{Symbol: s, Name: name})
	}
	return out
}
