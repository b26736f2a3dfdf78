package instruments

// Instrument is one tracked index, defined at startup and never mutated.
// Each provider addresses the same index by its own symbol.
type Instrument struct {
	ID   string
	Name string

	// Yahoo symbol is used by both the quote and the chart endpoints.
	YahooSymbol string
	// Stooq uses its own lowercase index codes for the daily CSV feed.
	StooqSymbol string
	// Finnhub mirrors Yahoo's caret symbols for US indices.
	FinnhubSymbol string
}

var All = []Instrument{
	{ID: "IXIC", Name: "NASDAQ", YahooSymbol: "^IXIC", StooqSymbol: "^ndq", FinnhubSymbol: "^IXIC"},
	{ID: "GSPC", Name: "S&P 500", YahooSymbol: "^GSPC", StooqSymbol: "^spx", FinnhubSymbol: "^GSPC"},
}

var byID map[string]Instrument

func init() {
	byID = map[string]Instrument{}
	for _, it := range All {
		byID[it.ID] = it
	}
}

func ByID(id string) (Instrument, bool) {
	it, ok := byID[id]
	return it, ok
}
