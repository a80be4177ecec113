// Package marketdata fetches historical prices and assembles them into
// dense, date-aligned price tables.
package marketdata

import "sort"

// PriceTable is an ordered sequence of trading dates by instrument closing
// prices. Dates are strictly increasing; every row has a price for every
// symbol (dates with gaps are dropped during assembly).
type PriceTable struct {
	Dates   []string    `msgpack:"dates"`   // ISO dates, ascending
	Symbols []string    `msgpack:"symbols"` // column order
	Prices  [][]float64 `msgpack:"prices"`  // len(Dates) rows of len(Symbols)
}

// Rows returns the number of trading dates in the table.
func (pt *PriceTable) Rows() int {
	return len(pt.Dates)
}

// EndDate returns the last trading date in the table, or "" when empty.
func (pt *PriceTable) EndDate() string {
	if len(pt.Dates) == 0 {
		return ""
	}
	return pt.Dates[len(pt.Dates)-1]
}

// LatestPrices returns the last row keyed by symbol.
func (pt *PriceTable) LatestPrices() map[string]float64 {
	latest := make(map[string]float64, len(pt.Symbols))
	if len(pt.Prices) == 0 {
		return latest
	}
	last := pt.Prices[len(pt.Prices)-1]
	for j, symbol := range pt.Symbols {
		latest[symbol] = last[j]
	}
	return latest
}

// buildPriceTable aligns per-symbol close series into a dense table.
// Symbols with no data are excluded. Only dates where every surviving
// symbol has a close survive, keeping the table dense.
func buildPriceTable(series map[string]map[string]float64) *PriceTable {
	symbols := make([]string, 0, len(series))
	for symbol, closes := range series {
		if len(closes) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	if len(symbols) == 0 {
		return &PriceTable{}
	}

	// Dates present in every surviving symbol's series
	dateCount := make(map[string]int)
	for _, symbol := range symbols {
		for date := range series[symbol] {
			dateCount[date]++
		}
	}
	dates := make([]string, 0, len(dateCount))
	for date, count := range dateCount {
		if count == len(symbols) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	prices := make([][]float64, len(dates))
	for i, date := range dates {
		row := make([]float64, len(symbols))
		for j, symbol := range symbols {
			row[j] = series[symbol][date]
		}
		prices[i] = row
	}

	return &PriceTable{Dates: dates, Symbols: symbols, Prices: prices}
}
