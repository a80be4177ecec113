package universe

import "github.com/aristath/omegafolio/internal/domain"

// Built-in universes. taiwan50 is the Taiwan 50 constituent set with
// yfinance-style exchange suffixes.
var knownUniverses = map[string][]string{
	"taiwan50": {
		"2330.TW", "2317.TW", "2454.TW", "2308.TW", "2382.TW", "2881.TW",
		"2891.TW", "2882.TW", "3711.TW", "2303.TW", "2412.TW", "2357.TW",
		"2886.TW", "2884.TW", "2885.TW", "1216.TW", "2345.TW", "2892.TW",
		"3231.TW", "3034.TW", "6669.TW", "2883.TW", "2890.TW", "2327.TW",
		"2379.TW", "3008.TW", "5880.TW", "2880.TW", "3661.TW", "2603.TW",
		"2002.TW", "1101.TW", "2887.TW", "4938.TW", "2207.TW", "2301.TW",
		"3017.TW", "3037.TW", "6446.TW", "3045.TW", "1303.TW", "2395.TW",
		"4904.TW", "5876.TW", "2912.TW", "1301.TW", "2609.TW", "5871.TW",
		"1326.TW", "6505.TW",
	},
}

// KnownUniverse returns the built-in instrument list for name, if any.
func KnownUniverse(name string) ([]domain.Instrument, bool) {
	symbols, ok := knownUniverses[normalizeUniverse(name)]
	if !ok {
		return nil, false
	}
	instruments := make([]domain.Instrument, len(symbols))
	for i, symbol := range symbols {
		instruments[i] = domain.Instrument{
			Symbol:   symbol,
			Name:     symbol,
			Universe: normalizeUniverse(name),
			Active:   true,
		}
	}
	return instruments, true
}

// KnownUniverseNames lists the built-in universe names.
func KnownUniverseNames() []string {
	names := make([]string, 0, len(knownUniverses))
	for name := range knownUniverses {
		names = append(names, name)
	}
	return names
}
