// Package formulas provides technical indicator helpers shared by the chart
// and reporting layers.
package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA calculates the simple moving average over the given period.
// Leading values with insufficient lookback are NaN, matching talib.
func SMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	if len(values) < period {
		return nil
	}
	return talib.Sma(values, period)
}

// EMA calculates the exponential moving average over the given period.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	if len(values) < period {
		return nil
	}
	return talib.Ema(values, period)
}

// LatestSMA returns the most recent SMA value, or nil if there is not
// enough data.
func LatestSMA(values []float64, period int) *float64 {
	sma := SMA(values, period)
	if len(sma) == 0 {
		return nil
	}
	last := sma[len(sma)-1]
	if isNaN(last) {
		return nil
	}
	return &last
}

func isNaN(f float64) bool {
	return f != f
}
