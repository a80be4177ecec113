// Package optimization turns aligned price tables into daily returns and
// solves for target portfolio weights.
package optimization

import (
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/marketdata"
	"gonum.org/v1/gonum/stat"
)

// ReturnTable holds daily simple returns, one row per trading day and one
// column per symbol, plus the per-symbol mean return over the window.
type ReturnTable struct {
	Symbols    []string
	Returns    [][]float64 // T x n
	AvgReturns []float64   // n
}

// Days returns the number of return observations T.
func (rt *ReturnTable) Days() int {
	return len(rt.Returns)
}

// BuildReturnTable computes day-over-day simple returns from a dense price
// table. A table with fewer than two rows cannot produce a return and fails
// with domain.ErrInsufficientData.
func BuildReturnTable(pt *marketdata.PriceTable) (*ReturnTable, error) {
	if pt == nil || pt.Rows() < 2 || len(pt.Symbols) == 0 {
		return nil, domain.ErrInsufficientData
	}

	n := len(pt.Symbols)
	days := pt.Rows() - 1
	returns := make([][]float64, days)
	for t := 0; t < days; t++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			prev := pt.Prices[t][j]
			row[j] = pt.Prices[t+1][j]/prev - 1
		}
		returns[t] = row
	}

	avg := make([]float64, n)
	col := make([]float64, days)
	for j := 0; j < n; j++ {
		for t := 0; t < days; t++ {
			col[t] = returns[t][j]
		}
		avg[j] = stat.Mean(col, nil)
	}

	return &ReturnTable{
		Symbols:    append([]string(nil), pt.Symbols...),
		Returns:    returns,
		AvgReturns: avg,
	}, nil
}
