package optimization

import (
	"testing"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReturnTable(t *testing.T) {
	pt := &marketdata.PriceTable{
		Dates:   []string{"2024-04-01", "2024-04-02", "2024-04-03"},
		Symbols: []string{"AAA", "BBB"},
		Prices: [][]float64{
			{100, 50},
			{102, 49},
			{102, 50.96},
		},
	}

	rt, err := BuildReturnTable(pt)
	require.NoError(t, err)

	assert.Equal(t, 2, rt.Days())
	assert.InDelta(t, 0.02, rt.Returns[0][0], 1e-9)
	assert.InDelta(t, -0.02, rt.Returns[0][1], 1e-9)
	assert.InDelta(t, 0.0, rt.Returns[1][0], 1e-9)
	assert.InDelta(t, 0.04, rt.Returns[1][1], 1e-9)

	assert.InDelta(t, 0.01, rt.AvgReturns[0], 1e-9)
	assert.InDelta(t, 0.01, rt.AvgReturns[1], 1e-9)
}

func TestBuildReturnTableInsufficientData(t *testing.T) {
	pt := &marketdata.PriceTable{
		Dates:   []string{"2024-04-01"},
		Symbols: []string{"AAA"},
		Prices:  [][]float64{{100}},
	}

	_, err := BuildReturnTable(pt)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = BuildReturnTable(nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
