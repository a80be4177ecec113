// Package charts renders portfolio market value history as PNG line charts.
package charts

import (
	"fmt"
	"math"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	"github.com/aristath/omegafolio/pkg/formulas"
	"github.com/rs/zerolog"
	charts "github.com/vicanso/go-charts/v2"
)

const smaPeriod = 3

// Service renders portfolio charts from the rebalance ledger.
type Service struct {
	rebalanceRepo *portfolio.RebalanceRepository
	log           zerolog.Logger
}

// NewService creates a new chart service.
func NewService(rebalanceRepo *portfolio.RebalanceRepository, log zerolog.Logger) *Service {
	return &Service{
		rebalanceRepo: rebalanceRepo,
		log:           log.With().Str("service", "charts").Logger(),
	}
}

// RenderMarketValuePNG renders the market value history of one portfolio,
// with a moving average overlay once enough events exist. A portfolio with
// fewer than two rebalances has nothing to draw and fails with
// domain.ErrInsufficientData.
func (s *Service) RenderMarketValuePNG(portfolioID int64) ([]byte, error) {
	events, err := s.rebalanceRepo.GetHistory(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(events) < 2 {
		return nil, fmt.Errorf("portfolio %d has %d rebalances: %w", portfolioID, len(events), domain.ErrInsufficientData)
	}

	labels := make([]string, len(events))
	values := make([]float64, len(events))
	for i, e := range events {
		labels[i] = e.Date
		values[i] = e.MarketValue
	}

	series := [][]float64{values}
	legend := []string{"market value"}
	if sma := formulas.SMA(values, smaPeriod); sma != nil {
		overlay := make([]float64, len(sma))
		for i, v := range sma {
			if math.IsNaN(v) {
				overlay[i] = charts.GetNullValue()
			} else {
				overlay[i] = v
			}
		}
		series = append(series, overlay)
		legend = append(legend, fmt.Sprintf("sma(%d)", smaPeriod))
	}

	painter, err := charts.LineRender(series,
		charts.TitleTextOptionFunc(fmt.Sprintf("Portfolio %d", portfolioID)),
		charts.LegendLabelsOptionFunc(legend),
		charts.XAxisDataOptionFunc(labels),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}

	s.log.Debug().Int64("portfolio_id", portfolioID).Int("points", len(events)).Msg("Chart rendered")
	return buf, nil
}
