package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/omegafolio/internal/clients/yahoo"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 8

// PriceFetcher fetches daily closes for one symbol.
// Satisfied by the yahoo client; tests substitute a stub.
type PriceFetcher interface {
	GetDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.Bar, error)
}

// Service fetches price tables for instrument universes.
type Service struct {
	fetcher PriceFetcher
	cache   *CacheRepository // optional
	log     zerolog.Logger
}

// NewService creates a new market data service
func NewService(fetcher PriceFetcher, cache *CacheRepository, log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// FetchPriceTable fetches daily closes for every symbol over the inclusive
// [start, end] window and assembles a dense price table. Symbols for which
// the provider returns nothing are excluded silently; a table with zero
// symbols or zero rows fails with domain.ErrDataUnavailable.
func (s *Service) FetchPriceTable(ctx context.Context, symbols []string, start, end string) (*PriceTable, error) {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, domain.ErrDataUnavailable
	}
	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, domain.ErrDataUnavailable
	}

	key := CacheKey(symbols, start, end)
	if s.cache != nil {
		if pt := s.cache.Get(key); pt != nil {
			s.log.Debug().Str("key", key).Msg("Price table cache hit")
			return pt, nil
		}
	}

	var mu sync.Mutex
	series := make(map[string]map[string]float64)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			bars, err := s.fetcher.GetDailyCloses(gctx, symbol, startDate, endDate)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Partial universes are tolerated, the symbol just
				// drops out of the table
				s.log.Warn().Str("symbol", symbol).Err(err).Msg("No data for symbol, excluding")
				return nil
			}
			closes := make(map[string]float64, len(bars))
			for _, bar := range bars {
				closes[bar.Date] = bar.Close
			}
			mu.Lock()
			series[symbol] = closes
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pt := buildPriceTable(series)
	if len(pt.Symbols) == 0 || pt.Rows() == 0 {
		return nil, domain.ErrDataUnavailable
	}

	if s.cache != nil {
		if err := s.cache.Put(key, pt); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache price table")
		}
	}

	s.log.Info().
		Int("symbols", len(pt.Symbols)).
		Int("rows", pt.Rows()).
		Str("window", start+".."+end).
		Msg("Fetched price table")

	return pt, nil
}
