// Package rebalancing orchestrates the full rebalance pipeline: price
// fetch, return computation, weight optimization, and ledger persistence.
package rebalancing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/marketdata"
	"github.com/aristath/omegafolio/internal/modules/optimization"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	"github.com/aristath/omegafolio/internal/modules/universe"
	"github.com/rs/zerolog"
)

// SeedMarketValue is the market value assumed for a portfolio's first
// rebalance, before it holds anything.
const SeedMarketValue = 10000.0

// PriceTableFetcher fetches a dense price table for a symbol set.
// Satisfied by the marketdata service; tests substitute a stub.
type PriceTableFetcher interface {
	FetchPriceTable(ctx context.Context, symbols []string, start, end string) (*marketdata.PriceTable, error)
}

// Config holds the rebalance window and deadline.
type Config struct {
	WindowStart string
	WindowEnd   string
	Timeout     time.Duration
}

// Service executes rebalances. Runs are serialized per portfolio; a trigger
// while a run is active fails with domain.ErrRebalanceInProgress.
type Service struct {
	cfg             Config
	fetcher         PriceTableFetcher
	registry        *optimization.Registry
	universeService *universe.Service
	portfolioRepo   *portfolio.PortfolioRepository
	rebalanceRepo   *portfolio.RebalanceRepository

	locks sync.Map // portfolio ID -> *sync.Mutex
	log   zerolog.Logger
}

// NewService creates a new rebalancing service.
func NewService(
	cfg Config,
	fetcher PriceTableFetcher,
	registry *optimization.Registry,
	universeService *universe.Service,
	portfolioRepo *portfolio.PortfolioRepository,
	rebalanceRepo *portfolio.RebalanceRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		cfg:             cfg,
		fetcher:         fetcher,
		registry:        registry,
		universeService: universeService,
		portfolioRepo:   portfolioRepo,
		rebalanceRepo:   rebalanceRepo,
		log:             log.With().Str("service", "rebalancing").Logger(),
	}
}

// Timeout returns the configured per-run deadline.
func (s *Service) Timeout() time.Duration {
	return s.cfg.Timeout
}

// Execute runs one rebalance for a portfolio. progress may be nil; when set
// it receives coarse stage names as the pipeline advances. On success the
// recorded event and holdings are returned; on any failure nothing is
// persisted.
func (s *Service) Execute(ctx context.Context, portfolioID int64, progress func(stage string)) (*domain.RebalanceEvent, []domain.Holding, error) {
	release, err := s.acquire(portfolioID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	return s.executeHeld(ctx, portfolioID, progress)
}

// executeHeld runs the pipeline. The caller must hold the portfolio's run
// lock for the whole call.
func (s *Service) executeHeld(ctx context.Context, portfolioID int64, progress func(stage string)) (*domain.RebalanceEvent, []domain.Holding, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	event, holdings, err := s.run(ctx, portfolioID, progress)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("portfolio %d: %w", portfolioID, domain.ErrTimeout)
		}
		s.log.Error().Int64("portfolio_id", portfolioID).Err(err).Msg("Rebalance failed")
		return nil, nil, err
	}
	return event, holdings, nil
}

func (s *Service) run(ctx context.Context, portfolioID int64, progress func(stage string)) (*domain.RebalanceEvent, []domain.Holding, error) {
	report := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	p, err := s.portfolioRepo.GetByID(portfolioID)
	if err != nil {
		return nil, nil, err
	}
	params, err := s.portfolioRepo.GetParameters(portfolioID)
	if err != nil {
		return nil, nil, err
	}
	strategy, err := s.registry.Get(p.Strategy)
	if err != nil {
		return nil, nil, err
	}
	symbols, err := s.universeService.Symbols(p.Universe)
	if err != nil {
		return nil, nil, err
	}

	report("fetching prices")
	pt, err := s.fetcher.FetchPriceTable(ctx, symbols, s.cfg.WindowStart, s.cfg.WindowEnd)
	if err != nil {
		return nil, nil, err
	}

	report("computing returns")
	rt, err := optimization.BuildReturnTable(pt)
	if err != nil {
		return nil, nil, err
	}

	report("optimizing")
	weights, err := strategy.SolveWeights(ctx, rt, params)
	if err != nil {
		return nil, nil, err
	}

	report("recording")
	prior, err := s.rebalanceRepo.GetLatestHoldings(portfolioID)
	if err != nil {
		return nil, nil, err
	}

	latestPrices := pt.LatestPrices()
	marketValue := MarketValue(prior, latestPrices)
	holdings := TargetHoldings(weights, latestPrices, marketValue)

	event := domain.RebalanceEvent{
		PortfolioID:    portfolioID,
		Date:           pt.EndDate(),
		MarketValue:    marketValue,
		RealizedReturn: (marketValue - p.InitInvestment) / p.InitInvestment,
	}
	id, err := s.rebalanceRepo.AddEventWithHoldings(event, holdings)
	if err != nil {
		return nil, nil, err
	}
	event.ID = id

	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Int64("rebalance_id", id).
		Float64("market_value", marketValue).
		Int("holdings", len(holdings)).
		Msg("Rebalance complete")

	return &event, holdings, nil
}

// acquire takes the portfolio's run lock. The returned release must be
// called exactly once; holding it is what other triggers observe as an
// in-progress run.
func (s *Service) acquire(portfolioID int64) (func(), error) {
	mu, _ := s.locks.LoadOrStore(portfolioID, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	if !lock.TryLock() {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, domain.ErrRebalanceInProgress)
	}
	return lock.Unlock, nil
}

// MarketValue prices prior holdings at the latest closes. Holdings whose
// symbol has no price in the table are skipped. A zero result, including the
// first ever rebalance, is seeded with SeedMarketValue.
func MarketValue(holdings []domain.Holding, latestPrices map[string]float64) float64 {
	var mv float64
	for _, h := range holdings {
		if price, ok := latestPrices[h.Symbol]; ok {
			mv += h.Quantity * price
		}
	}
	if mv == 0 {
		mv = SeedMarketValue
	}
	return mv
}

// TargetHoldings converts target weights into share quantities at the latest
// closes. Fractional shares are kept; zero-quantity entries are dropped.
func TargetHoldings(weights map[string]float64, latestPrices map[string]float64, marketValue float64) []domain.Holding {
	holdings := make([]domain.Holding, 0, len(weights))
	for symbol, w := range weights {
		price, ok := latestPrices[symbol]
		if !ok || price == 0 {
			continue
		}
		qty := marketValue * w / price
		if qty == 0 {
			continue
		}
		holdings = append(holdings, domain.Holding{Symbol: symbol, Quantity: qty})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings
}
