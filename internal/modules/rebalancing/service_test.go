package rebalancing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/marketdata"
	"github.com/aristath/omegafolio/internal/modules/optimization"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	"github.com/aristath/omegafolio/internal/modules/universe"
	"github.com/aristath/omegafolio/internal/solver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	table *marketdata.PriceTable
	err   error
	delay time.Duration
}

func (f *stubFetcher) FetchPriceTable(ctx context.Context, _ []string, _, _ string) (*marketdata.PriceTable, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type testEnv struct {
	service       *Service
	portfolioRepo *portfolio.PortfolioRepository
	rebalanceRepo *portfolio.RebalanceRepository
	portfolioID   int64
}

// steadyTable: AAA is flat, BBB climbs steadily. The omega model puts the
// whole budget on BBB, whose latest close is 104.
func steadyTable() *marketdata.PriceTable {
	return &marketdata.PriceTable{
		Dates:   []string{"2024-04-01", "2024-04-02", "2024-04-03", "2024-04-04"},
		Symbols: []string{"AAA", "BBB"},
		Prices: [][]float64{
			{50, 100},
			{51, 101.3},
			{49, 102.6},
			{50, 104},
		},
	}
}

func newTestEnv(t *testing.T, fetcher PriceTableFetcher, timeout time.Duration) *testEnv {
	t.Helper()
	dir := t.TempDir()

	portfolioDB, err := database.New(database.Config{Path: dir + "/portfolio.db", Name: "portfolio", Profile: database.ProfileLedger})
	require.NoError(t, err)
	t.Cleanup(func() { portfolioDB.Close() })
	require.NoError(t, portfolioDB.Migrate())

	universeDB, err := database.New(database.Config{Path: dir + "/universe.db", Name: "universe"})
	require.NoError(t, err)
	t.Cleanup(func() { universeDB.Close() })
	require.NoError(t, universeDB.Migrate())

	log := zerolog.Nop()
	instrumentRepo := universe.NewInstrumentRepository(universeDB.Conn(), log)
	require.NoError(t, instrumentRepo.Sync("test", []domain.Instrument{
		{Symbol: "AAA"}, {Symbol: "BBB"},
	}))
	universeService := universe.NewService(instrumentRepo, log)

	registry := optimization.NewRegistry()
	registry.Register("omega", optimization.NewOmegaOptimizer(solver.NewBranchAndBound(), log))

	portfolioRepo := portfolio.NewPortfolioRepository(portfolioDB.Conn(), log)
	rebalanceRepo := portfolio.NewRebalanceRepository(portfolioDB.Conn(), log)

	pid, err := portfolioRepo.Add(domain.Portfolio{
		InitInvestment: 10000,
		CreateDate:     "2024-07-01",
		Strategy:       "omega",
		Universe:       "test",
	}, domain.StrategyParameters{
		domain.ParamTau:           0,
		domain.ParamRequireReturn: 0,
		domain.ParamDelta:         0.5,
	})
	require.NoError(t, err)

	svc := NewService(
		Config{WindowStart: "2024-04-01", WindowEnd: "2024-06-30", Timeout: timeout},
		fetcher, registry, universeService, portfolioRepo, rebalanceRepo, log,
	)
	return &testEnv{service: svc, portfolioRepo: portfolioRepo, rebalanceRepo: rebalanceRepo, portfolioID: pid}
}

func TestExecuteFirstRebalance(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable()}, 0)

	event, holdings, err := env.service.Execute(context.Background(), env.portfolioID, nil)
	require.NoError(t, err)

	// First rebalance is seeded with the default market value
	assert.Equal(t, SeedMarketValue, event.MarketValue)
	assert.Equal(t, "2024-04-04", event.Date)
	assert.InDelta(t, 0.0, event.RealizedReturn, 1e-9)

	require.Len(t, holdings, 1)
	assert.Equal(t, "BBB", holdings[0].Symbol)
	assert.InDelta(t, 10000.0/104.0, holdings[0].Quantity, 1e-6)

	latest, err := env.rebalanceRepo.GetLatest(env.portfolioID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, event.ID, latest.ID)
}

func TestExecuteValuesPriorHoldings(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable()}, 0)

	_, err := env.rebalanceRepo.AddEventWithHoldings(domain.RebalanceEvent{
		PortfolioID: env.portfolioID, Date: "2024-04-04", MarketValue: 10000, RealizedReturn: 0,
	}, []domain.Holding{
		{Symbol: "AAA", Quantity: 10}, // 10 * 50 = 500
		{Symbol: "BBB", Quantity: 5},  // 5 * 104 = 520
	})
	require.NoError(t, err)

	event, _, err := env.service.Execute(context.Background(), env.portfolioID, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1020.0, event.MarketValue, 1e-9)
	assert.InDelta(t, (1020.0-10000.0)/10000.0, event.RealizedReturn, 1e-9)
}

func TestExecuteFetchFailureLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: domain.ErrDataUnavailable}, 0)

	_, _, err := env.service.Execute(context.Background(), env.portfolioID, nil)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	latest, err := env.rebalanceRepo.GetLatest(env.portfolioID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestExecuteTimeout(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable(), delay: time.Second}, 20*time.Millisecond)

	_, _, err := env.service.Execute(context.Background(), env.portfolioID, nil)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestExecuteSerializedPerPortfolio(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable(), delay: 200 * time.Millisecond}, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.service.Execute(context.Background(), env.portfolioID, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var conflicts, successes int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, domain.ErrRebalanceInProgress):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestExecuteReportsProgress(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable()}, 0)

	var stages []string
	_, _, err := env.service.Execute(context.Background(), env.portfolioID, func(stage string) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fetching prices", "computing returns", "optimizing", "recording"}, stages)
}

func TestMarketValueHelpers(t *testing.T) {
	prices := map[string]float64{"AAA": 100, "BBB": 50}

	mv := MarketValue([]domain.Holding{
		{Symbol: "AAA", Quantity: 10},
		{Symbol: "BBB", Quantity: 5},
		{Symbol: "CCC", Quantity: 7}, // no price, skipped
	}, prices)
	assert.Equal(t, 1250.0, mv)

	assert.Equal(t, SeedMarketValue, MarketValue(nil, prices))

	holdings := TargetHoldings(map[string]float64{"AAA": 0.6, "BBB": 0.4}, prices, 1000)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAA", holdings[0].Symbol)
	assert.InDelta(t, 6.0, holdings[0].Quantity, 1e-9)
	assert.InDelta(t, 8.0, holdings[1].Quantity, 1e-9)
}
