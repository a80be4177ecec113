package charts

import (
	"testing"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedger(t *testing.T, events int) (*Service, int64) {
	t.Helper()
	db, err := database.New(database.Config{Path: t.TempDir() + "/portfolio.db", Name: "portfolio"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	portfolioRepo := portfolio.NewPortfolioRepository(db.Conn(), log)
	rebalanceRepo := portfolio.NewRebalanceRepository(db.Conn(), log)

	pid, err := portfolioRepo.Add(domain.Portfolio{
		InitInvestment: 10000, CreateDate: "2024-07-01", Strategy: "omega", Universe: "taiwan50",
	}, nil)
	require.NoError(t, err)

	for i := 0; i < events; i++ {
		_, err := rebalanceRepo.AddEventWithHoldings(domain.RebalanceEvent{
			PortfolioID:    pid,
			Date:           "2024-06-30",
			MarketValue:    10000 + float64(i)*250,
			RealizedReturn: float64(i) * 0.025,
		}, nil)
		require.NoError(t, err)
	}

	return NewService(rebalanceRepo, log), pid
}

func TestRenderMarketValuePNG(t *testing.T) {
	svc, pid := setupLedger(t, 5)

	buf, err := svc.RenderMarketValuePNG(pid)
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf[:4])
}

func TestRenderMarketValuePNGInsufficientHistory(t *testing.T) {
	svc, pid := setupLedger(t, 1)

	_, err := svc.RenderMarketValuePNG(pid)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
