package rebalancing

import (
	"context"
	"errors"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// AutoRebalanceJob rebalances every portfolio on a cron schedule. Failures
// are isolated per portfolio; one bad universe does not stop the sweep.
type AutoRebalanceJob struct {
	service       *Service
	portfolioRepo *portfolio.PortfolioRepository
	log           zerolog.Logger
}

// NewAutoRebalanceJob creates the scheduled rebalance job.
func NewAutoRebalanceJob(service *Service, portfolioRepo *portfolio.PortfolioRepository, log zerolog.Logger) *AutoRebalanceJob {
	return &AutoRebalanceJob{
		service:       service,
		portfolioRepo: portfolioRepo,
		log:           log.With().Str("job", "auto_rebalance").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *AutoRebalanceJob) Name() string {
	return "auto_rebalance"
}

// Run implements scheduler.Job.
func (j *AutoRebalanceJob) Run() error {
	portfolios, err := j.portfolioRepo.GetAll()
	if err != nil {
		return err
	}

	var failed int
	for _, p := range portfolios {
		_, _, err := j.service.Execute(context.Background(), p.ID, nil)
		if err != nil {
			if errors.Is(err, domain.ErrRebalanceInProgress) {
				j.log.Info().Int64("portfolio_id", p.ID).Msg("Skipping portfolio, rebalance already running")
				continue
			}
			failed++
			j.log.Error().Int64("portfolio_id", p.ID).Err(err).Msg("Scheduled rebalance failed")
		}
	}

	j.log.Info().Int("portfolios", len(portfolios)).Int("failed", failed).Msg("Scheduled rebalance sweep complete")
	return nil
}
