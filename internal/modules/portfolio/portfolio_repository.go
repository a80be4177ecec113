// Package portfolio persists portfolios, their strategy parameters, and the
// append-only rebalance ledger in portfolio.db.
package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
)

// PortfolioRepository handles portfolio database operations.
type PortfolioRepository struct {
	portfolioDB *sql.DB // portfolio.db - portfolios + strategy_parameters
	log         zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository.
func NewPortfolioRepository(portfolioDB *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "portfolio").Logger(),
	}
}

// Add inserts a portfolio and its strategy parameters in one transaction and
// returns the assigned ID.
func (r *PortfolioRepository) Add(p domain.Portfolio, params domain.StrategyParameters) (int64, error) {
	var id int64
	err := database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"INSERT INTO portfolios (init_investment, create_date, strategy, universe) VALUES (?, ?, ?, ?)",
			p.InitInvestment, p.CreateDate, p.Strategy, p.Universe,
		)
		if err != nil {
			return fmt.Errorf("failed to insert portfolio: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read portfolio id: %w", err)
		}
		for name, value := range params {
			if _, err := tx.Exec(
				"INSERT INTO strategy_parameters (portfolio_id, name, value) VALUES (?, ?, ?)",
				id, name, value,
			); err != nil {
				return fmt.Errorf("failed to insert parameter %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info().Int64("portfolio_id", id).Str("strategy", p.Strategy).Msg("Portfolio created")
	return id, nil
}

// GetByID returns one portfolio or domain.ErrNotFound.
func (r *PortfolioRepository) GetByID(id int64) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := r.portfolioDB.QueryRow(
		"SELECT id, init_investment, create_date, strategy, universe FROM portfolios WHERE id = ?", id,
	).Scan(&p.ID, &p.InitInvestment, &p.CreateDate, &p.Strategy, &p.Universe)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %d: %w", id, err)
	}
	return &p, nil
}

// GetAll returns every portfolio ordered by ID.
func (r *PortfolioRepository) GetAll() ([]domain.Portfolio, error) {
	rows, err := r.portfolioDB.Query(
		"SELECT id, init_investment, create_date, strategy, universe FROM portfolios ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.InitInvestment, &p.CreateDate, &p.Strategy, &p.Universe); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// GetParameters returns the strategy parameters of one portfolio.
func (r *PortfolioRepository) GetParameters(portfolioID int64) (domain.StrategyParameters, error) {
	rows, err := r.portfolioDB.Query(
		"SELECT name, value FROM strategy_parameters WHERE portfolio_id = ?", portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	params := make(domain.StrategyParameters)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		params[name] = value
	}
	return params, rows.Err()
}
