package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
)

// RebalanceRepository handles the append-only rebalance ledger. Events are
// never updated or deleted; the latest event is the one with the greatest ID.
type RebalanceRepository struct {
	portfolioDB *sql.DB // portfolio.db - rebalances + holdings
	log         zerolog.Logger
}

// NewRebalanceRepository creates a new rebalance ledger repository.
func NewRebalanceRepository(portfolioDB *sql.DB, log zerolog.Logger) *RebalanceRepository {
	return &RebalanceRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "rebalance").Logger(),
	}
}

// AddEventWithHoldings appends a rebalance event and its holdings in one
// transaction. A failed run must leave no trace, so there is no partial
// write path.
func (r *RebalanceRepository) AddEventWithHoldings(event domain.RebalanceEvent, holdings []domain.Holding) (int64, error) {
	var id int64
	err := database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"INSERT INTO rebalances (portfolio_id, date, market_value, realized_return) VALUES (?, ?, ?, ?)",
			event.PortfolioID, event.Date, event.MarketValue, event.RealizedReturn,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rebalance event: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read rebalance id: %w", err)
		}
		for _, h := range holdings {
			if _, err := tx.Exec(
				"INSERT INTO holdings (rebalance_id, symbol, quantity) VALUES (?, ?, ?)",
				id, h.Symbol, h.Quantity,
			); err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info().
		Int64("rebalance_id", id).
		Int64("portfolio_id", event.PortfolioID).
		Float64("market_value", event.MarketValue).
		Int("holdings", len(holdings)).
		Msg("Rebalance event recorded")
	return id, nil
}

// GetLatest returns the most recent rebalance event of a portfolio, or nil
// when the portfolio has never rebalanced.
func (r *RebalanceRepository) GetLatest(portfolioID int64) (*domain.RebalanceEvent, error) {
	var e domain.RebalanceEvent
	err := r.portfolioDB.QueryRow(
		`SELECT id, portfolio_id, date, market_value, realized_return
		 FROM rebalances WHERE portfolio_id = ? ORDER BY id DESC LIMIT 1`,
		portfolioID,
	).Scan(&e.ID, &e.PortfolioID, &e.Date, &e.MarketValue, &e.RealizedReturn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest rebalance for portfolio %d: %w", portfolioID, err)
	}
	return &e, nil
}

// GetHistory returns every rebalance event of a portfolio in chronological
// (insertion) order.
func (r *RebalanceRepository) GetHistory(portfolioID int64) ([]domain.RebalanceEvent, error) {
	rows, err := r.portfolioDB.Query(
		`SELECT id, portfolio_id, date, market_value, realized_return
		 FROM rebalances WHERE portfolio_id = ? ORDER BY id`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance history for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	var events []domain.RebalanceEvent
	for rows.Next() {
		var e domain.RebalanceEvent
		if err := rows.Scan(&e.ID, &e.PortfolioID, &e.Date, &e.MarketValue, &e.RealizedReturn); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetHoldings returns the holdings recorded with one rebalance event.
func (r *RebalanceRepository) GetHoldings(rebalanceID int64) ([]domain.Holding, error) {
	rows, err := r.portfolioDB.Query(
		"SELECT symbol, quantity FROM holdings WHERE rebalance_id = ? ORDER BY symbol", rebalanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for rebalance %d: %w", rebalanceID, err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// GetLatestHoldings returns the holdings of the most recent rebalance, or an
// empty slice for a portfolio that has never rebalanced.
func (r *RebalanceRepository) GetLatestHoldings(portfolioID int64) ([]domain.Holding, error) {
	latest, err := r.GetLatest(portfolioID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return r.GetHoldings(latest.ID)
}
