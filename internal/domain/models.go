// Package domain holds the core types shared across modules.
// It has no infrastructure dependencies.
package domain

// Instrument is immutable reference data for one tradable security.
// Symbol is the exchange-qualified ticker (e.g. "2330.TW").
type Instrument struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Universe string `json:"universe"`
	Active   bool   `json:"active"`
}

// Portfolio is created once via user action and never mutated afterwards
// except through attached parameters and rebalance history.
type Portfolio struct {
	ID             int64   `json:"id"`
	InitInvestment float64 `json:"init_investment"`
	CreateDate     string  `json:"create_date"` // ISO calendar date
	Strategy       string  `json:"strategy"`
	Universe       string  `json:"universe"`
}

// Parameter names used by the omega strategy.
const (
	ParamTau           = "tau"
	ParamRequireReturn = "require_return"
	ParamDelta         = "delta"
)

// StrategyParameters maps parameter name to value for one portfolio.
type StrategyParameters map[string]float64

// RebalanceEvent records the outcome of one rebalancing run.
// The latest event for a portfolio is the one with the greatest ID.
type RebalanceEvent struct {
	ID             int64   `json:"id"`
	PortfolioID    int64   `json:"portfolio_id"`
	Date           string  `json:"date"`
	MarketValue    float64 `json:"market_value"`
	RealizedReturn float64 `json:"realized_return"` // relative to init investment
}

// Holding maps one instrument to a held quantity within a rebalance event.
// Fractional shares are allowed.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}
