package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/solver"
	"github.com/rs/zerolog"
)

// Transaction cost model. Buy and sell legs are charged a brokerage fee,
// sells additionally pay the transaction tax.
const (
	BuyCost  = 0.001425
	SellCost = 0.001425
	SellTax  = 0.003
)

// Lot-size bounds: a selected instrument must carry at least 1% of the
// portfolio, enforced through a binary selection variable.
const (
	weightFloor = 0.01
	weightCeil  = 1.0
)

// DefaultDelta is the omega trade-off weight used when a portfolio does not
// set one.
const DefaultDelta = 0.5

const solutionTol = 1e-6

// OmegaOptimizer solves the omega-ratio portfolio selection model as a
// mixed-integer linear program.
//
// Mathematical formulation (maximize psi):
//   - delta*(sum_j w_j*rbar_j - tau) - (1-delta)/T * sum_t eta_t >= psi
//   - eta_t >= tau - sum_j r_tj*w_j          for every day t
//   - sum_j w_j = 1
//   - sum_j rbar_j*w_j >= required_return
//   - w_j = wbuy_j - wsell_j
//   - floor*b_j <= w_j <= ceil*b_j           b_j binary
//   - cost = BuyCost*sum(wbuy) + (SellCost+SellTax)*sum(wsell)
type OmegaOptimizer struct {
	solver solver.Solver
	log    zerolog.Logger
}

// NewOmegaOptimizer creates a new omega optimizer.
func NewOmegaOptimizer(s solver.Solver, log zerolog.Logger) *OmegaOptimizer {
	return &OmegaOptimizer{
		solver: s,
		log:    log.With().Str("optimizer", "omega").Logger(),
	}
}

// SolveWeights solves for target weights over the instruments in rt.
// A solve that terminates without proven optimality fails with
// *domain.OptimizationError; there is no fallback allocation.
func (o *OmegaOptimizer) SolveWeights(ctx context.Context, rt *ReturnTable, params domain.StrategyParameters) (map[string]float64, error) {
	n := len(rt.Symbols)
	days := rt.Days()
	if n == 0 || days == 0 {
		return nil, domain.ErrInsufficientData
	}

	tau := params[domain.ParamTau]
	requiredReturn := params[domain.ParamRequireReturn]
	delta, ok := params[domain.ParamDelta]
	if !ok {
		delta = DefaultDelta
	}

	p := solver.NewProblem()

	w := make([]int, n)
	wBuy := make([]int, n)
	wSell := make([]int, n)
	selected := make([]int, n)
	for j, symbol := range rt.Symbols {
		w[j] = p.AddVariable("w_"+symbol, 0, 1)
		wBuy[j] = p.AddVariable("wbuy_"+symbol, 0, 1)
		wSell[j] = p.AddVariable("wsell_"+symbol, 0, 1)
		selected[j] = p.AddBinary("sel_" + symbol)
	}
	eta := make([]int, days)
	for t := range eta {
		eta[t] = p.AddVariable(fmt.Sprintf("eta_%d", t), 0, math.Inf(1))
	}
	psi := p.AddFree("psi")
	cost := p.AddVariable("cost", 0, math.Inf(1))

	p.SetObjective(solver.Maximize, solver.T(psi, 1))

	// delta*(sum w*rbar - tau) - (1-delta)/T * sum eta >= psi
	omegaTerms := make([]solver.Term, 0, n+days+1)
	for j := 0; j < n; j++ {
		omegaTerms = append(omegaTerms, solver.T(w[j], delta*rt.AvgReturns[j]))
	}
	etaCoef := -(1 - delta) / float64(days)
	for t := 0; t < days; t++ {
		omegaTerms = append(omegaTerms, solver.T(eta[t], etaCoef))
	}
	omegaTerms = append(omegaTerms, solver.T(psi, -1))
	p.AddConstraint("omega", solver.GE, delta*tau, omegaTerms...)

	// cost = BuyCost*sum(wbuy) + (SellCost+SellTax)*sum(wsell)
	costTerms := make([]solver.Term, 0, 2*n+1)
	for j := 0; j < n; j++ {
		costTerms = append(costTerms, solver.T(wBuy[j], BuyCost))
		costTerms = append(costTerms, solver.T(wSell[j], SellCost+SellTax))
	}
	costTerms = append(costTerms, solver.T(cost, -1))
	p.AddConstraint("cost", solver.EQ, 0, costTerms...)

	// eta_t >= tau - sum_j r_tj*w_j
	for t := 0; t < days; t++ {
		terms := make([]solver.Term, 0, n+1)
		terms = append(terms, solver.T(eta[t], 1))
		for j := 0; j < n; j++ {
			terms = append(terms, solver.T(w[j], rt.Returns[t][j]))
		}
		p.AddConstraint(fmt.Sprintf("shortfall_%d", t), solver.GE, tau, terms...)
	}

	// sum w = 1
	budget := make([]solver.Term, n)
	for j := 0; j < n; j++ {
		budget[j] = solver.T(w[j], 1)
	}
	p.AddConstraint("budget", solver.EQ, 1, budget...)

	// sum rbar*w >= required_return
	floor := make([]solver.Term, n)
	for j := 0; j < n; j++ {
		floor[j] = solver.T(w[j], rt.AvgReturns[j])
	}
	p.AddConstraint("return_floor", solver.GE, requiredReturn, floor...)

	for j := 0; j < n; j++ {
		p.AddConstraint(fmt.Sprintf("trade_%d", j), solver.EQ, 0,
			solver.T(w[j], 1), solver.T(wBuy[j], -1), solver.T(wSell[j], 1))
		p.AddConstraint(fmt.Sprintf("lot_floor_%d", j), solver.GE, 0,
			solver.T(w[j], 1), solver.T(selected[j], -weightFloor))
		p.AddConstraint(fmt.Sprintf("lot_ceil_%d", j), solver.LE, 0,
			solver.T(w[j], 1), solver.T(selected[j], -weightCeil))
	}

	sol, err := o.solver.Solve(ctx, p)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("omega solve interrupted: %w", err)
		}
		// Internal solver failures are still a failed optimization, not an
		// infrastructure error
		o.log.Error().Err(err).Int("instruments", n).Int("days", days).Msg("Omega solver failed")
		return nil, fmt.Errorf("omega solve failed: %w", domain.NewOptimizationError(string(solver.StatusError)))
	}
	if sol.Status != solver.StatusOptimal {
		o.log.Warn().
			Str("status", string(sol.Status)).
			Int("instruments", n).
			Int("days", days).
			Msg("Omega optimization did not reach optimality")
		return nil, domain.NewOptimizationError(string(sol.Status))
	}

	weights := make(map[string]float64, n)
	for j, symbol := range rt.Symbols {
		if v := sol.Values[w[j]]; v > solutionTol {
			weights[symbol] = v
		}
	}

	o.log.Info().
		Int("instruments", n).
		Int("selected", len(weights)).
		Float64("objective", sol.Objective).
		Msg("Omega optimization complete")

	return weights, nil
}
