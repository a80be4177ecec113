package optimization

import (
	"context"
	"fmt"

	"github.com/aristath/omegafolio/internal/domain"
)

// WeightSolver solves for target portfolio weights from a return table.
// Implementations must return *domain.OptimizationError when the underlying
// solve terminates without proven optimality.
type WeightSolver interface {
	SolveWeights(ctx context.Context, rt *ReturnTable, params domain.StrategyParameters) (map[string]float64, error)
}

// Registry maps strategy names to weight solvers. Portfolios store a
// strategy name; the rebalancer resolves it here at run time.
type Registry struct {
	solvers map[string]WeightSolver
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{solvers: make(map[string]WeightSolver)}
}

// Register adds a solver under name, replacing any previous registration.
func (r *Registry) Register(name string, s WeightSolver) {
	r.solvers[name] = s
}

// Get resolves a strategy name to its solver.
func (r *Registry) Get(name string) (WeightSolver, error) {
	s, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q: %w", name, domain.ErrNotFound)
	}
	return s, nil
}

// Names lists the registered strategy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	return names
}
