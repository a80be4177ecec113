package solver

import (
	"context"
	"math"
)

const (
	defaultMaxNodes = 100000
	intTol          = 1e-6
	objTol          = 1e-9
)

// BranchAndBound solves mixed-integer linear programs by branching on
// fractional integer variables over LP relaxations.
type BranchAndBound struct {
	// MaxNodes bounds the search. Exceeding it terminates with
	// StatusNodeLimit, which callers must treat as a failed solve.
	MaxNodes int
}

// NewBranchAndBound creates a solver with the default node limit.
func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{MaxNodes: defaultMaxNodes}
}

type bbNode struct {
	lower []float64
	upper []float64
}

// Solve solves p to proven optimality or reports why it could not.
// The error return is reserved for context cancellation and internal solver
// failures; infeasible and unbounded models come back as a Solution status.
// The context is checked on every simplex iteration, so a deadline bounds
// the solve even inside a single relaxation.
func (s *BranchAndBound) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}

	rootLower := make([]float64, len(p.Vars))
	rootUpper := make([]float64, len(p.Vars))
	for j, v := range p.Vars {
		rootLower[j] = v.Lower
		rootUpper[j] = v.Upper
	}

	// Pure LP: one relaxation is the answer
	if !p.HasIntegers() {
		x, status, err := relaxation(ctx, p, rootLower, rootUpper)
		if err != nil {
			return &Solution{Status: StatusError}, err
		}
		if status != StatusOptimal {
			return &Solution{Status: status}, nil
		}
		return &Solution{Status: StatusOptimal, Objective: p.EvalObjective(x), Values: x}, nil
	}

	var (
		best     []float64
		bestObj  float64
		haveBest bool
	)
	better := func(obj float64) bool {
		if !haveBest {
			return true
		}
		if p.Sense == Maximize {
			return obj > bestObj+objTol
		}
		return obj < bestObj-objTol
	}

	stack := []bbNode{{lower: rootLower, upper: rootUpper}}
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return &Solution{Status: StatusError}, err
		}
		nodes++
		if nodes > maxNodes {
			return &Solution{Status: StatusNodeLimit}, nil
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, status, err := relaxation(ctx, p, node.lower, node.upper)
		if err != nil {
			return &Solution{Status: StatusError}, err
		}
		switch status {
		case StatusInfeasible:
			continue
		case StatusUnbounded:
			// The relaxation admits unbounded rays, so does the MILP
			return &Solution{Status: StatusUnbounded}, nil
		}

		obj := p.EvalObjective(x)
		if !better(obj) {
			continue
		}

		// Most fractional integer variable
		branchVar := -1
		worstFrac := intTol
		for j, v := range p.Vars {
			if !v.Integer {
				continue
			}
			frac := math.Abs(x[j] - math.Round(x[j]))
			if frac > worstFrac {
				worstFrac = frac
				branchVar = j
			}
		}

		if branchVar < 0 {
			// Integral: new incumbent
			best = x
			bestObj = obj
			haveBest = true
			continue
		}

		floorVal := math.Floor(x[branchVar])
		downLower := append([]float64(nil), node.lower...)
		downUpper := append([]float64(nil), node.upper...)
		downUpper[branchVar] = floorVal

		upLower := append([]float64(nil), node.lower...)
		upUpper := append([]float64(nil), node.upper...)
		upLower[branchVar] = floorVal + 1

		// Explore the branch nearer the fractional value first
		if x[branchVar]-floorVal > 0.5 {
			stack = append(stack, bbNode{downLower, downUpper}, bbNode{upLower, upUpper})
		} else {
			stack = append(stack, bbNode{upLower, upUpper}, bbNode{downLower, downUpper})
		}
	}

	if !haveBest {
		return &Solution{Status: StatusInfeasible}, nil
	}
	return &Solution{Status: StatusOptimal, Objective: bestObj, Values: best}, nil
}
