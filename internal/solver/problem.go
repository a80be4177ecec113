// Package solver provides a small solver-agnostic linear / mixed-integer
// programming layer. Model construction goes through Problem so the backend
// can be swapped without touching model-building code.
package solver

import (
	"context"
	"math"
)

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Op is a constraint comparison operator.
type Op int

const (
	LE Op = iota // <=
	GE           // >=
	EQ           // ==
)

// Status is the termination status of a solve.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusNodeLimit  Status = "node_limit"
	StatusError      Status = "error"
)

// Term is one coefficient on one variable.
type Term struct {
	Var  int
	Coef float64
}

// T is shorthand for building terms.
func T(v int, coef float64) Term {
	return Term{Var: v, Coef: coef}
}

// Variable holds variable bounds and integrality.
type Variable struct {
	Name    string
	Lower   float64 // may be math.Inf(-1)
	Upper   float64 // may be math.Inf(1)
	Integer bool
}

// Constraint is a linear constraint sum(terms) op rhs.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

// Problem is a linear program, optionally with integer variables.
type Problem struct {
	Sense       Sense
	Objective   []Term
	Vars        []Variable
	Constraints []Constraint
}

// NewProblem creates an empty problem.
func NewProblem() *Problem {
	return &Problem{}
}

// AddVariable adds a continuous variable and returns its index.
func (p *Problem) AddVariable(name string, lower, upper float64) int {
	p.Vars = append(p.Vars, Variable{Name: name, Lower: lower, Upper: upper})
	return len(p.Vars) - 1
}

// AddFree adds a continuous variable unbounded in both directions.
func (p *Problem) AddFree(name string) int {
	return p.AddVariable(name, math.Inf(-1), math.Inf(1))
}

// AddBinary adds a {0,1} variable and returns its index.
func (p *Problem) AddBinary(name string) int {
	p.Vars = append(p.Vars, Variable{Name: name, Lower: 0, Upper: 1, Integer: true})
	return len(p.Vars) - 1
}

// SetObjective sets the optimization direction and objective terms.
func (p *Problem) SetObjective(sense Sense, terms ...Term) {
	p.Sense = sense
	p.Objective = terms
}

// AddConstraint adds a linear constraint.
func (p *Problem) AddConstraint(name string, op Op, rhs float64, terms ...Term) {
	p.Constraints = append(p.Constraints, Constraint{Name: name, Terms: terms, Op: op, RHS: rhs})
}

// HasIntegers reports whether any variable is integral.
func (p *Problem) HasIntegers() bool {
	for _, v := range p.Vars {
		if v.Integer {
			return true
		}
	}
	return false
}

// EvalObjective computes the objective value at x.
func (p *Problem) EvalObjective(x []float64) float64 {
	var obj float64
	for _, t := range p.Objective {
		obj += t.Coef * x[t.Var]
	}
	return obj
}

// Solution is the result of a solve. Values are indexed by variable index.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

// Solver solves a Problem. A Solution with Status != StatusOptimal must be
// treated as a failed solve by callers that need proven optimality.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}
