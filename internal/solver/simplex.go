package solver

import (
	"context"
	"fmt"
	"math"
)

// Numerical tolerances for the simplex.
const (
	pivotTol = 1e-9  // minimum usable pivot magnitude
	costTol  = 1e-9  // reduced-cost optimality threshold
	feasTol  = 1e-7  // phase-1 residual below this is feasible
	degenTol = 1e-10 // steps below this count as degenerate
)

// Consecutive degenerate pivots before switching to Bland's rule, which is
// slower but cannot cycle.
const degenStreakLimit = 64

// relaxation solves the LP relaxation of p with the variable bounds replaced
// by lower/upper (branching may have tightened them). Integrality is ignored.
//
// The backend is a two-phase primal simplex on the bounded-variable form
// (min c'z, Az = b, l <= z <= u): finite bounds are handled natively in the
// ratio test instead of being expanded into extra rows, which keeps the
// tableau small and avoids the massive degeneracy a bound row per variable
// introduces. Variables map to columns as:
//   - fixed variables (lower == upper) are substituted out as constants
//   - variables with a finite lower bound become one column as-is
//   - variables bounded only above are negated: x = -z
//   - free variables are split: x = zPlus - zMinus
//
// Every column therefore has a finite lower bound, which gives phase 1 a
// trivial starting point with all columns nonbasic at their lower bound.
func relaxation(ctx context.Context, p *Problem, lower, upper []float64) ([]float64, Status, error) {
	type varKind int
	const (
		kindFixed varKind = iota
		kindDirect
		kindFlip
		kindSplit
	)
	type varCol struct {
		kind varKind
		col  int
		lb   float64
		ub   float64
	}

	n := len(p.Vars)
	cols := make([]varCol, n)
	nCols := 0
	for j := 0; j < n; j++ {
		lb, ub := lower[j], upper[j]
		if lb > ub {
			return nil, StatusInfeasible, nil
		}
		switch {
		case lb == ub:
			cols[j] = varCol{kind: kindFixed, lb: lb, ub: ub}
		case !math.IsInf(lb, -1):
			cols[j] = varCol{kind: kindDirect, col: nCols, lb: lb, ub: ub}
			nCols++
		case !math.IsInf(ub, 1):
			cols[j] = varCol{kind: kindFlip, col: nCols, lb: -ub, ub: math.Inf(1)}
			nCols++
		default:
			cols[j] = varCol{kind: kindSplit, col: nCols, lb: 0, ub: math.Inf(1)}
			nCols += 2
		}
	}

	m := len(p.Constraints)
	if m == 0 {
		return solveUnconstrained(p, lower, upper)
	}

	nSlack := 0
	for _, c := range p.Constraints {
		if c.Op != EQ {
			nSlack++
		}
	}
	total := nCols + nSlack

	if total == 0 {
		// Every variable is fixed; just check the constraints
		x := make([]float64, n)
		for j := 0; j < n; j++ {
			x[j] = cols[j].lb
		}
		for _, con := range p.Constraints {
			var v float64
			for _, t := range con.Terms {
				v += t.Coef * x[t.Var]
			}
			var ok bool
			switch con.Op {
			case LE:
				ok = v <= con.RHS+feasTol
			case GE:
				ok = v >= con.RHS-feasTol
			case EQ:
				ok = math.Abs(v-con.RHS) <= feasTol
			}
			if !ok {
				return nil, StatusInfeasible, nil
			}
		}
		return x, StatusOptimal, nil
	}

	lbc := make([]float64, total)
	ubc := make([]float64, total)
	for j := range ubc {
		ubc[j] = math.Inf(1)
	}
	for j := 0; j < n; j++ {
		vc := cols[j]
		switch vc.kind {
		case kindDirect, kindFlip:
			lbc[vc.col], ubc[vc.col] = vc.lb, vc.ub
		}
	}

	a := make([][]float64, m)
	b := make([]float64, m)
	slack := nCols
	for i, con := range p.Constraints {
		row := make([]float64, total)
		rhs := con.RHS
		for _, t := range con.Terms {
			vc := cols[t.Var]
			switch vc.kind {
			case kindFixed:
				rhs -= t.Coef * vc.lb
			case kindDirect:
				row[vc.col] += t.Coef
			case kindFlip:
				row[vc.col] -= t.Coef
			case kindSplit:
				row[vc.col] += t.Coef
				row[vc.col+1] -= t.Coef
			}
		}
		switch con.Op {
		case LE:
			row[slack] = 1
			slack++
		case GE:
			row[slack] = -1
			slack++
		}
		a[i] = row
		b[i] = rhs
	}

	// Internal form minimizes; negate the objective for maximization
	sign := 1.0
	if p.Sense == Maximize {
		sign = -1.0
	}
	cost := make([]float64, total+m) // artificial columns carry zero cost
	for _, t := range p.Objective {
		vc := cols[t.Var]
		switch vc.kind {
		case kindFixed:
			// constant, drops out of the objective
		case kindDirect:
			cost[vc.col] += sign * t.Coef
		case kindFlip:
			cost[vc.col] -= sign * t.Coef
		case kindSplit:
			cost[vc.col] += sign * t.Coef
			cost[vc.col+1] -= sign * t.Coef
		}
	}

	tb := newTableau(a, b, lbc, ubc)
	st, err := tb.phase1(ctx)
	if err != nil {
		return nil, StatusError, err
	}
	if st != StatusOptimal {
		return nil, st, nil
	}
	st, err = tb.iterate(ctx, cost)
	if err != nil {
		return nil, StatusError, err
	}
	if st != StatusOptimal {
		return nil, st, nil
	}

	vals := tb.columnValues()
	x := make([]float64, n)
	for j := 0; j < n; j++ {
		vc := cols[j]
		switch vc.kind {
		case kindFixed:
			x[j] = vc.lb
		case kindDirect:
			x[j] = vals[vc.col]
		case kindFlip:
			x[j] = -vals[vc.col]
		case kindSplit:
			x[j] = vals[vc.col] - vals[vc.col+1]
		}
	}
	return x, StatusOptimal, nil
}

// solveUnconstrained places each variable at its objective-favorable bound.
func solveUnconstrained(p *Problem, lower, upper []float64) ([]float64, Status, error) {
	n := len(p.Vars)
	obj := make([]float64, n)
	for _, t := range p.Objective {
		obj[t.Var] += t.Coef
	}
	x := make([]float64, n)
	for j := 0; j < n; j++ {
		c := obj[j]
		if p.Sense == Maximize {
			c = -c
		}
		switch {
		case c > 0:
			x[j] = lower[j]
		case c < 0:
			x[j] = upper[j]
		default:
			x[j] = lower[j]
			if math.IsInf(x[j], -1) {
				x[j] = math.Min(upper[j], 0)
			}
		}
		if math.IsInf(x[j], 0) {
			return nil, StatusUnbounded, nil
		}
	}
	return x, StatusOptimal, nil
}

// tableau is the working state of the bounded-variable simplex: n real
// columns (structurals plus slacks) followed by one artificial per row.
// Nonbasic columns sit at one of their bounds, tracked by atUpper.
type tableau struct {
	m, n  int // rows, real columns
	width int // n + m artificials

	rows    [][]float64 // m x width, kept equal to Binv * A
	lb, ub  []float64
	basis   []int
	inBasis []bool
	atUpper []bool
	xB      []float64 // values of the basic variables by row

	bland bool
	degen int
}

func newTableau(a [][]float64, b []float64, lb, ub []float64) *tableau {
	m, n := len(a), len(lb)
	t := &tableau{
		m: m, n: n, width: n + m,
		rows:    make([][]float64, m),
		lb:      make([]float64, n+m),
		ub:      make([]float64, n+m),
		basis:   make([]int, m),
		inBasis: make([]bool, n+m),
		atUpper: make([]bool, n+m),
		xB:      make([]float64, m),
	}
	copy(t.lb, lb)
	copy(t.ub, ub)
	for j := n; j < t.width; j++ {
		t.ub[j] = math.Inf(1)
	}

	for i := 0; i < m; i++ {
		row := make([]float64, t.width)
		copy(row, a[i])
		// Residual once every real column sits at its lower bound
		r := b[i]
		for j := 0; j < n; j++ {
			if lb[j] != 0 {
				r -= row[j] * lb[j]
			}
		}
		if r < 0 {
			r = -r
			for j := 0; j < n; j++ {
				row[j] = -row[j]
			}
		}
		row[n+i] = 1
		t.rows[i] = row
		t.basis[i] = n + i
		t.inBasis[n+i] = true
		t.xB[i] = r
	}
	return t
}

// phase1 drives the artificial variables to zero. On success the artificials
// are pinned at zero and, where possible, swapped out of the basis.
func (t *tableau) phase1(ctx context.Context) (Status, error) {
	cost := make([]float64, t.width)
	for j := t.n; j < t.width; j++ {
		cost[j] = 1
	}
	st, err := t.iterate(ctx, cost)
	if err != nil {
		return StatusError, err
	}
	if st == StatusUnbounded {
		return StatusError, fmt.Errorf("simplex: phase 1 unbounded")
	}

	var residual float64
	for i, bi := range t.basis {
		if bi >= t.n {
			residual += t.xB[i]
		}
	}
	if residual > feasTol {
		return StatusInfeasible, nil
	}

	for j := t.n; j < t.width; j++ {
		t.lb[j], t.ub[j] = 0, 0
	}
	for i := 0; i < t.m; i++ {
		if t.basis[i] < t.n {
			continue
		}
		// Zero-valued artificial still basic: swap in any usable real
		// column. A row with none is redundant and keeps it, pinned.
		for j := 0; j < t.n; j++ {
			if !t.inBasis[j] && math.Abs(t.rows[i][j]) > pivotTol {
				t.swapBasis(i, j)
				break
			}
		}
	}
	return StatusOptimal, nil
}

// iterate runs the primal simplex to optimality for the given costs.
// Artificial columns never enter the basis.
func (t *tableau) iterate(ctx context.Context, cost []float64) (Status, error) {
	t.bland = false
	t.degen = 0
	maxIter := 500 * (t.m + t.width)
	cb := make([]float64, t.m)

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return StatusError, err
		}

		for i := 0; i < t.m; i++ {
			cb[i] = cost[t.basis[i]]
		}

		// Entering column: Dantzig pricing, Bland once degeneracy stalls.
		// A column at its lower bound enters increasing, one at its upper
		// bound enters decreasing.
		enter, dir, best := -1, 1.0, costTol
		for j := 0; j < t.n; j++ {
			if t.inBasis[j] || t.lb[j] == t.ub[j] {
				continue
			}
			d := cost[j]
			for i := 0; i < t.m; i++ {
				if cb[i] != 0 {
					d -= cb[i] * t.rows[i][j]
				}
			}
			var score, sigma float64
			switch {
			case !t.atUpper[j] && d < -costTol:
				score, sigma = -d, 1
			case t.atUpper[j] && d > costTol:
				score, sigma = d, -1
			default:
				continue
			}
			if t.bland {
				enter, dir = j, sigma
				break
			}
			if score > best {
				best, enter, dir = score, j, sigma
			}
		}
		if enter < 0 {
			return StatusOptimal, nil
		}

		// Ratio test: the entering column moves until it hits its own
		// opposite bound or drives a basic variable to one of its bounds.
		step := math.Inf(1)
		if !math.IsInf(t.ub[enter], 1) {
			step = t.ub[enter] - t.lb[enter]
		}
		leave, leaveAtUpper := -1, false
		for i := 0; i < t.m; i++ {
			coef := dir * t.rows[i][enter]
			bi := t.basis[i]
			var limit float64
			var hitsUpper bool
			switch {
			case coef > pivotTol: // basic variable decreases toward its lower bound
				limit = (t.xB[i] - t.lb[bi]) / coef
			case coef < -pivotTol: // basic variable increases toward its upper bound
				if math.IsInf(t.ub[bi], 1) {
					continue
				}
				limit = (t.ub[bi] - t.xB[i]) / -coef
				hitsUpper = true
			default:
				continue
			}
			if limit < 0 {
				limit = 0
			}
			switch {
			case leave < 0:
				if limit <= step+degenTol {
					if limit < step {
						step = limit
					}
					leave, leaveAtUpper = i, hitsUpper
				}
			case limit < step-degenTol:
				step, leave, leaveAtUpper = limit, i, hitsUpper
			case limit <= step+degenTol && bi < t.basis[leave]:
				// Tie: lowest-index leaving variable, against cycling
				if limit < step {
					step = limit
				}
				leave, leaveAtUpper = i, hitsUpper
			}
		}
		if math.IsInf(step, 1) {
			return StatusUnbounded, nil
		}

		if step <= degenTol {
			t.degen++
			if t.degen >= degenStreakLimit {
				t.bland = true
			}
		} else {
			t.degen = 0
		}

		if leave < 0 {
			// The entering column flips to its opposite bound without a
			// basis change
			for i := 0; i < t.m; i++ {
				if c := t.rows[i][enter]; c != 0 {
					t.xB[i] -= dir * c * step
				}
			}
			t.atUpper[enter] = !t.atUpper[enter]
			continue
		}

		for i := 0; i < t.m; i++ {
			if i == leave {
				continue
			}
			if c := t.rows[i][enter]; c != 0 {
				t.xB[i] -= dir * c * step
			}
		}
		enterVal := t.lb[enter]
		if t.atUpper[enter] {
			enterVal = t.ub[enter]
		}
		enterVal += dir * step

		lv := t.basis[leave]
		t.inBasis[lv] = false
		t.atUpper[lv] = leaveAtUpper
		t.pivot(leave, enter)
		t.xB[leave] = enterVal
	}
	return StatusError, fmt.Errorf("simplex: iteration limit reached (%d)", maxIter)
}

// pivot makes column e basic in row r by Gaussian elimination.
func (t *tableau) pivot(r, e int) {
	prow := t.rows[r]
	inv := 1 / prow[e]
	for j := range prow {
		prow[j] *= inv
	}
	prow[e] = 1
	for i := 0; i < t.m; i++ {
		if i == r {
			continue
		}
		f := t.rows[i][e]
		if f == 0 {
			continue
		}
		row := t.rows[i]
		for j := range row {
			row[j] -= f * prow[j]
		}
		row[e] = 0
	}
	t.basis[r] = e
	t.inBasis[e] = true
}

// swapBasis replaces the basic variable in row r with nonbasic column e
// without moving the solution.
func (t *tableau) swapBasis(r, e int) {
	val := t.lb[e]
	if t.atUpper[e] {
		val = t.ub[e]
	}
	lv := t.basis[r]
	t.inBasis[lv] = false
	t.atUpper[lv] = false
	t.pivot(r, e)
	t.xB[r] = val
}

// columnValues returns the current value of every real column.
func (t *tableau) columnValues() []float64 {
	vals := make([]float64, t.n)
	for j := 0; j < t.n; j++ {
		if t.atUpper[j] {
			vals[j] = t.ub[j]
		} else {
			vals[j] = t.lb[j]
		}
	}
	for i, bi := range t.basis {
		if bi < t.n {
			vals[bi] = t.xB[i]
		}
	}
	return vals
}
