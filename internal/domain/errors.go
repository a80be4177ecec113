package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the rebalancing pipeline. Callers test them with
// errors.Is; every failure aborts the whole rebalance and nothing is
// persisted for the failed run.
var (
	// ErrDataUnavailable means the market data fetch produced nothing usable
	// (zero instruments or zero rows after exclusions).
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientData means the price table has fewer than two rows, so
	// no return can be computed.
	ErrInsufficientData = errors.New("insufficient price data")

	// ErrTimeout means the fetch or solve exceeded the configured deadline.
	ErrTimeout = errors.New("rebalance timed out")

	// ErrRebalanceInProgress means another run already holds the
	// per-portfolio lock.
	ErrRebalanceInProgress = errors.New("rebalance already in progress")

	// ErrNotFound means a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// OptimizationError is returned when the solver terminates without a
// provably optimal solution. There is no fallback heuristic.
type OptimizationError struct {
	Status string // solver termination status (infeasible, unbounded, ...)
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("optimization failed: %s", e.Status)
}

// NewOptimizationError creates an OptimizationError with the given solver status.
func NewOptimizationError(status string) *OptimizationError {
	return &OptimizationError{Status: status}
}
