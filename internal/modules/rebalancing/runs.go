package rebalancing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunState is the lifecycle state of an async rebalance run.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// Run is a point-in-time snapshot of one async rebalance.
type Run struct {
	ID          string                 `json:"id"`
	PortfolioID int64                  `json:"portfolio_id"`
	State       RunState               `json:"state"`
	Stage       string                 `json:"stage,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
	Event       *domain.RebalanceEvent `json:"event,omitempty"`
	Holdings    []domain.Holding       `json:"holdings,omitempty"`
}

func (r *Run) done() bool {
	return r.State == StateCompleted || r.State == StateFailed
}

// RunManager starts async rebalance runs and tracks their progress in
// memory. Runs do not survive a restart; the ledger in portfolio.db is the
// durable record.
type RunManager struct {
	service *Service

	mu          sync.RWMutex
	runs        map[string]*Run
	subscribers map[string][]chan Run

	log zerolog.Logger
}

// NewRunManager creates a new run manager.
func NewRunManager(service *Service, log zerolog.Logger) *RunManager {
	return &RunManager{
		service:     service,
		runs:        make(map[string]*Run),
		subscribers: make(map[string][]chan Run),
		log:         log.With().Str("component", "run_manager").Logger(),
	}
}

// Start launches an async rebalance and returns its run ID. The per-portfolio
// lock is taken synchronously and handed to the run goroutine, so a
// concurrent trigger fails fast with domain.ErrRebalanceInProgress and can
// never slip in between the check and the run.
func (m *RunManager) Start(portfolioID int64) (string, error) {
	release, err := m.service.acquire(portfolioID)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.runs[id] = &Run{
		ID:          id,
		PortfolioID: portfolioID,
		State:       StatePending,
		StartedAt:   time.Now().UTC(),
	}
	m.mu.Unlock()

	go m.execute(id, portfolioID, release)

	m.log.Info().Str("run_id", id).Int64("portfolio_id", portfolioID).Msg("Rebalance run started")
	return id, nil
}

func (m *RunManager) execute(id string, portfolioID int64, release func()) {
	defer release()

	m.update(id, func(r *Run) {
		r.State = StateRunning
	})

	event, holdings, err := m.service.executeHeld(context.Background(), portfolioID, func(stage string) {
		m.update(id, func(r *Run) {
			r.Stage = stage
		})
	})

	now := time.Now().UTC()
	m.update(id, func(r *Run) {
		r.FinishedAt = &now
		if err != nil {
			r.State = StateFailed
			r.Error = err.Error()
			return
		}
		r.State = StateCompleted
		r.Event = event
		r.Holdings = holdings
	})
}

// Get returns a snapshot of one run, or domain.ErrNotFound.
func (m *RunManager) Get(id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return *r, nil
}

// Subscribe returns a channel of run snapshots. The current state is
// delivered immediately; the channel closes once the run finishes. The
// returned cancel function must be called to release the subscription.
func (m *RunManager) Subscribe(id string) (<-chan Run, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}

	ch := make(chan Run, 16)
	ch <- *r
	if r.done() {
		close(ch)
		return ch, func() {}, nil
	}

	m.subscribers[id] = append(m.subscribers[id], ch)
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[id]
		for i, sub := range subs {
			if sub == ch {
				m.subscribers[id] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, cancel, nil
}

func (m *RunManager) update(id string, fn func(*Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return
	}
	fn(r)

	snapshot := *r
	for _, ch := range m.subscribers[id] {
		select {
		case ch <- snapshot:
		default:
			// Slow subscriber, drop the update rather than block the run
		}
	}
	if r.done() {
		for _, ch := range m.subscribers[id] {
			close(ch)
		}
		delete(m.subscribers, id)
	}
}
