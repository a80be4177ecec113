package rebalancing

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/omegafolio/internal/domain"
	"github.com/aristath/omegafolio/internal/modules/marketdata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher blocks every fetch until release is closed, so tests can pin
// a run mid-pipeline.
type gatedFetcher struct {
	table   *marketdata.PriceTable
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) FetchPriceTable(ctx context.Context, _ []string, _, _ string) (*marketdata.PriceTable, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.table, nil
}

func waitForState(t *testing.T, m *RunManager, id string, want RunState) Run {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("run %s never reached state %s", id, want)
		case <-time.After(10 * time.Millisecond):
		}
		run, err := m.Get(id)
		require.NoError(t, err)
		if run.State == want {
			return run
		}
	}
}

func TestRunManagerCompletedRun(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable()}, 0)
	m := NewRunManager(env.service, zerolog.Nop())

	id, err := m.Start(env.portfolioID)
	require.NoError(t, err)

	run := waitForState(t, m, id, StateCompleted)
	require.NotNil(t, run.Event)
	assert.Equal(t, env.portfolioID, run.Event.PortfolioID)
	assert.NotEmpty(t, run.Holdings)
	assert.NotNil(t, run.FinishedAt)
}

func TestRunManagerFailedRun(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: domain.ErrDataUnavailable}, 0)
	m := NewRunManager(env.service, zerolog.Nop())

	id, err := m.Start(env.portfolioID)
	require.NoError(t, err)

	run := waitForState(t, m, id, StateFailed)
	assert.Contains(t, run.Error, "market data unavailable")
	assert.Nil(t, run.Event)
}

func TestRunManagerStartHoldsLockUntilRunFinishes(t *testing.T) {
	fetcher := &gatedFetcher{
		table:   steadyTable(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, fetcher, 0)
	m := NewRunManager(env.service, zerolog.Nop())

	id, err := m.Start(env.portfolioID)
	require.NoError(t, err)

	// The lock is taken in Start itself, so a second trigger is rejected
	// even before the run goroutine has been scheduled, and keeps being
	// rejected while the run is pinned inside the fetch.
	for i := 0; i < 10; i++ {
		_, err := m.Start(env.portfolioID)
		require.ErrorIs(t, err, domain.ErrRebalanceInProgress)
	}
	<-fetcher.started
	_, err = m.Start(env.portfolioID)
	require.ErrorIs(t, err, domain.ErrRebalanceInProgress)

	// No failed runs were recorded for the rejected triggers
	run, err := m.Get(id)
	require.NoError(t, err)
	assert.NotEqual(t, StateFailed, run.State)

	close(fetcher.release)
	waitForState(t, m, id, StateCompleted)

	// The lock is released once the run finishes
	deadline := time.After(5 * time.Second)
	for {
		id2, err := m.Start(env.portfolioID)
		if err == nil {
			waitForState(t, m, id2, StateCompleted)
			return
		}
		require.ErrorIs(t, err, domain.ErrRebalanceInProgress)
		select {
		case <-deadline:
			t.Fatal("portfolio lock never released after run completion")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunManagerUnknownRun(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable()}, 0)
	m := NewRunManager(env.service, zerolog.Nop())

	_, err := m.Get("no-such-run")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = m.Subscribe("no-such-run")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunManagerSubscribe(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{table: steadyTable()}, 0)
	m := NewRunManager(env.service, zerolog.Nop())

	id, err := m.Start(env.portfolioID)
	require.NoError(t, err)

	updates, cancel, err := m.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	var last Run
	for run := range updates {
		last = run
	}
	assert.Equal(t, StateCompleted, last.State)
	require.NotNil(t, last.Event)
}
