package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbeton/accountpulse/internal/aggregate"
	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/opportunity"
	"github.com/getbeton/accountpulse/internal/persistence/memory"
	"github.com/getbeton/accountpulse/internal/process"
	"github.com/getbeton/accountpulse/internal/scoring"
)

// fakeCooldowns grants each (workspace, account, type) key once.
type fakeCooldowns struct {
	mu   sync.Mutex
	held map[string]bool
}

func (s *fakeCooldowns) Acquire(_ context.Context, workspaceID, accountID string, oppType domain.ScoreType, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = map[string]bool{}
	}
	key := workspaceID + "/" + accountID + "/" + string(oppType)
	if s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

// captureSink records every delivered summary.
type captureSink struct {
	mu        sync.Mutex
	delivered []*domain.OpportunitySummary
}

func (s *captureSink) Deliver(_ context.Context, summary *domain.OpportunitySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, summary)
	return nil
}

func spikingAccount(id string, fit float64) domain.Account {
	return domain.Account{
		ID:          id,
		WorkspaceID: "ws-1",
		Name:        id,
		Status:      domain.AccountActive,
		FitScore:    fit,
		Usage: &domain.UsageSnapshot{
			APICallsPrev30d: 1000,
			APICalls30d:     2500,
		},
	}
}

func newTestRunner(store *memory.Store, sink OpportunitySink) *Runner {
	provider := config.NewStaticProvider(config.DefaultScoringConfig())
	collector := metrics.NewNopCollector()
	processor := process.NewProcessor(store, store, provider, detect.NewRegistry(), collector)
	gate := opportunity.NewGate(&fakeCooldowns{}, provider, collector)
	aggregator := aggregate.NewAggregator(store, store.Aggregates(), provider, collector)
	return NewRunner(store, store, store.Scores(), processor, scoring.NewEngine(), gate, aggregator, provider, collector, sink)
}

func TestRunCycle_EndToEnd(t *testing.T) {
	store := memory.NewStore()
	store.SeedAccount(spikingAccount("acc-1", 0.9))
	sink := &captureSink{}
	runner := newTestRunner(store, sink)

	res, err := runner.RunCycle(context.Background(), "ws-1")
	require.NoError(t, err)

	require.NotNil(t, res.Scan)
	assert.Equal(t, 1, res.Scan.SignalsCreated, "API call spike should produce one signal")
	assert.Equal(t, 1, res.ScoredAccounts)
	assert.Zero(t, res.ScoreFailures)
	assert.Equal(t, 1, res.Opportunities)

	// Raw expansion contribution: weight 40 x fresh decay 1.0 x strong-fit 1.25.
	expansion, err := store.Scores().Get(context.Background(), "acc-1", domain.ScoreExpansion)
	require.NoError(t, err)
	require.NotNil(t, expansion)
	assert.InDelta(t, 73.1, expansion.ScoreValue, 0.1)

	health, err := store.Scores().Get(context.Background(), "acc-1", domain.ScoreHealth)
	require.NoError(t, err)
	require.NotNil(t, health)

	churn, err := store.Scores().Get(context.Background(), "acc-1", domain.ScoreChurnRisk)
	require.NoError(t, err)
	require.NotNil(t, churn)
	assert.InDelta(t, 50.0, churn.ScoreValue, 0.01, "no churn signals leaves the neutral midpoint")

	// Health score is written back onto the account record.
	acc, err := store.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.InDelta(t, health.ScoreValue, acc.HealthScore, 0.001)

	require.Len(t, sink.delivered, 1)
	summary := sink.delivered[0]
	assert.Equal(t, domain.ScoreExpansion, summary.Type)
	assert.Equal(t, []string{"usage_spike"}, summary.Signals)
	assert.InDelta(t, expansion.ScoreValue*120, summary.EstimatedValue, 0.1)
}

func TestRunCycle_SecondCycleSuppressed(t *testing.T) {
	store := memory.NewStore()
	store.SeedAccount(spikingAccount("acc-1", 0.9))
	sink := &captureSink{}
	runner := newTestRunner(store, sink)

	_, err := runner.RunCycle(context.Background(), "ws-1")
	require.NoError(t, err)

	res, err := runner.RunCycle(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Zero(t, res.Scan.SignalsCreated, "signal already exists inside the dedup window")
	assert.Zero(t, res.Opportunities, "cooldown is still held")
	assert.Len(t, sink.delivered, 1)
}

func TestRunCycle_BelowThresholdNoOpportunity(t *testing.T) {
	store := memory.NewStore()
	// A weaker fit multiplier keeps the expansion score under its threshold.
	store.SeedAccount(spikingAccount("acc-1", 0.7))
	sink := &captureSink{}
	runner := newTestRunner(store, sink)

	res, err := runner.RunCycle(context.Background(), "ws-1")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scan.SignalsCreated)
	assert.Equal(t, 1, res.ScoredAccounts)
	assert.Zero(t, res.Opportunities)
	assert.Empty(t, sink.delivered)
}

func TestRunCycle_RefreshesAggregates(t *testing.T) {
	store := memory.NewStore()
	store.SeedAccount(spikingAccount("acc-1", 0.9))
	runner := newTestRunner(store, &captureSink{})

	_, err := runner.RunCycle(context.Background(), "ws-1")
	require.NoError(t, err)

	agg, err := store.Aggregates().Get(context.Background(), "ws-1", "usage_spike")
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, 1, agg.TotalCount)
	assert.Equal(t, 1, agg.CountLast7d)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	store.SeedAccount(spikingAccount("acc-1", 0.9))
	runner := newTestRunner(store, &captureSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Start(ctx, []string{"ws-1"}) }()

	// The first pass runs immediately; cancel once it has had a moment.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	score, err := store.Scores().Get(context.Background(), "acc-1", domain.ScoreExpansion)
	require.NoError(t, err)
	assert.NotNil(t, score, "first pass should have scored the account")
}

func TestStart_NoWorkspaces(t *testing.T) {
	runner := newTestRunner(memory.NewStore(), &captureSink{})
	err := runner.Start(context.Background(), nil)
	require.Error(t, err)
}
