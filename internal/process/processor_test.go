package process

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
)

// fakeAccountStore serves accounts and users from memory.
type fakeAccountStore struct {
	mu       sync.Mutex
	accounts []domain.Account
	users    map[string][]domain.User
	listErr  error
	usersErr map[string]error
	health   map[string]float64
}

func newFakeAccountStore(accounts ...domain.Account) *fakeAccountStore {
	return &fakeAccountStore{
		accounts: accounts,
		users:    map[string][]domain.User{},
		usersErr: map[string]error{},
		health:   map[string]float64{},
	}
}

func (s *fakeAccountStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account %s not found", id)
}

func (s *fakeAccountStore) ListActiveAccounts(_ context.Context, _ string) ([]domain.Account, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.accounts, nil
}

func (s *fakeAccountStore) ListUsers(_ context.Context, accountID string) ([]domain.User, error) {
	if err := s.usersErr[accountID]; err != nil {
		return nil, err
	}
	return s.users[accountID], nil
}

func (s *fakeAccountStore) UpdateHealthScore(_ context.Context, accountID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[accountID] = score
	return nil
}

// fakeSignalStore implements window dedup in memory.
type fakeSignalStore struct {
	mu      sync.Mutex
	signals []domain.Signal
	failAll bool
}

func (s *fakeSignalStore) CreateIfAbsent(_ context.Context, sig domain.Signal, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return false, errors.New("store unavailable")
	}
	for _, existing := range s.signals {
		if existing.AccountID == sig.AccountID && existing.Type == sig.Type && !existing.Timestamp.Before(since) {
			return false, nil
		}
	}
	s.signals = append(s.signals, sig)
	return true, nil
}

func (s *fakeSignalStore) Exists(_ context.Context, accountID, signalType string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.signals {
		if existing.AccountID == accountID && existing.Type == signalType && !existing.Timestamp.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSignalStore) ListByAccountSince(_ context.Context, accountID string, since time.Time) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.AccountID == accountID && !sig.Timestamp.Before(since) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *fakeSignalStore) ListByTypeSince(_ context.Context, workspaceID, signalType string, since time.Time) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.WorkspaceID == workspaceID && sig.Type == signalType && !sig.Timestamp.Before(since) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *fakeSignalStore) CountSince(ctx context.Context, workspaceID, signalType string, since time.Time) (int, error) {
	sigs, _ := s.ListByTypeSince(ctx, workspaceID, signalType, since)
	return len(sigs), nil
}

func (s *fakeSignalStore) byType(signalType string) []domain.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.Type == signalType {
			out = append(out, sig)
		}
	}
	return out
}

func fireDetector(name string, cat domain.SignalCategory) detect.Detector {
	return detect.Detector{
		Name:     name,
		Category: cat,
		Detect: func(_ *detect.Context) (*detect.Candidate, error) {
			return &detect.Candidate{Type: name}, nil
		},
	}
}

func newTestProcessor(accounts *fakeAccountStore, signals *fakeSignalStore, registry *detect.Registry) *Processor {
	provider := config.NewStaticProvider(config.DefaultScoringConfig())
	return NewProcessor(accounts, signals, provider, registry, metrics.NewNopCollector())
}

func account(id string) domain.Account {
	return domain.Account{
		ID:          id,
		WorkspaceID: "ws-1",
		Name:        id,
		Status:      domain.AccountActive,
		FitScore:    0.7,
		Usage: &domain.UsageSnapshot{
			APICallsPrev30d: 1000,
			APICalls30d:     2500,
		},
	}
}

func TestProcessAccount_CreatesSignals(t *testing.T) {
	acc := account("acc-1")
	p := newTestProcessor(newFakeAccountStore(acc), &fakeSignalStore{}, detect.NewRegistry())

	res, err := p.ProcessAccount(context.Background(), &acc, Options{})
	require.NoError(t, err)

	require.Len(t, res.Created, 1, "only usage_spike should fire for this snapshot")
	assert.Equal(t, "usage_spike", res.Created[0].Type)
	assert.Equal(t, "usage_spike", res.Created[0].Source)
	assert.Equal(t, "ws-1", res.Created[0].WorkspaceID)
	assert.NotEmpty(t, res.Created[0].ID)
	assert.Empty(t, res.Failed)
}

func TestProcessAccount_DedupWithinWindow(t *testing.T) {
	acc := account("acc-1")
	signals := &fakeSignalStore{}
	p := newTestProcessor(newFakeAccountStore(acc), signals, detect.NewRegistry())

	first, err := p.ProcessAccount(context.Background(), &acc, Options{})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	second, err := p.ProcessAccount(context.Background(), &acc, Options{})
	require.NoError(t, err)

	assert.Empty(t, second.Created, "second run inside the window must create nothing")
	assert.Contains(t, second.Skipped, "usage_spike")
	assert.Len(t, signals.byType("usage_spike"), 1, "exactly one persisted signal per window")
}

func TestProcessAccount_CategoryFilter(t *testing.T) {
	acc := account("acc-1")
	acc.Usage.APICalls30d = 100 // usage drop instead of spike
	p := newTestProcessor(newFakeAccountStore(acc), &fakeSignalStore{}, detect.NewRegistry())

	res, err := p.ProcessAccount(context.Background(), &acc, Options{Category: domain.CategoryExpansion})
	require.NoError(t, err)
	assert.Empty(t, res.Created, "expansion-only run must not emit churn signals")

	res, err = p.ProcessAccount(context.Background(), &acc, Options{Category: domain.CategoryChurnRisk})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "usage_drop", res.Created[0].Type)
}

func TestProcessAccount_DetectorErrorIsolated(t *testing.T) {
	registry := detect.NewRegistryWith(
		detect.Detector{
			Name:     "broken",
			Category: domain.CategoryExpansion,
			Detect: func(_ *detect.Context) (*detect.Candidate, error) {
				return nil, errors.New("no data feed")
			},
		},
		fireDetector("healthy", domain.CategoryExpansion),
	)
	acc := account("acc-1")
	p := newTestProcessor(newFakeAccountStore(acc), &fakeSignalStore{}, registry)

	res, err := p.ProcessAccount(context.Background(), &acc, Options{})
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken", res.Failed[0].Detector)
	require.Len(t, res.Created, 1, "sibling detector must still commit")
	assert.Equal(t, "healthy", res.Created[0].Type)
}

func TestProcessAccount_DetectorPanicRecovered(t *testing.T) {
	registry := detect.NewRegistryWith(
		detect.Detector{
			Name:     "panicky",
			Category: domain.CategoryExpansion,
			Detect: func(_ *detect.Context) (*detect.Candidate, error) {
				panic("nil map write")
			},
		},
		fireDetector("healthy", domain.CategoryExpansion),
	)
	acc := account("acc-1")
	p := newTestProcessor(newFakeAccountStore(acc), &fakeSignalStore{}, registry)

	res, err := p.ProcessAccount(context.Background(), &acc, Options{})
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Error, "panicked")
	assert.Len(t, res.Created, 1)
}

func TestProcessAccount_SourceOverride(t *testing.T) {
	acc := account("acc-1")
	p := newTestProcessor(newFakeAccountStore(acc), &fakeSignalStore{}, detect.NewRegistry())

	res, err := p.ProcessAccount(context.Background(), &acc, Options{Source: "manual"})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "manual", res.Created[0].Source)
}

func TestProcessWorkspace_AccountFailureDoesNotAbortBatch(t *testing.T) {
	accounts := newFakeAccountStore(account("acc-1"), account("acc-2"), account("acc-3"))
	accounts.usersErr["acc-2"] = errors.New("users table timeout")
	signals := &fakeSignalStore{}
	p := newTestProcessor(accounts, signals, detect.NewRegistry())

	res, err := p.ProcessWorkspace(context.Background(), "ws-1", Options{})
	require.NoError(t, err, "per-account failures must not surface as batch errors")

	assert.Equal(t, 3, res.AccountsTotal)
	assert.Equal(t, 2, res.SignalsCreated, "the two healthy accounts still commit")
	require.Len(t, res.FailedAccounts, 1)
	assert.Contains(t, res.FailedAccounts["acc-2"], "users table timeout")
}

func TestProcessWorkspace_ListFailureIsBatchError(t *testing.T) {
	accounts := newFakeAccountStore()
	accounts.listErr = errors.New("connection refused")
	p := newTestProcessor(accounts, &fakeSignalStore{}, detect.NewRegistry())

	_, err := p.ProcessWorkspace(context.Background(), "ws-1", Options{})
	assert.Error(t, err)
}

func TestProcessWorkspace_ConcurrentRunsRespectDedup(t *testing.T) {
	acc := account("acc-1")
	accounts := newFakeAccountStore(acc)
	signals := &fakeSignalStore{}
	p := newTestProcessor(accounts, signals, detect.NewRegistry())

	// A manual trigger racing a scheduled run over the same account.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ProcessWorkspace(context.Background(), "ws-1", Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, signals.byType("usage_spike"), 1,
		"conditional insert must admit exactly one signal per (account, type, window)")
}

func TestDetectorSummary(t *testing.T) {
	p := newTestProcessor(newFakeAccountStore(), &fakeSignalStore{}, detect.NewRegistry())

	summary := p.DetectorSummary()
	assert.Len(t, summary, 20)
}
