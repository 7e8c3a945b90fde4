// Package memory provides in-memory store implementations, used by tests
// and by dry-run CLI invocations that have no database behind them.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/persistence"
)

// Store implements every persistence interface in memory. Safe for
// concurrent use.
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]*domain.Account
	users      map[string][]domain.User
	signals    []domain.Signal
	scores     map[string]domain.HeuristicScore
	aggregates map[string]domain.SignalAggregate
	outcomes   []domain.SignalOutcome
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:   map[string]*domain.Account{},
		users:      map[string][]domain.User{},
		scores:     map[string]domain.HeuristicScore{},
		aggregates: map[string]domain.SignalAggregate{},
	}
}

// SeedAccount adds an account and its users.
func (s *Store) SeedAccount(account domain.Account, users ...domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = &account
	s.users[account.ID] = append(s.users[account.ID], users...)
}

// SeedOutcome records a signal outcome.
func (s *Store) SeedOutcome(outcome domain.SignalOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	copied := *account
	return &copied, nil
}

func (s *Store) ListActiveAccounts(_ context.Context, workspaceID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Account
	for _, account := range s.accounts {
		if account.WorkspaceID == workspaceID && account.Status != domain.AccountChurned {
			out = append(out, *account)
		}
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context, accountID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.User(nil), s.users[accountID]...), nil
}

func (s *Store) UpdateHealthScore(_ context.Context, accountID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s not found", accountID)
	}
	account.HealthScore = score
	return nil
}

func (s *Store) CreateIfAbsent(_ context.Context, sig domain.Signal, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.signals {
		if existing.AccountID == sig.AccountID && existing.Type == sig.Type && !existing.Timestamp.Before(since) {
			return false, nil
		}
	}
	s.signals = append(s.signals, sig)
	return true, nil
}

func (s *Store) Exists(_ context.Context, accountID, signalType string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sig := range s.signals {
		if sig.AccountID == accountID && sig.Type == signalType && !sig.Timestamp.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListByAccountSince(_ context.Context, accountID string, since time.Time) ([]domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.AccountID == accountID && !sig.Timestamp.Before(since) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *Store) ListByTypeSince(_ context.Context, workspaceID, signalType string, since time.Time) ([]domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Signal
	for _, sig := range s.signals {
		if sig.WorkspaceID == workspaceID && sig.Type == signalType && !sig.Timestamp.Before(since) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *Store) CountSince(ctx context.Context, workspaceID, signalType string, since time.Time) (int, error) {
	signals, err := s.ListByTypeSince(ctx, workspaceID, signalType, since)
	if err != nil {
		return 0, err
	}
	return len(signals), nil
}

func scoreKey(accountID string, scoreType domain.ScoreType) string {
	return accountID + "/" + string(scoreType)
}

func aggregateKey(workspaceID, signalType string) string {
	return workspaceID + "/" + signalType
}

// Scores exposes the store's ScoreStore view. The wrapper exists because the
// score and aggregate contracts share method names.
func (s *Store) Scores() persistence.ScoreStore { return scoreView{s} }

// Aggregates exposes the store's AggregateStore view.
func (s *Store) Aggregates() persistence.AggregateStore { return aggregateView{s} }

type scoreView struct{ s *Store }

func (v scoreView) Upsert(_ context.Context, score domain.HeuristicScore) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.scores[scoreKey(score.AccountID, score.ScoreType)] = score
	return nil
}

func (v scoreView) Get(_ context.Context, accountID string, scoreType domain.ScoreType) (*domain.HeuristicScore, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if score, ok := v.s.scores[scoreKey(accountID, scoreType)]; ok {
		return &score, nil
	}
	return nil, nil
}

type aggregateView struct{ s *Store }

func (v aggregateView) Upsert(_ context.Context, agg domain.SignalAggregate) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.aggregates[aggregateKey(agg.WorkspaceID, agg.SignalType)] = agg
	return nil
}

func (v aggregateView) Get(_ context.Context, workspaceID, signalType string) (*domain.SignalAggregate, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	if agg, ok := v.s.aggregates[aggregateKey(workspaceID, signalType)]; ok {
		return &agg, nil
	}
	return nil, nil
}

func (v aggregateView) ListOutcomes(_ context.Context, workspaceID, signalType string, since time.Time) ([]domain.SignalOutcome, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []domain.SignalOutcome
	for _, o := range v.s.outcomes {
		if o.WorkspaceID == workspaceID && o.SignalType == signalType && !o.RecordedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}
