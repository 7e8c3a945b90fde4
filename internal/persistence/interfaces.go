// Package persistence defines the store contracts the engine consumes. The
// postgres subpackage implements them; tests use in-memory fakes.
package persistence

import (
	"context"
	"time"

	"github.com/getbeton/accountpulse/internal/domain"
)

// AccountStore reads accounts and their users, and accepts the single
// write-back this engine performs: the health score.
type AccountStore interface {
	// GetAccount retrieves one account with its usage snapshot.
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// ListActiveAccounts returns the non-churned accounts in a workspace.
	ListActiveAccounts(ctx context.Context, workspaceID string) ([]domain.Account, error)

	// ListUsers returns an account's users, including deactivated ones.
	ListUsers(ctx context.Context, accountID string) ([]domain.User, error)

	// UpdateHealthScore writes the recomputed health score back.
	UpdateHealthScore(ctx context.Context, accountID string, score float64) error
}

// SignalStore persists detector output. Signals are append-only.
type SignalStore interface {
	// CreateIfAbsent inserts the signal unless a live signal of the same
	// (account, type) exists at or after since. The check and insert are a
	// single atomic statement; false means the candidate was discarded.
	CreateIfAbsent(ctx context.Context, sig domain.Signal, since time.Time) (bool, error)

	// Exists reports whether a signal of the given type exists for the
	// account at or after since.
	Exists(ctx context.Context, accountID, signalType string, since time.Time) (bool, error)

	// ListByAccountSince returns an account's signals at or after since,
	// newest first.
	ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]domain.Signal, error)

	// ListByTypeSince returns a workspace's signals of one type at or after
	// since, newest first.
	ListByTypeSince(ctx context.Context, workspaceID, signalType string, since time.Time) ([]domain.Signal, error)

	// CountSince counts a workspace's signals of one type at or after since.
	CountSince(ctx context.Context, workspaceID, signalType string, since time.Time) (int, error)
}

// ScoreStore holds the latest heuristic score snapshot per (account, type).
type ScoreStore interface {
	// Upsert overwrites the snapshot for (account, score type).
	Upsert(ctx context.Context, score domain.HeuristicScore) error

	// Get returns the latest snapshot, or nil when none was computed yet.
	Get(ctx context.Context, accountID string, scoreType domain.ScoreType) (*domain.HeuristicScore, error)
}

// AggregateStore holds the periodically refreshed signal rollups and the
// outcome records they are computed from.
type AggregateStore interface {
	// Upsert overwrites the rollup for (workspace, signal type).
	Upsert(ctx context.Context, agg domain.SignalAggregate) error

	// Get returns the last computed rollup, or nil when none exists.
	Get(ctx context.Context, workspaceID, signalType string) (*domain.SignalAggregate, error)

	// ListOutcomes returns the outcome records for a workspace and signal
	// type recorded at or after since.
	ListOutcomes(ctx context.Context, workspaceID, signalType string, since time.Time) ([]domain.SignalOutcome, error)
}
