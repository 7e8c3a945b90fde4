package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/persistence"
)

type signalsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalStore creates a Postgres-backed signal store.
func NewSignalStore(db *sqlx.DB, timeout time.Duration) persistence.SignalStore {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &signalsRepo{db: db, timeout: timeout}
}

type signalRow struct {
	ID          string          `db:"id"`
	AccountID   string          `db:"account_id"`
	WorkspaceID string          `db:"workspace_id"`
	Type        string          `db:"type"`
	Value       sql.NullFloat64 `db:"value"`
	Details     []byte          `db:"details"`
	Timestamp   time.Time       `db:"ts"`
	Source      string          `db:"source"`
}

func (r signalRow) toDomain() (domain.Signal, error) {
	sig := domain.Signal{
		ID:          r.ID,
		AccountID:   r.AccountID,
		WorkspaceID: r.WorkspaceID,
		Type:        r.Type,
		Timestamp:   r.Timestamp,
		Source:      r.Source,
	}
	if r.Value.Valid {
		v := r.Value.Float64
		sig.Value = &v
	}
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &sig.Details); err != nil {
			return sig, fmt.Errorf("decode details for signal %s: %w", r.ID, err)
		}
	}
	return sig, nil
}

// CreateIfAbsent performs the dedup check and insert as one statement so two
// overlapping processor runs cannot both insert within the same window.
func (r *signalsRepo) CreateIfAbsent(ctx context.Context, sig domain.Signal, since time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	details, err := json.Marshal(sig.Details)
	if err != nil {
		return false, fmt.Errorf("marshal details: %w", err)
	}

	var value any
	if sig.Value != nil {
		value = *sig.Value
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO signals (id, account_id, workspace_id, type, value, details, ts, source)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM signals
			WHERE account_id = $2 AND type = $4 AND ts >= $9
		)`,
		sig.ID, sig.AccountID, sig.WorkspaceID, sig.Type, value, details, sig.Timestamp, sig.Source, since)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Lost the race against a concurrent run; same outcome as the
			// NOT EXISTS guard.
			return false, nil
		}
		return false, fmt.Errorf("insert signal %s/%s: %w", sig.AccountID, sig.Type, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert signal %s/%s: %w", sig.AccountID, sig.Type, err)
	}
	return n > 0, nil
}

func (r *signalsRepo) Exists(ctx context.Context, accountID, signalType string, since time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM signals WHERE account_id = $1 AND type = $2 AND ts >= $3
		)`, accountID, signalType, since)
	if err != nil {
		return false, fmt.Errorf("check signal existence %s/%s: %w", accountID, signalType, err)
	}
	return exists, nil
}

func (r *signalsRepo) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]domain.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []signalRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, workspace_id, type, value, details, ts, source
		FROM signals WHERE account_id = $1 AND ts >= $2
		ORDER BY ts DESC`, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("list signals for account %s: %w", accountID, err)
	}
	return rowsToSignals(rows)
}

func (r *signalsRepo) ListByTypeSince(ctx context.Context, workspaceID, signalType string, since time.Time) ([]domain.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []signalRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, workspace_id, type, value, details, ts, source
		FROM signals WHERE workspace_id = $1 AND type = $2 AND ts >= $3
		ORDER BY ts DESC`, workspaceID, signalType, since)
	if err != nil {
		return nil, fmt.Errorf("list %s signals for workspace %s: %w", signalType, workspaceID, err)
	}
	return rowsToSignals(rows)
}

func (r *signalsRepo) CountSince(ctx context.Context, workspaceID, signalType string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM signals
		WHERE workspace_id = $1 AND type = $2 AND ts >= $3`,
		workspaceID, signalType, since)
	if err != nil {
		return 0, fmt.Errorf("count %s signals for workspace %s: %w", signalType, workspaceID, err)
	}
	return count, nil
}

func rowsToSignals(rows []signalRow) ([]domain.Signal, error) {
	signals := make([]domain.Signal, 0, len(rows))
	for _, row := range rows {
		sig, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
