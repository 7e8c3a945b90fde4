package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/persistence"
)

type accountsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAccountStore creates a Postgres-backed account store.
func NewAccountStore(db *sqlx.DB, timeout time.Duration) persistence.AccountStore {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &accountsRepo{db: db, timeout: timeout}
}

type accountRow struct {
	ID             string         `db:"id"`
	WorkspaceID    string         `db:"workspace_id"`
	Name           string         `db:"name"`
	Domain         string         `db:"domain"`
	ARR            float64        `db:"arr"`
	Plan           string         `db:"plan"`
	Status         string         `db:"status"`
	HealthScore    float64        `db:"health_score"`
	FitScore       float64        `db:"fit_score"`
	LastActivityAt sql.NullTime   `db:"last_activity_at"`
	UsageSnapshot  []byte         `db:"usage_snapshot"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r accountRow) toDomain() (domain.Account, error) {
	acc := domain.Account{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Name:        r.Name,
		Domain:      r.Domain,
		ARR:         r.ARR,
		Plan:        r.Plan,
		Status:      domain.AccountStatus(r.Status),
		HealthScore: r.HealthScore,
		FitScore:    r.FitScore,
		CreatedAt:   r.CreatedAt,
	}
	if r.LastActivityAt.Valid {
		t := r.LastActivityAt.Time
		acc.LastActivityAt = &t
	}
	if len(r.UsageSnapshot) > 0 {
		var usage domain.UsageSnapshot
		if err := json.Unmarshal(r.UsageSnapshot, &usage); err != nil {
			return acc, fmt.Errorf("decode usage snapshot for %s: %w", r.ID, err)
		}
		acc.Usage = &usage
	}
	return acc, nil
}

func (r *accountsRepo) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row accountRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, workspace_id, name, domain, arr, plan, status,
		       health_score, fit_score, last_activity_at, usage_snapshot, created_at
		FROM accounts WHERE id = $1`, accountID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}

	acc, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountsRepo) ListActiveAccounts(ctx context.Context, workspaceID string) ([]domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []accountRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, workspace_id, name, domain, arr, plan, status,
		       health_score, fit_score, last_activity_at, usage_snapshot, created_at
		FROM accounts
		WHERE workspace_id = $1 AND status IN ('active', 'trial')
		ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for workspace %s: %w", workspaceID, err)
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		acc, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func (r *accountsRepo) ListUsers(ctx context.Context, accountID string) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var users []domain.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT id, account_id, email, name, title, sessions_30d, deactivated, created_at, last_seen_at
		FROM account_users WHERE account_id = $1
		ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list users for account %s: %w", accountID, err)
	}
	return users, nil
}

func (r *accountsRepo) UpdateHealthScore(ctx context.Context, accountID string, score float64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET health_score = $1 WHERE id = $2`, score, accountID)
	if err != nil {
		return fmt.Errorf("update health score for %s: %w", accountID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s not found", accountID)
	}
	return nil
}
