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

type scoresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoreStore creates a Postgres-backed heuristic score store.
func NewScoreStore(db *sqlx.DB, timeout time.Duration) persistence.ScoreStore {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &scoresRepo{db: db, timeout: timeout}
}

func (r *scoresRepo) Upsert(ctx context.Context, score domain.HeuristicScore) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	components, err := json.Marshal(score.ComponentScores)
	if err != nil {
		return fmt.Errorf("marshal component scores: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO heuristic_scores
			(id, account_id, workspace_id, score_type, score_value, component_scores, calculated_at, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id, score_type) DO UPDATE SET
			id = EXCLUDED.id,
			score_value = EXCLUDED.score_value,
			component_scores = EXCLUDED.component_scores,
			calculated_at = EXCLUDED.calculated_at,
			valid_until = EXCLUDED.valid_until`,
		score.ID, score.AccountID, score.WorkspaceID, score.ScoreType,
		score.ScoreValue, components, score.CalculatedAt, score.ValidUntil)
	if err != nil {
		return fmt.Errorf("upsert %s score for %s: %w", score.ScoreType, score.AccountID, err)
	}
	return nil
}

func (r *scoresRepo) Get(ctx context.Context, accountID string, scoreType domain.ScoreType) (*domain.HeuristicScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		ID              string    `db:"id"`
		AccountID       string    `db:"account_id"`
		WorkspaceID     string    `db:"workspace_id"`
		ScoreType       string    `db:"score_type"`
		ScoreValue      float64   `db:"score_value"`
		ComponentScores []byte    `db:"component_scores"`
		CalculatedAt    time.Time `db:"calculated_at"`
		ValidUntil      time.Time `db:"valid_until"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT id, account_id, workspace_id, score_type, score_value,
		       component_scores, calculated_at, valid_until
		FROM heuristic_scores WHERE account_id = $1 AND score_type = $2`,
		accountID, scoreType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s score for %s: %w", scoreType, accountID, err)
	}

	score := domain.HeuristicScore{
		ID:           row.ID,
		AccountID:    row.AccountID,
		WorkspaceID:  row.WorkspaceID,
		ScoreType:    domain.ScoreType(row.ScoreType),
		ScoreValue:   row.ScoreValue,
		CalculatedAt: row.CalculatedAt,
		ValidUntil:   row.ValidUntil,
	}
	if len(row.ComponentScores) > 0 {
		if err := json.Unmarshal(row.ComponentScores, &score.ComponentScores); err != nil {
			return nil, fmt.Errorf("decode component scores for %s: %w", accountID, err)
		}
	}
	return &score, nil
}
