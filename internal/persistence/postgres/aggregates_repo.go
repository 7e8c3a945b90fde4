package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/persistence"
)

type aggregatesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAggregateStore creates a Postgres-backed signal aggregate store.
func NewAggregateStore(db *sqlx.DB, timeout time.Duration) persistence.AggregateStore {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &aggregatesRepo{db: db, timeout: timeout}
}

func (r *aggregatesRepo) Upsert(ctx context.Context, agg domain.SignalAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO signal_aggregates
			(workspace_id, signal_type, total_count, count_last_7d, count_last_30d,
			 avg_precision, avg_recall, avg_f1, avg_lift, avg_conversion_rate,
			 confidence_score, quality_grade, total_arr_influenced, avg_deal_size,
			 win_rate, avg_days_to_close, sample_size, calculation_window_days,
			 last_calculated_at)
		VALUES
			(:workspace_id, :signal_type, :total_count, :count_last_7d, :count_last_30d,
			 :avg_precision, :avg_recall, :avg_f1, :avg_lift, :avg_conversion_rate,
			 :confidence_score, :quality_grade, :total_arr_influenced, :avg_deal_size,
			 :win_rate, :avg_days_to_close, :sample_size, :calculation_window_days,
			 :last_calculated_at)
		ON CONFLICT (workspace_id, signal_type) DO UPDATE SET
			total_count = EXCLUDED.total_count,
			count_last_7d = EXCLUDED.count_last_7d,
			count_last_30d = EXCLUDED.count_last_30d,
			avg_precision = EXCLUDED.avg_precision,
			avg_recall = EXCLUDED.avg_recall,
			avg_f1 = EXCLUDED.avg_f1,
			avg_lift = EXCLUDED.avg_lift,
			avg_conversion_rate = EXCLUDED.avg_conversion_rate,
			confidence_score = EXCLUDED.confidence_score,
			quality_grade = EXCLUDED.quality_grade,
			total_arr_influenced = EXCLUDED.total_arr_influenced,
			avg_deal_size = EXCLUDED.avg_deal_size,
			win_rate = EXCLUDED.win_rate,
			avg_days_to_close = EXCLUDED.avg_days_to_close,
			sample_size = EXCLUDED.sample_size,
			calculation_window_days = EXCLUDED.calculation_window_days,
			last_calculated_at = EXCLUDED.last_calculated_at`, agg)
	if err != nil {
		return fmt.Errorf("upsert aggregate %s/%s: %w", agg.WorkspaceID, agg.SignalType, err)
	}
	return nil
}

func (r *aggregatesRepo) Get(ctx context.Context, workspaceID, signalType string) (*domain.SignalAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var agg domain.SignalAggregate
	err := r.db.GetContext(ctx, &agg, `
		SELECT workspace_id, signal_type, total_count, count_last_7d, count_last_30d,
		       avg_precision, avg_recall, avg_f1, avg_lift, avg_conversion_rate,
		       confidence_score, quality_grade, total_arr_influenced, avg_deal_size,
		       win_rate, avg_days_to_close, sample_size, calculation_window_days,
		       last_calculated_at
		FROM signal_aggregates WHERE workspace_id = $1 AND signal_type = $2`,
		workspaceID, signalType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s/%s: %w", workspaceID, signalType, err)
	}
	return &agg, nil
}

func (r *aggregatesRepo) ListOutcomes(ctx context.Context, workspaceID, signalType string, since time.Time) ([]domain.SignalOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var outcomes []domain.SignalOutcome
	err := r.db.SelectContext(ctx, &outcomes, `
		SELECT signal_id, workspace_id, signal_type, converted, won,
		       deal_size, arr_influenced, days_to_close, recorded_at
		FROM signal_outcomes
		WHERE workspace_id = $1 AND signal_type = $2 AND recorded_at >= $3
		ORDER BY recorded_at DESC`, workspaceID, signalType, since)
	if err != nil {
		return nil, fmt.Errorf("list outcomes %s/%s: %w", workspaceID, signalType, err)
	}
	return outcomes, nil
}
