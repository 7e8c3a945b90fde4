package domain

import "time"

// ScoreType identifies which heuristic dimension a score measures.
type ScoreType string

const (
	ScoreHealth    ScoreType = "health"
	ScoreExpansion ScoreType = "expansion"
	ScoreChurnRisk ScoreType = "churn_risk"
)

// HeuristicScore is a bounded score snapshot for one account and dimension.
// ValidUntil controls recompute cadence; a stale score is still served until
// the next cycle overwrites it.
type HeuristicScore struct {
	ID              string             `json:"id" db:"id"`
	AccountID       string             `json:"account_id" db:"account_id"`
	WorkspaceID     string             `json:"workspace_id" db:"workspace_id"`
	ScoreType       ScoreType          `json:"score_type" db:"score_type"`
	ScoreValue      float64            `json:"score_value" db:"score_value"`
	ComponentScores map[string]float64 `json:"component_scores" db:"component_scores"`
	CalculatedAt    time.Time          `json:"calculated_at" db:"calculated_at"`
	ValidUntil      time.Time          `json:"valid_until" db:"valid_until"`
}

// SignalAggregate is a periodically refreshed rollup of signal performance
// statistics per (workspace, signal type). It is a cache: readers accept
// staleness bounded by the recalculation interval.
type SignalAggregate struct {
	WorkspaceID            string    `json:"workspace_id" db:"workspace_id"`
	SignalType             string    `json:"signal_type" db:"signal_type"`
	TotalCount             int       `json:"total_count" db:"total_count"`
	CountLast7d            int       `json:"count_last_7d" db:"count_last_7d"`
	CountLast30d           int       `json:"count_last_30d" db:"count_last_30d"`
	AvgPrecision           float64   `json:"avg_precision" db:"avg_precision"`
	AvgRecall              float64   `json:"avg_recall" db:"avg_recall"`
	AvgF1                  float64   `json:"avg_f1" db:"avg_f1"`
	AvgLift                float64   `json:"avg_lift" db:"avg_lift"`
	AvgConversionRate      float64   `json:"avg_conversion_rate" db:"avg_conversion_rate"`
	ConfidenceScore        float64   `json:"confidence_score" db:"confidence_score"`
	QualityGrade           string    `json:"quality_grade" db:"quality_grade"`
	TotalARRInfluenced     float64   `json:"total_arr_influenced" db:"total_arr_influenced"`
	AvgDealSize            float64   `json:"avg_deal_size" db:"avg_deal_size"`
	WinRate                float64   `json:"win_rate" db:"win_rate"`
	AvgDaysToClose         float64   `json:"avg_days_to_close" db:"avg_days_to_close"`
	SampleSize             int       `json:"sample_size" db:"sample_size"`
	CalculationWindowDays  int       `json:"calculation_window_days" db:"calculation_window_days"`
	LastCalculatedAt       time.Time `json:"last_calculated_at" db:"last_calculated_at"`
}

// OpportunitySummary is a transient, derived value handed to the
// notification/CRM layer when a score crosses its threshold. Never persisted
// by this engine.
type OpportunitySummary struct {
	Type            ScoreType `json:"type"`
	AccountID       string    `json:"account_id"`
	WorkspaceID     string    `json:"workspace_id"`
	AccountName     string    `json:"account_name"`
	Score           float64   `json:"score"`
	GradeDisplay    string    `json:"grade_display"`
	Signals         []string  `json:"signals"`
	EstimatedValue  float64   `json:"estimated_value"`
	Recommendation  string    `json:"recommendation"`
	GeneratedAt     time.Time `json:"generated_at"`
}
