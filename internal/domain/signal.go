package domain

import "time"

// SignalCategory classifies what a signal type says about an account.
type SignalCategory string

const (
	CategoryExpansion SignalCategory = "expansion"
	CategoryChurnRisk SignalCategory = "churn_risk"
	CategoryHealth    SignalCategory = "health"
	CategoryNeutral   SignalCategory = "neutral"
)

// Signal is a timestamped, typed observation about an account emitted by a
// detector. Signals are immutable once created; newer signals of the same
// type supersede older ones rather than updating them.
type Signal struct {
	ID          string        `json:"id" db:"id"`
	AccountID   string        `json:"account_id" db:"account_id"`
	WorkspaceID string        `json:"workspace_id" db:"workspace_id"`
	Type        string        `json:"type" db:"type"`
	Value       *float64      `json:"value,omitempty" db:"value"`
	Details     SignalDetails `json:"details" db:"details"`
	Timestamp   time.Time     `json:"timestamp" db:"timestamp"`
	Source      string        `json:"source" db:"source"` // detector name, "manual" or "api"
}

// SignalDetails is the detector-specific payload. Common fields are typed;
// Extra holds anything a future detector needs without a schema change.
type SignalDetails struct {
	Metric    string         `json:"metric,omitempty"`
	Previous  float64        `json:"previous,omitempty"`
	Current   float64        `json:"current,omitempty"`
	ChangePct float64        `json:"change_pct,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	UserTitle string         `json:"user_title,omitempty"`
	DaysUntil int            `json:"days_until,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// SignalOutcome records what happened downstream of a signal: whether it led
// to an opportunity, whether that opportunity was won, and at what value.
// Written by the CRM sync collaborator, read by the aggregator.
type SignalOutcome struct {
	SignalID      string    `json:"signal_id" db:"signal_id"`
	WorkspaceID   string    `json:"workspace_id" db:"workspace_id"`
	SignalType    string    `json:"signal_type" db:"signal_type"`
	Converted     bool      `json:"converted" db:"converted"`
	Won           bool      `json:"won" db:"won"`
	DealSize      float64   `json:"deal_size" db:"deal_size"`
	ARRInfluenced float64   `json:"arr_influenced" db:"arr_influenced"`
	DaysToClose   int       `json:"days_to_close" db:"days_to_close"`
	RecordedAt    time.Time `json:"recorded_at" db:"recorded_at"`
}
