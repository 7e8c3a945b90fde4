package domain

import "time"

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountChurned AccountStatus = "churned"
	AccountTrial   AccountStatus = "trial"
)

// Account is a customer account within a workspace. Billing and CRM sync
// mutate most fields; this engine only writes back HealthScore.
type Account struct {
	ID             string         `json:"id" db:"id"`
	WorkspaceID    string         `json:"workspace_id" db:"workspace_id"`
	Name           string         `json:"name" db:"name"`
	Domain         string         `json:"domain" db:"domain"`
	ARR            float64        `json:"arr" db:"arr"`
	Plan           string         `json:"plan" db:"plan"`
	Status         AccountStatus  `json:"status" db:"status"`
	HealthScore    float64        `json:"health_score" db:"health_score"`
	FitScore       float64        `json:"fit_score" db:"fit_score"` // ICP fit, 0..1
	LastActivityAt *time.Time     `json:"last_activity_at,omitempty" db:"last_activity_at"`
	Usage          *UsageSnapshot `json:"usage,omitempty" db:"-"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// UsageSnapshot carries the current and previous-window product metrics the
// detectors inspect. Populated by the analytics sync collaborator.
type UsageSnapshot struct {
	ActiveUsers30d     int        `json:"active_users_30d"`
	ActiveUsersPrev30d int        `json:"active_users_prev_30d"`
	WeeklyActiveUsers  int        `json:"weekly_active_users"`
	WeeklyActivePrev   int        `json:"weekly_active_prev"`
	SeatsUsed          int        `json:"seats_used"`
	SeatsUsedPrev      int        `json:"seats_used_prev"`
	SeatLimit          int        `json:"seat_limit"`
	APICalls30d        int64      `json:"api_calls_30d"`
	APICallsPrev30d    int64      `json:"api_calls_prev_30d"`
	FeaturesUsed30d    int        `json:"features_used_30d"`
	FeaturesUsedPrev   int        `json:"features_used_prev"`
	IntegrationsActive int        `json:"integrations_active"`
	IntegrationsPrev   int        `json:"integrations_prev"`
	OpenTickets30d     int        `json:"open_tickets_30d"`
	TicketsPrev30d     int        `json:"tickets_prev_30d"`
	NPSScore           *float64   `json:"nps_score,omitempty"`
	RenewalAt          *time.Time `json:"renewal_at,omitempty"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	PastDue            bool       `json:"past_due"`
}

// User is a member of an account's team.
type User struct {
	ID          string     `json:"id" db:"id"`
	AccountID   string     `json:"account_id" db:"account_id"`
	Email       string     `json:"email" db:"email"`
	Name        string     `json:"name" db:"name"`
	Title       string     `json:"title" db:"title"`
	Sessions30d int        `json:"sessions_30d" db:"sessions_30d"`
	Deactivated bool       `json:"deactivated" db:"deactivated"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
}
