package config

import (
	"fmt"

	"github.com/getbeton/accountpulse/internal/domain"
)

// ScoringConfig holds all workspace-scoped tunables for signal detection,
// scoring and opportunity generation. It is immutable at evaluation time and
// passed explicitly to every function that needs it.
type ScoringConfig struct {
	ScaleMin float64 `yaml:"scale_min"`
	ScaleMax float64 `yaml:"scale_max"`

	// RecencyDecayDays is the half-life of a signal's influence.
	RecencyDecayDays float64 `yaml:"recency_decay_days"`

	FitMultipliers        FitMultipliers        `yaml:"fit_multipliers"`
	Thresholds            Thresholds            `yaml:"thresholds"`
	SignalProcessing      SignalProcessing      `yaml:"signal_processing"`
	OpportunityGeneration OpportunityGeneration `yaml:"opportunity_generation"`

	// Signals maps signal type to its weight, category and description.
	Signals map[string]SignalConfig `yaml:"signals"`
}

// FitMultipliers weight a signal by how closely the account matches the
// ideal customer profile.
type FitMultipliers struct {
	ICPMatch float64 `yaml:"icp_match"` // fit >= 0.8
	NearICP  float64 `yaml:"near_icp"`  // 0.5 <= fit < 0.8
	PoorFit  float64 `yaml:"poor_fit"`  // fit < 0.5
}

// Thresholds gate opportunity emission per score dimension.
type Thresholds struct {
	Expansion float64 `yaml:"expansion_threshold"`
	ChurnRisk float64 `yaml:"churn_risk_threshold"`
}

// SignalProcessing controls detection windows and recompute cadence.
type SignalProcessing struct {
	MaxSignalAgeDays            int `yaml:"max_signal_age_days"`
	RecalculationFrequencyHours int `yaml:"recalculation_frequency_hours"`
}

// OpportunityGeneration controls the opportunity gate.
type OpportunityGeneration struct {
	CooldownDays             int     `yaml:"cooldown_days"`
	ExpansionValueMultiplier float64 `yaml:"expansion_value_multiplier"`
	ChurnRiskValueMultiplier float64 `yaml:"churn_risk_value_multiplier"`
	BaselineConversionRate   float64 `yaml:"baseline_conversion_rate"`
}

// SignalConfig is the per-signal-type weight and category.
type SignalConfig struct {
	Weight      float64               `yaml:"weight"`
	Category    domain.SignalCategory `yaml:"category"`
	Description string                `yaml:"description"`
}

// Validate rejects configs that would produce undefined scores. A zero or
// negative decay window divides by zero inside the decay curve, so it is
// refused at load time rather than propagated as NaN.
func (c *ScoringConfig) Validate() error {
	if c.RecencyDecayDays <= 0 {
		return fmt.Errorf("recency_decay_days must be positive, got %v", c.RecencyDecayDays)
	}
	if c.ScaleMax <= c.ScaleMin {
		return fmt.Errorf("scale_max (%v) must exceed scale_min (%v)", c.ScaleMax, c.ScaleMin)
	}
	if c.Thresholds.Expansion < c.ScaleMin || c.Thresholds.Expansion > c.ScaleMax {
		return fmt.Errorf("expansion_threshold %v outside scale [%v, %v]",
			c.Thresholds.Expansion, c.ScaleMin, c.ScaleMax)
	}
	if c.Thresholds.ChurnRisk < c.ScaleMin || c.Thresholds.ChurnRisk > c.ScaleMax {
		return fmt.Errorf("churn_risk_threshold %v outside scale [%v, %v]",
			c.Thresholds.ChurnRisk, c.ScaleMin, c.ScaleMax)
	}
	if c.SignalProcessing.MaxSignalAgeDays <= 0 {
		return fmt.Errorf("max_signal_age_days must be positive, got %d", c.SignalProcessing.MaxSignalAgeDays)
	}
	if c.SignalProcessing.RecalculationFrequencyHours <= 0 {
		return fmt.Errorf("recalculation_frequency_hours must be positive, got %d",
			c.SignalProcessing.RecalculationFrequencyHours)
	}
	for name, sc := range c.Signals {
		switch sc.Category {
		case domain.CategoryExpansion, domain.CategoryChurnRisk, domain.CategoryHealth, domain.CategoryNeutral:
		default:
			return fmt.Errorf("signal %q has unknown category %q", name, sc.Category)
		}
	}
	return nil
}

// SignalWeight returns the configured weight for a signal type, or zero for
// unknown types (unknown signals contribute nothing to scores).
func (c *ScoringConfig) SignalWeight(signalType string) float64 {
	if sc, ok := c.Signals[signalType]; ok {
		return sc.Weight
	}
	return 0
}

// SignalCategory returns the configured category for a signal type.
func (c *ScoringConfig) SignalCategory(signalType string) domain.SignalCategory {
	if sc, ok := c.Signals[signalType]; ok {
		return sc.Category
	}
	return domain.CategoryNeutral
}

// DefaultScoringConfig returns the built-in production configuration, used
// when a workspace has no override and as the fallback in tests.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		ScaleMin:         0.0,
		ScaleMax:         100.0,
		RecencyDecayDays: 30.0,

		FitMultipliers: FitMultipliers{
			ICPMatch: 1.25,
			NearICP:  1.0,
			PoorFit:  0.6,
		},

		Thresholds: Thresholds{
			Expansion: 70.0,
			ChurnRisk: 65.0,
		},

		SignalProcessing: SignalProcessing{
			MaxSignalAgeDays:            90,
			RecalculationFrequencyHours: 6,
		},

		OpportunityGeneration: OpportunityGeneration{
			CooldownDays:             14,
			ExpansionValueMultiplier: 120.0,
			ChurnRiskValueMultiplier: 80.0,
			BaselineConversionRate:   0.10,
		},

		Signals: map[string]SignalConfig{
			// Expansion
			"usage_spike":             {Weight: 40, Category: domain.CategoryExpansion, Description: "API usage jumped sharply versus the prior window"},
			"seat_limit_approach":     {Weight: 45, Category: domain.CategoryExpansion, Description: "Seat utilization is approaching the plan limit"},
			"director_level_signup":   {Weight: 50, Category: domain.CategoryExpansion, Description: "A director-level or above user joined the account"},
			"feature_adoption":        {Weight: 30, Category: domain.CategoryExpansion, Description: "Breadth of features in use grew materially"},
			"active_user_growth":      {Weight: 30, Category: domain.CategoryExpansion, Description: "Monthly active users grew steadily"},
			"trial_conversion_window": {Weight: 35, Category: domain.CategoryExpansion, Description: "Engaged trial approaching its end date"},
			"nps_promoter":            {Weight: 25, Category: domain.CategoryExpansion, Description: "Account NPS is in promoter territory"},
			"team_growth":             {Weight: 30, Category: domain.CategoryExpansion, Description: "Several new users were added this window"},
			"integration_added":       {Weight: 25, Category: domain.CategoryExpansion, Description: "A new integration was connected"},
			"weekly_active_growth":    {Weight: 25, Category: domain.CategoryExpansion, Description: "Weekly active users trending up"},
			"renewal_upsell_window":   {Weight: 35, Category: domain.CategoryExpansion, Description: "Healthy account approaching renewal"},
			"power_user_emergence":    {Weight: 25, Category: domain.CategoryExpansion, Description: "A heavy-usage power user emerged"},

			// Churn risk
			"usage_drop":           {Weight: 45, Category: domain.CategoryChurnRisk, Description: "API usage fell sharply versus the prior window"},
			"account_inactivity":   {Weight: 50, Category: domain.CategoryChurnRisk, Description: "No account activity for an extended period"},
			"nps_detractor":        {Weight: 35, Category: domain.CategoryChurnRisk, Description: "Account NPS is in detractor territory"},
			"seat_contraction":     {Weight: 40, Category: domain.CategoryChurnRisk, Description: "Seats in use shrank versus the prior window"},
			"champion_departure":   {Weight: 45, Category: domain.CategoryChurnRisk, Description: "A director-level champion went dark or was deactivated"},
			"renewal_at_risk":      {Weight: 40, Category: domain.CategoryChurnRisk, Description: "Unhealthy account approaching renewal"},
			"support_ticket_spike": {Weight: 30, Category: domain.CategoryChurnRisk, Description: "Support ticket volume spiked"},
			"payment_past_due":     {Weight: 35, Category: domain.CategoryChurnRisk, Description: "Account has a past-due balance"},
		},
	}
}
