package detect

import (
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/scoring"
)

// Detection thresholds below are business policy, not shared contract. They
// are deliberately unexported; tuning happens here, not in config.
const (
	usageSpikeMinChange      = 0.5
	seatLimitApproachRatio   = 0.8
	featureAdoptionMinChange = 0.3
	activeUserMinGrowth      = 0.25
	weeklyActiveMinGrowth    = 0.2
	trialWindowDays          = 14
	trialMinActiveUsers      = 3
	teamGrowthMinNewUsers    = 5
	renewalUpsellWindowDays  = 45
	renewalUpsellMinHealth   = 70.0
	powerUserMinSessions     = 40
	npsPromoterFloor         = 9.0
)

func expansionDetectors() []Detector {
	return []Detector{
		{
			Name:        "usage_spike",
			Category:    domain.CategoryExpansion,
			Description: "API call volume jumped at least 50% over the prior 30-day window",
			Detect:      detectUsageSpike,
		},
		{
			Name:        "seat_limit_approach",
			Category:    domain.CategoryExpansion,
			Description: "Seat utilization reached 80% of the plan limit",
			Detect:      detectSeatLimitApproach,
		},
		{
			Name:        "director_level_signup",
			Category:    domain.CategoryExpansion,
			Description: "A director-level or above user joined during the detection window",
			Detect:      detectDirectorSignup,
		},
		{
			Name:        "feature_adoption",
			Category:    domain.CategoryExpansion,
			Description: "Breadth of features in use grew at least 30%",
			Detect:      detectFeatureAdoption,
		},
		{
			Name:        "active_user_growth",
			Category:    domain.CategoryExpansion,
			Description: "Monthly active users grew at least 25%",
			Detect:      detectActiveUserGrowth,
		},
		{
			Name:        "trial_conversion_window",
			Category:    domain.CategoryExpansion,
			Description: "Engaged trial ending within two weeks",
			Detect:      detectTrialConversionWindow,
		},
		{
			Name:        "nps_promoter",
			Category:    domain.CategoryExpansion,
			Description: "Latest NPS response is 9 or above",
			Detect:      detectNPSPromoter,
		},
		{
			Name:        "team_growth",
			Category:    domain.CategoryExpansion,
			Description: "Five or more users joined during the detection window",
			Detect:      detectTeamGrowth,
		},
		{
			Name:        "integration_added",
			Category:    domain.CategoryExpansion,
			Description: "A new integration was connected since the prior window",
			Detect:      detectIntegrationAdded,
		},
		{
			Name:        "weekly_active_growth",
			Category:    domain.CategoryExpansion,
			Description: "Weekly active users grew at least 20%",
			Detect:      detectWeeklyActiveGrowth,
		},
		{
			Name:        "renewal_upsell_window",
			Category:    domain.CategoryExpansion,
			Description: "Healthy account with renewal inside 45 days",
			Detect:      detectRenewalUpsellWindow,
		},
		{
			Name:        "power_user_emergence",
			Category:    domain.CategoryExpansion,
			Description: "An individual user logged 40+ sessions in 30 days",
			Detect:      detectPowerUserEmergence,
		},
	}
}

func detectUsageSpike(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.APICallsPrev30d == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.APICallsPrev30d), float64(u.APICalls30d))
	if change < usageSpikeMinChange {
		return nil, nil
	}
	return &Candidate{
		Type:  "usage_spike",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "api_calls_30d",
			Previous:  float64(u.APICallsPrev30d),
			Current:   float64(u.APICalls30d),
			ChangePct: change,
		},
	}, nil
}

func detectSeatLimitApproach(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.SeatLimit <= 0 {
		return nil, nil
	}
	ratio := float64(u.SeatsUsed) / float64(u.SeatLimit)
	if ratio < seatLimitApproachRatio {
		return nil, nil
	}
	return &Candidate{
		Type:  "seat_limit_approach",
		Value: floatPtr(ratio),
		Details: domain.SignalDetails{
			Metric:   "seat_utilization",
			Previous: float64(u.SeatLimit),
			Current:  float64(u.SeatsUsed),
		},
	}, nil
}

func detectDirectorSignup(ctx *Context) (*Candidate, error) {
	for _, user := range ctx.Users {
		if user.Deactivated || user.CreatedAt.Before(ctx.Cutoff) {
			continue
		}
		if scoring.IsDirectorLevel(user.Title) {
			return &Candidate{
				Type: "director_level_signup",
				Details: domain.SignalDetails{
					UserID:    user.ID,
					UserTitle: user.Title,
				},
			}, nil
		}
	}
	return nil, nil
}

func detectFeatureAdoption(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.FeaturesUsedPrev == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.FeaturesUsedPrev), float64(u.FeaturesUsed30d))
	if change < featureAdoptionMinChange {
		return nil, nil
	}
	return &Candidate{
		Type:  "feature_adoption",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "features_used_30d",
			Previous:  float64(u.FeaturesUsedPrev),
			Current:   float64(u.FeaturesUsed30d),
			ChangePct: change,
		},
	}, nil
}

func detectActiveUserGrowth(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.ActiveUsersPrev30d == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.ActiveUsersPrev30d), float64(u.ActiveUsers30d))
	if change < activeUserMinGrowth {
		return nil, nil
	}
	return &Candidate{
		Type:  "active_user_growth",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "active_users_30d",
			Previous:  float64(u.ActiveUsersPrev30d),
			Current:   float64(u.ActiveUsers30d),
			ChangePct: change,
		},
	}, nil
}

func detectTrialConversionWindow(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if ctx.Account.Status != domain.AccountTrial || u == nil || u.TrialEndsAt == nil {
		return nil, nil
	}
	daysLeft := int(u.TrialEndsAt.Sub(ctx.Now).Hours() / 24)
	if daysLeft < 0 || daysLeft > trialWindowDays {
		return nil, nil
	}
	if u.ActiveUsers30d < trialMinActiveUsers {
		return nil, nil
	}
	return &Candidate{
		Type:  "trial_conversion_window",
		Value: floatPtr(float64(daysLeft)),
		Details: domain.SignalDetails{
			Metric:    "trial_days_remaining",
			Current:   float64(u.ActiveUsers30d),
			DaysUntil: daysLeft,
		},
	}, nil
}

func detectNPSPromoter(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.NPSScore == nil || *u.NPSScore < npsPromoterFloor {
		return nil, nil
	}
	return &Candidate{
		Type:  "nps_promoter",
		Value: u.NPSScore,
		Details: domain.SignalDetails{
			Metric:  "nps",
			Current: *u.NPSScore,
		},
	}, nil
}

func detectTeamGrowth(ctx *Context) (*Candidate, error) {
	newUsers := 0
	for _, user := range ctx.Users {
		if !user.Deactivated && !user.CreatedAt.Before(ctx.Cutoff) {
			newUsers++
		}
	}
	if newUsers < teamGrowthMinNewUsers {
		return nil, nil
	}
	return &Candidate{
		Type:  "team_growth",
		Value: floatPtr(float64(newUsers)),
		Details: domain.SignalDetails{
			Metric:  "new_users_in_window",
			Current: float64(newUsers),
		},
	}, nil
}

func detectIntegrationAdded(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.IntegrationsActive <= u.IntegrationsPrev {
		return nil, nil
	}
	added := float64(u.IntegrationsActive - u.IntegrationsPrev)
	return &Candidate{
		Type:  "integration_added",
		Value: floatPtr(added),
		Details: domain.SignalDetails{
			Metric:   "integrations_active",
			Previous: float64(u.IntegrationsPrev),
			Current:  float64(u.IntegrationsActive),
		},
	}, nil
}

func detectWeeklyActiveGrowth(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.WeeklyActivePrev == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.WeeklyActivePrev), float64(u.WeeklyActiveUsers))
	if change < weeklyActiveMinGrowth {
		return nil, nil
	}
	return &Candidate{
		Type:  "weekly_active_growth",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "weekly_active_users",
			Previous:  float64(u.WeeklyActivePrev),
			Current:   float64(u.WeeklyActiveUsers),
			ChangePct: change,
		},
	}, nil
}

func detectRenewalUpsellWindow(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.RenewalAt == nil {
		return nil, nil
	}
	daysLeft := int(u.RenewalAt.Sub(ctx.Now).Hours() / 24)
	if daysLeft < 0 || daysLeft > renewalUpsellWindowDays {
		return nil, nil
	}
	if ctx.Account.HealthScore < renewalUpsellMinHealth {
		return nil, nil
	}
	return &Candidate{
		Type:  "renewal_upsell_window",
		Value: floatPtr(float64(daysLeft)),
		Details: domain.SignalDetails{
			Metric:    "renewal_days_remaining",
			Current:   ctx.Account.HealthScore,
			DaysUntil: daysLeft,
		},
	}, nil
}

func detectPowerUserEmergence(ctx *Context) (*Candidate, error) {
	for _, user := range ctx.Users {
		if user.Deactivated || user.Sessions30d < powerUserMinSessions {
			continue
		}
		return &Candidate{
			Type:  "power_user_emergence",
			Value: floatPtr(float64(user.Sessions30d)),
			Details: domain.SignalDetails{
				Metric:    "sessions_30d",
				Current:   float64(user.Sessions30d),
				UserID:    user.ID,
				UserTitle: user.Title,
			},
		}, nil
	}
	return nil, nil
}
