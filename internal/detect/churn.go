package detect

import (
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/scoring"
)

const (
	usageDropMaxChange      = -0.4
	inactivityDays          = 14
	npsDetractorCeiling     = 6.0
	seatContractionMaxChange = -0.2
	championInactiveDays    = 30
	renewalRiskWindowDays   = 60
	renewalRiskMaxHealth    = 50.0
	ticketSpikeMinChange    = 1.0
)

func churnDetectors() []Detector {
	return []Detector{
		{
			Name:        "usage_drop",
			Category:    domain.CategoryChurnRisk,
			Description: "API call volume fell at least 40% versus the prior window",
			Detect:      detectUsageDrop,
		},
		{
			Name:        "account_inactivity",
			Category:    domain.CategoryChurnRisk,
			Description: "No account activity for two weeks or more",
			Detect:      detectAccountInactivity,
		},
		{
			Name:        "nps_detractor",
			Category:    domain.CategoryChurnRisk,
			Description: "Latest NPS response is 6 or below",
			Detect:      detectNPSDetractor,
		},
		{
			Name:        "seat_contraction",
			Category:    domain.CategoryChurnRisk,
			Description: "Seats in use shrank at least 20% versus the prior window",
			Detect:      detectSeatContraction,
		},
		{
			Name:        "champion_departure",
			Category:    domain.CategoryChurnRisk,
			Description: "A director-level user was deactivated or went dark for 30+ days",
			Detect:      detectChampionDeparture,
		},
		{
			Name:        "renewal_at_risk",
			Category:    domain.CategoryChurnRisk,
			Description: "Unhealthy account with renewal inside 60 days",
			Detect:      detectRenewalAtRisk,
		},
		{
			Name:        "support_ticket_spike",
			Category:    domain.CategoryChurnRisk,
			Description: "Open support tickets at least doubled versus the prior window",
			Detect:      detectSupportTicketSpike,
		},
		{
			Name:        "payment_past_due",
			Category:    domain.CategoryChurnRisk,
			Description: "Account carries a past-due balance",
			Detect:      detectPaymentPastDue,
		},
	}
}

func detectUsageDrop(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.APICallsPrev30d == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.APICallsPrev30d), float64(u.APICalls30d))
	if change > usageDropMaxChange {
		return nil, nil
	}
	return &Candidate{
		Type:  "usage_drop",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "api_calls_30d",
			Previous:  float64(u.APICallsPrev30d),
			Current:   float64(u.APICalls30d),
			ChangePct: change,
		},
	}, nil
}

func detectAccountInactivity(ctx *Context) (*Candidate, error) {
	last := ctx.Account.LastActivityAt
	if last == nil {
		return nil, nil
	}
	idleDays := int(ctx.Now.Sub(*last).Hours() / 24)
	if idleDays < inactivityDays {
		return nil, nil
	}
	return &Candidate{
		Type:  "account_inactivity",
		Value: floatPtr(float64(idleDays)),
		Details: domain.SignalDetails{
			Metric:  "idle_days",
			Current: float64(idleDays),
		},
	}, nil
}

func detectNPSDetractor(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.NPSScore == nil || *u.NPSScore > npsDetractorCeiling {
		return nil, nil
	}
	return &Candidate{
		Type:  "nps_detractor",
		Value: u.NPSScore,
		Details: domain.SignalDetails{
			Metric:  "nps",
			Current: *u.NPSScore,
		},
	}, nil
}

func detectSeatContraction(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.SeatsUsedPrev == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.SeatsUsedPrev), float64(u.SeatsUsed))
	if change > seatContractionMaxChange {
		return nil, nil
	}
	return &Candidate{
		Type:  "seat_contraction",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "seats_used",
			Previous:  float64(u.SeatsUsedPrev),
			Current:   float64(u.SeatsUsed),
			ChangePct: change,
		},
	}, nil
}

func detectChampionDeparture(ctx *Context) (*Candidate, error) {
	for _, user := range ctx.Users {
		if !scoring.IsDirectorLevel(user.Title) {
			continue
		}
		if user.Deactivated {
			return championCandidate(user, "deactivated"), nil
		}
		if user.LastSeenAt != nil {
			idleDays := int(ctx.Now.Sub(*user.LastSeenAt).Hours() / 24)
			if idleDays >= championInactiveDays {
				return championCandidate(user, "inactive"), nil
			}
		}
	}
	return nil, nil
}

func championCandidate(user domain.User, reason string) *Candidate {
	return &Candidate{
		Type: "champion_departure",
		Details: domain.SignalDetails{
			UserID:    user.ID,
			UserTitle: user.Title,
			Extra:     map[string]any{"reason": reason},
		},
	}
}

func detectRenewalAtRisk(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.RenewalAt == nil {
		return nil, nil
	}
	daysLeft := int(u.RenewalAt.Sub(ctx.Now).Hours() / 24)
	if daysLeft < 0 || daysLeft > renewalRiskWindowDays {
		return nil, nil
	}
	if ctx.Account.HealthScore >= renewalRiskMaxHealth {
		return nil, nil
	}
	return &Candidate{
		Type:  "renewal_at_risk",
		Value: floatPtr(float64(daysLeft)),
		Details: domain.SignalDetails{
			Metric:    "renewal_days_remaining",
			Current:   ctx.Account.HealthScore,
			DaysUntil: daysLeft,
		},
	}, nil
}

func detectSupportTicketSpike(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || u.TicketsPrev30d == 0 {
		return nil, nil
	}
	change := scoring.PercentageChange(float64(u.TicketsPrev30d), float64(u.OpenTickets30d))
	if change < ticketSpikeMinChange {
		return nil, nil
	}
	return &Candidate{
		Type:  "support_ticket_spike",
		Value: floatPtr(change),
		Details: domain.SignalDetails{
			Metric:    "open_tickets_30d",
			Previous:  float64(u.TicketsPrev30d),
			Current:   float64(u.OpenTickets30d),
			ChangePct: change,
		},
	}, nil
}

func detectPaymentPastDue(ctx *Context) (*Candidate, error) {
	u := ctx.Account.Usage
	if u == nil || !u.PastDue {
		return nil, nil
	}
	return &Candidate{
		Type: "payment_past_due",
		Details: domain.SignalDetails{
			Metric: "past_due",
		},
	}, nil
}
