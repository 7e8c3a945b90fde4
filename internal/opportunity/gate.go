// Package opportunity gates the emission of actionable opportunity summaries
// behind score thresholds and per-(account, type) cooldowns.
package opportunity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/scoring"
)

// CooldownStore debounces opportunity emission. Acquire must be atomic: of
// two concurrent callers for the same key, exactly one wins.
type CooldownStore interface {
	// Acquire claims the cooldown slot for (workspace, account, type) for
	// ttl. Returns false when the slot is already held.
	Acquire(ctx context.Context, workspaceID, accountID string, oppType domain.ScoreType, ttl time.Duration) (bool, error)
}

// Gate evaluates freshly computed scores against thresholds and cooldowns.
type Gate struct {
	cooldowns CooldownStore
	provider  config.Provider
	metrics   *metrics.Collector
}

// NewGate wires an opportunity gate.
func NewGate(cooldowns CooldownStore, provider config.Provider, collector *metrics.Collector) *Gate {
	return &Gate{cooldowns: cooldowns, provider: provider, metrics: collector}
}

// Evaluate decides whether a score snapshot emits an opportunity. Health
// scores never emit; below-threshold scores never emit; an above-threshold
// score emits only if its cooldown slot is free. A nil summary with nil
// error means "gated", which is the common case.
func (g *Gate) Evaluate(ctx context.Context, account *domain.Account, score domain.HeuristicScore) (*domain.OpportunitySummary, error) {
	cfg := g.provider.ConfigFor(account.WorkspaceID)

	var threshold, multiplier float64
	switch score.ScoreType {
	case domain.ScoreExpansion:
		threshold = cfg.Thresholds.Expansion
		multiplier = cfg.OpportunityGeneration.ExpansionValueMultiplier
	case domain.ScoreChurnRisk:
		threshold = cfg.Thresholds.ChurnRisk
		multiplier = cfg.OpportunityGeneration.ChurnRiskValueMultiplier
	default:
		return nil, nil
	}

	if score.ScoreValue < threshold {
		return nil, nil
	}

	ttl := time.Duration(cfg.OpportunityGeneration.CooldownDays) * 24 * time.Hour
	acquired, err := g.cooldowns.Acquire(ctx, account.WorkspaceID, account.ID, score.ScoreType, ttl)
	if err != nil {
		return nil, fmt.Errorf("cooldown check for %s/%s: %w", account.ID, score.ScoreType, err)
	}
	if !acquired {
		g.metrics.OpportunitiesSuppressed.WithLabelValues(string(score.ScoreType)).Inc()
		log.Debug().
			Str("account", account.ID).
			Str("type", string(score.ScoreType)).
			Msg("Opportunity suppressed by cooldown")
		return nil, nil
	}

	summary := &domain.OpportunitySummary{
		Type:           score.ScoreType,
		AccountID:      account.ID,
		WorkspaceID:    account.WorkspaceID,
		AccountName:    account.Name,
		Score:          score.ScoreValue,
		GradeDisplay:   scoring.FormatDisplay(score.ScoreValue).ShortText,
		Signals:        contributingSignals(score),
		EstimatedValue: score.ScoreValue * multiplier,
		Recommendation: recommendation(score.ScoreType, account),
		GeneratedAt:    score.CalculatedAt,
	}
	g.metrics.OpportunitiesEmitted.WithLabelValues(string(score.ScoreType)).Inc()

	log.Info().
		Str("account", account.ID).
		Str("type", string(score.ScoreType)).
		Float64("score", score.ScoreValue).
		Float64("estimated_value", summary.EstimatedValue).
		Msg("Opportunity emitted")
	return summary, nil
}

// contributingSignals lists the signal types behind the score, strongest
// contribution first.
func contributingSignals(score domain.HeuristicScore) []string {
	names := make([]string, 0, len(score.ComponentScores))
	for name := range score.ComponentScores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := score.ComponentScores[names[i]], score.ComponentScores[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

func recommendation(oppType domain.ScoreType, account *domain.Account) string {
	switch oppType {
	case domain.ScoreExpansion:
		return fmt.Sprintf("Reach out to %s about an upgrade: expansion signals are strong on their %s plan.",
			account.Name, account.Plan)
	case domain.ScoreChurnRisk:
		return fmt.Sprintf("Schedule a check-in with %s: churn-risk signals need attention before renewal.",
			account.Name)
	default:
		return ""
	}
}
