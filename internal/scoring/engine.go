package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/domain"
)

// Engine rolls an account's live signals into the three heuristic score
// snapshots. Pure with respect to storage; callers fetch signals and persist
// the results.
type Engine struct{}

// NewEngine returns a score engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ComputeScores combines each signal's configured weight, its recency decay
// and the account's fit multiplier into per-type contributions, sums them
// per category, and normalizes each raw sum onto the display scale.
//
// The combinator is multiplicative: contribution = weight * decay * fit.
// Signals older than the configured window are ignored; neutral-category
// signals contribute to no dimension. Health blends both directions:
// expansion pushes it up, churn risk pulls it down, health-category signals
// add directly.
func (e *Engine) ComputeScores(account *domain.Account, signals []domain.Signal,
	cfg *config.ScoringConfig, now time.Time) []domain.HeuristicScore {

	cutoff := SignalCutoffDate(now, cfg)
	fit := FitMultiplier(account.FitScore, cfg)

	// Latest contribution per signal type; older duplicates of a type have
	// been superseded and must not double-count.
	type contribution struct {
		value float64
		cat   domain.SignalCategory
		ts    time.Time
	}
	contribs := make(map[string]contribution)

	for _, sig := range signals {
		if sig.Timestamp.Before(cutoff) {
			continue
		}
		weight := cfg.SignalWeight(sig.Type)
		if weight == 0 {
			continue
		}
		c := contribution{
			value: weight * RecencyDecay(sig.Timestamp, now, cfg) * fit,
			cat:   cfg.SignalCategory(sig.Type),
			ts:    sig.Timestamp,
		}
		if prev, ok := contribs[sig.Type]; ok && prev.ts.After(c.ts) {
			continue
		}
		contribs[sig.Type] = c
	}

	expansionParts := make(map[string]float64)
	churnParts := make(map[string]float64)
	healthParts := make(map[string]float64)
	var rawExpansion, rawChurn, rawHealth float64

	for sigType, c := range contribs {
		switch c.cat {
		case domain.CategoryExpansion:
			expansionParts[sigType] = c.value
			rawExpansion += c.value
			healthParts[sigType] = c.value
			rawHealth += c.value
		case domain.CategoryChurnRisk:
			churnParts[sigType] = c.value
			rawChurn += c.value
			healthParts[sigType] = -c.value
			rawHealth -= c.value
		case domain.CategoryHealth:
			healthParts[sigType] = c.value
			rawHealth += c.value
		}
	}

	validUntil := ScoreValidUntil(now, cfg)
	snapshot := func(scoreType domain.ScoreType, raw float64, parts map[string]float64) domain.HeuristicScore {
		return domain.HeuristicScore{
			ID:              uuid.NewString(),
			AccountID:       account.ID,
			WorkspaceID:     account.WorkspaceID,
			ScoreType:       scoreType,
			ScoreValue:      Normalize(raw, cfg),
			ComponentScores: parts,
			CalculatedAt:    now,
			ValidUntil:      validUntil,
		}
	}

	return []domain.HeuristicScore{
		snapshot(domain.ScoreHealth, rawHealth, healthParts),
		snapshot(domain.ScoreExpansion, rawExpansion, expansionParts),
		snapshot(domain.ScoreChurnRisk, rawChurn, churnParts),
	}
}
