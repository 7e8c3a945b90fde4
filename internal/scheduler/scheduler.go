// Package scheduler drives the periodic detection and scoring cycle for a
// set of workspaces.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getbeton/accountpulse/internal/aggregate"
	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/opportunity"
	"github.com/getbeton/accountpulse/internal/persistence"
	"github.com/getbeton/accountpulse/internal/process"
	"github.com/getbeton/accountpulse/internal/scoring"
)

// OpportunitySink receives emitted opportunity summaries. The notification
// and CRM layers implement it; LogSink is the built-in fallback.
type OpportunitySink interface {
	Deliver(ctx context.Context, summary *domain.OpportunitySummary) error
}

// LogSink logs summaries instead of delivering them anywhere.
type LogSink struct{}

// Deliver logs the summary.
func (LogSink) Deliver(_ context.Context, summary *domain.OpportunitySummary) error {
	log.Info().
		Str("account", summary.AccountID).
		Str("type", string(summary.Type)).
		Float64("score", summary.Score).
		Str("grade", summary.GradeDisplay).
		Strs("signals", summary.Signals).
		Msg("Opportunity ready for delivery")
	return nil
}

// CycleResult tallies one full workspace cycle.
type CycleResult struct {
	WorkspaceID    string               `json:"workspace_id"`
	Scan           *process.BatchResult `json:"scan"`
	ScoredAccounts int                  `json:"scored_accounts"`
	ScoreFailures  int                  `json:"score_failures"`
	Opportunities  int                  `json:"opportunities"`
	Elapsed        time.Duration        `json:"elapsed"`
}

// Runner executes detection, scoring, gating and aggregation as one cycle.
type Runner struct {
	accounts   persistence.AccountStore
	signals    persistence.SignalStore
	scores     persistence.ScoreStore
	processor  *process.Processor
	engine     *scoring.Engine
	gate       *opportunity.Gate
	aggregator *aggregate.Aggregator
	provider   config.Provider
	metrics    *metrics.Collector
	sink       OpportunitySink
}

// NewRunner wires a cycle runner. A nil sink falls back to LogSink.
func NewRunner(accounts persistence.AccountStore, signals persistence.SignalStore,
	scores persistence.ScoreStore, processor *process.Processor, engine *scoring.Engine,
	gate *opportunity.Gate, aggregator *aggregate.Aggregator, provider config.Provider,
	collector *metrics.Collector, sink OpportunitySink) *Runner {

	if sink == nil {
		sink = LogSink{}
	}
	return &Runner{
		accounts:   accounts,
		signals:    signals,
		scores:     scores,
		processor:  processor,
		engine:     engine,
		gate:       gate,
		aggregator: aggregator,
		provider:   provider,
		metrics:    collector,
		sink:       sink,
	}
}

// RunCycle processes one workspace end to end: scan for signals, recompute
// scores, write back account health, evaluate the opportunity gate, refresh
// aggregates. Per-account scoring failures are tallied, not fatal.
func (r *Runner) RunCycle(ctx context.Context, workspaceID string) (*CycleResult, error) {
	start := time.Now()
	result := &CycleResult{WorkspaceID: workspaceID}

	scan, err := r.processor.ProcessWorkspace(ctx, workspaceID, process.Options{})
	if err != nil {
		return nil, fmt.Errorf("scan workspace %s: %w", workspaceID, err)
	}
	result.Scan = scan

	accounts, err := r.accounts.ListActiveAccounts(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for scoring: %w", err)
	}

	for i := range accounts {
		account := &accounts[i]
		if err := r.scoreAccount(ctx, account, result); err != nil {
			result.ScoreFailures++
			log.Warn().Err(err).Str("account", account.ID).Msg("Account scoring failed")
			continue
		}
		result.ScoredAccounts++
	}

	if err := r.aggregator.RecomputeAll(ctx, workspaceID, time.Now()); err != nil {
		log.Warn().Err(err).Str("workspace", workspaceID).Msg("Aggregate refresh incomplete")
	}

	result.Elapsed = time.Since(start)
	log.Info().
		Str("workspace", workspaceID).
		Int("scored", result.ScoredAccounts).
		Int("score_failures", result.ScoreFailures).
		Int("opportunities", result.Opportunities).
		Dur("elapsed", result.Elapsed).
		Msg("Cycle complete")
	return result, nil
}

func (r *Runner) scoreAccount(ctx context.Context, account *domain.Account, result *CycleResult) error {
	cfg := r.provider.ConfigFor(account.WorkspaceID)
	now := time.Now()

	signals, err := r.signals.ListByAccountSince(ctx, account.ID, scoring.SignalCutoffDate(now, cfg))
	if err != nil {
		return fmt.Errorf("load signals: %w", err)
	}

	scores := r.engine.ComputeScores(account, signals, cfg, now)
	for _, score := range scores {
		if err := r.scores.Upsert(ctx, score); err != nil {
			return fmt.Errorf("store %s score: %w", score.ScoreType, err)
		}
		r.metrics.ScoresComputed.WithLabelValues(string(score.ScoreType)).Inc()

		if score.ScoreType == domain.ScoreHealth {
			if err := r.accounts.UpdateHealthScore(ctx, account.ID, score.ScoreValue); err != nil {
				return fmt.Errorf("write back health score: %w", err)
			}
			account.HealthScore = score.ScoreValue
			continue
		}

		summary, err := r.gate.Evaluate(ctx, account, score)
		if err != nil {
			log.Warn().Err(err).Str("account", account.ID).Msg("Opportunity gate failed")
			continue
		}
		if summary == nil {
			continue
		}
		result.Opportunities++
		if err := r.sink.Deliver(ctx, summary); err != nil {
			log.Warn().Err(err).Str("account", account.ID).Msg("Opportunity delivery failed")
		}
	}
	return nil
}

// Start runs cycles for the given workspaces until ctx is cancelled. The
// interval follows the configured recalculation frequency of each
// workspace's config; the loop ticks at the shortest configured interval and
// skips workspaces whose scores are still valid.
func (r *Runner) Start(ctx context.Context, workspaceIDs []string) error {
	if len(workspaceIDs) == 0 {
		return fmt.Errorf("no workspaces to schedule")
	}

	interval := r.shortestInterval(workspaceIDs)
	log.Info().Dur("interval", interval).Int("workspaces", len(workspaceIDs)).Msg("Scheduler starting")

	nextRun := make(map[string]time.Time, len(workspaceIDs))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, ws := range workspaceIDs {
			if time.Now().Before(nextRun[ws]) {
				continue
			}
			if _, err := r.RunCycle(ctx, ws); err != nil {
				log.Error().Err(err).Str("workspace", ws).Msg("Cycle failed")
			}
			cfg := r.provider.ConfigFor(ws)
			nextRun[ws] = scoring.ScoreValidUntil(time.Now(), cfg)
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) shortestInterval(workspaceIDs []string) time.Duration {
	shortest := time.Duration(0)
	for _, ws := range workspaceIDs {
		cfg := r.provider.ConfigFor(ws)
		d := time.Duration(cfg.SignalProcessing.RecalculationFrequencyHours) * time.Hour
		if shortest == 0 || d < shortest {
			shortest = d
		}
	}
	return shortest
}
