// Package aggregate recomputes the per-(workspace, signal type) rollup
// statistics from signal history and recorded outcomes. Rollups are a cache
// refreshed on the recalculation schedule, never updated on signal writes.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/persistence"
	"github.com/getbeton/accountpulse/internal/scoring"
)

// calculationWindowDays bounds how far back outcome statistics reach.
const calculationWindowDays = 180

// confidenceSampleScale dampens confidence for thin samples: confidence
// approaches the F1 score as the sample size grows past this scale.
const confidenceSampleScale = 20.0

// Aggregator recomputes SignalAggregate rows.
type Aggregator struct {
	signals    persistence.SignalStore
	aggregates persistence.AggregateStore
	provider   config.Provider
	metrics    *metrics.Collector
}

// NewAggregator wires an aggregator over the given stores.
func NewAggregator(signals persistence.SignalStore, aggregates persistence.AggregateStore,
	provider config.Provider, collector *metrics.Collector) *Aggregator {
	return &Aggregator{
		signals:    signals,
		aggregates: aggregates,
		provider:   provider,
		metrics:    collector,
	}
}

// Recompute rebuilds and persists the rollup for one (workspace, signal
// type) pair from the full calculation window.
func (a *Aggregator) Recompute(ctx context.Context, workspaceID, signalType string, now time.Time) (*domain.SignalAggregate, error) {
	cfg := a.provider.ConfigFor(workspaceID)
	windowStart := now.AddDate(0, 0, -calculationWindowDays)

	signals, err := a.signals.ListByTypeSince(ctx, workspaceID, signalType, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load signals %s/%s: %w", workspaceID, signalType, err)
	}
	outcomes, err := a.aggregates.ListOutcomes(ctx, workspaceID, signalType, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load outcomes %s/%s: %w", workspaceID, signalType, err)
	}

	agg := buildAggregate(workspaceID, signalType, signals, outcomes,
		cfg.OpportunityGeneration.BaselineConversionRate, now)

	if err := a.aggregates.Upsert(ctx, agg); err != nil {
		return nil, fmt.Errorf("store aggregate %s/%s: %w", workspaceID, signalType, err)
	}
	a.metrics.AggregatesRecomputed.Inc()

	log.Debug().
		Str("workspace", workspaceID).
		Str("signal_type", signalType).
		Int("signals", agg.TotalCount).
		Int("sample", agg.SampleSize).
		Float64("confidence", agg.ConfidenceScore).
		Msg("Aggregate recomputed")
	return &agg, nil
}

// RecomputeAll refreshes rollups for every configured signal type in a
// workspace. One type's failure does not stop the rest.
func (a *Aggregator) RecomputeAll(ctx context.Context, workspaceID string, now time.Time) error {
	cfg := a.provider.ConfigFor(workspaceID)

	failures := 0
	for signalType := range cfg.Signals {
		if _, err := a.Recompute(ctx, workspaceID, signalType, now); err != nil {
			failures++
			log.Warn().Err(err).Str("signal_type", signalType).Msg("Aggregate recompute failed")
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d aggregate recomputes failed", failures, len(cfg.Signals))
	}
	return nil
}

// buildAggregate computes the rollup statistics.
//
// Outcome semantics: an outcome converts when it produced an opportunity,
// and wins when that opportunity closed. Precision is wins over conversions;
// recall is wins over the full outcome sample (closed-world within the
// window); lift compares the observed conversion rate against the configured
// baseline. Confidence damps F1 by sample size so ten lucky outcomes do not
// outrank two hundred ordinary ones.
func buildAggregate(workspaceID, signalType string, signals []domain.Signal,
	outcomes []domain.SignalOutcome, baselineRate float64, now time.Time) domain.SignalAggregate {

	agg := domain.SignalAggregate{
		WorkspaceID:           workspaceID,
		SignalType:            signalType,
		TotalCount:            len(signals),
		CalculationWindowDays: calculationWindowDays,
		SampleSize:            len(outcomes),
		LastCalculatedAt:      now,
	}

	sevenDays := now.AddDate(0, 0, -7)
	thirtyDays := now.AddDate(0, 0, -30)
	for _, sig := range signals {
		if !sig.Timestamp.Before(sevenDays) {
			agg.CountLast7d++
		}
		if !sig.Timestamp.Before(thirtyDays) {
			agg.CountLast30d++
		}
	}

	if len(outcomes) == 0 {
		agg.QualityGrade = scoring.GradeFor(0).Code
		return agg
	}

	var converted, won int
	var dealSizeSum, arrSum float64
	var daysToCloseSum int
	for _, o := range outcomes {
		if o.Converted {
			converted++
		}
		if o.Won {
			won++
			dealSizeSum += o.DealSize
			daysToCloseSum += o.DaysToClose
		}
		arrSum += o.ARRInfluenced
	}

	sample := float64(len(outcomes))
	agg.AvgConversionRate = float64(converted) / sample
	agg.AvgRecall = float64(won) / sample
	agg.TotalARRInfluenced = arrSum

	if converted > 0 {
		agg.AvgPrecision = float64(won) / float64(converted)
		agg.WinRate = agg.AvgPrecision
	}
	if won > 0 {
		agg.AvgDealSize = dealSizeSum / float64(won)
		agg.AvgDaysToClose = float64(daysToCloseSum) / float64(won)
	}
	if agg.AvgPrecision+agg.AvgRecall > 0 {
		agg.AvgF1 = 2 * agg.AvgPrecision * agg.AvgRecall / (agg.AvgPrecision + agg.AvgRecall)
	}
	if baselineRate > 0 {
		agg.AvgLift = agg.AvgConversionRate / baselineRate
	}

	agg.ConfidenceScore = agg.AvgF1 * (1 - math.Exp(-sample/confidenceSampleScale))
	agg.QualityGrade = scoring.GradeFor(agg.ConfidenceScore * 100).Code
	return agg
}
