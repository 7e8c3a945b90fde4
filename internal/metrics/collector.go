// Package metrics exposes Prometheus instrumentation for the detection and
// scoring pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the pipeline's Prometheus metrics. Register it once on a
// registry and share it across the processor, scheduler and gate.
type Collector struct {
	SignalsCreated   *prometheus.CounterVec
	SignalsSkipped   *prometheus.CounterVec
	DetectorFailures *prometheus.CounterVec
	AccountsScanned  prometheus.Counter
	AccountFailures  prometheus.Counter
	ScanDuration     prometheus.Histogram
	ActiveScans      prometheus.Gauge

	ScoresComputed           *prometheus.CounterVec
	OpportunitiesEmitted     *prometheus.CounterVec
	OpportunitiesSuppressed  *prometheus.CounterVec
	AggregatesRecomputed     prometheus.Counter
}

// NewCollector builds the metric set and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		SignalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountpulse_signals_created_total",
			Help: "Signals persisted, by signal type",
		}, []string{"type"}),

		SignalsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountpulse_signals_skipped_total",
			Help: "Candidate signals discarded by window dedup, by signal type",
		}, []string{"type"}),

		DetectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountpulse_detector_failures_total",
			Help: "Detector errors and panics caught at the processor boundary",
		}, []string{"detector"}),

		AccountsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountpulse_accounts_scanned_total",
			Help: "Accounts processed by batch scans",
		}),

		AccountFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountpulse_account_failures_total",
			Help: "Accounts whose scan failed as a unit",
		}),

		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountpulse_scan_duration_seconds",
			Help:    "Duration of per-account signal scans",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),

		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accountpulse_active_scans",
			Help: "Batch scans currently in flight",
		}),

		ScoresComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountpulse_scores_computed_total",
			Help: "Heuristic score snapshots written, by score type",
		}, []string{"score_type"}),

		OpportunitiesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountpulse_opportunities_emitted_total",
			Help: "Opportunity summaries emitted, by type",
		}, []string{"type"}),

		OpportunitiesSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountpulse_opportunities_suppressed_total",
			Help: "Opportunity emissions suppressed by cooldown, by type",
		}, []string{"type"}),

		AggregatesRecomputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountpulse_aggregates_recomputed_total",
			Help: "Signal aggregate rollup refreshes completed",
		}),
	}

	reg.MustRegister(
		c.SignalsCreated, c.SignalsSkipped, c.DetectorFailures,
		c.AccountsScanned, c.AccountFailures, c.ScanDuration, c.ActiveScans,
		c.ScoresComputed, c.OpportunitiesEmitted, c.OpportunitiesSuppressed,
		c.AggregatesRecomputed,
	)
	return c
}

// NewNopCollector returns a collector on a throwaway registry, for tests and
// callers that do not scrape.
func NewNopCollector() *Collector {
	return NewCollector(prometheus.NewRegistry())
}
