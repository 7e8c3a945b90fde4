// Package process orchestrates detector execution across accounts and
// workspaces, with window dedup and partial-failure isolation.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/persistence"
	"github.com/getbeton/accountpulse/internal/scoring"
)

// Options narrows a processing run.
type Options struct {
	// Category restricts the run to detectors of one category. Empty runs all.
	Category domain.SignalCategory

	// Source overrides the recorded signal source; defaults to the detector
	// name.
	Source string
}

// DetectorFailure records one detector that errored or panicked.
type DetectorFailure struct {
	Detector string `json:"detector"`
	Error    string `json:"error"`
}

// AccountResult is the outcome of processing a single account.
type AccountResult struct {
	AccountID string            `json:"account_id"`
	Created   []domain.Signal   `json:"created"`
	Skipped   []string          `json:"skipped"`
	Failed    []DetectorFailure `json:"failed"`
}

// BatchResult is the aggregate tally across a workspace run.
type BatchResult struct {
	WorkspaceID     string            `json:"workspace_id"`
	AccountsTotal   int               `json:"accounts_total"`
	SignalsCreated  int               `json:"signals_created"`
	SignalsSkipped  int               `json:"signals_skipped"`
	DetectorsFailed int               `json:"detectors_failed"`
	FailedAccounts  map[string]string `json:"failed_accounts,omitempty"`
	Elapsed         time.Duration     `json:"elapsed"`
}

// Processor runs the detector registry against accounts and persists the
// surviving signals.
type Processor struct {
	accounts persistence.AccountStore
	signals  persistence.SignalStore
	provider config.Provider
	registry *detect.Registry
	metrics  *metrics.Collector

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	maxConcurrent int
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithConcurrency bounds the batch worker pool.
func WithConcurrency(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// WithRateLimit paces account processing to protect the backing store.
func WithRateLimit(perSecond float64, burst int) ProcessorOption {
	return func(p *Processor) {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewProcessor wires a processor over the given stores.
func NewProcessor(accounts persistence.AccountStore, signals persistence.SignalStore,
	provider config.Provider, registry *detect.Registry, collector *metrics.Collector,
	opts ...ProcessorOption) *Processor {

	p := &Processor{
		accounts:      accounts,
		signals:       signals,
		provider:      provider,
		registry:      registry,
		metrics:       collector,
		maxConcurrent: 8,
		limiter:       rate.NewLimiter(rate.Inf, 1),
	}

	st := gobreaker.Settings{Name: "signal-store"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	p.breaker = gobreaker.NewCircuitBreaker(st)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAccount runs the selected detectors against one account. Detector
// errors and panics are recorded per detector and never stop the rest of the
// run; window-duplicate candidates are skipped, not failed.
func (p *Processor) ProcessAccount(ctx context.Context, account *domain.Account, opts Options) (*AccountResult, error) {
	if account == nil {
		return nil, fmt.Errorf("account is required")
	}
	start := time.Now()
	cfg := p.provider.ConfigFor(account.WorkspaceID)
	now := time.Now()

	users, err := p.accounts.ListUsers(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("load users for account %s: %w", account.ID, err)
	}

	detectCtx := &detect.Context{
		Account: account,
		Users:   users,
		Config:  cfg,
		Cutoff:  scoring.SignalCutoffDate(now, cfg),
		Now:     now,
	}

	result := &AccountResult{AccountID: account.ID}
	for _, det := range p.registry.ByCategory(opts.Category) {
		candidate, err := p.runDetector(det, detectCtx)
		if err != nil {
			result.Failed = append(result.Failed, DetectorFailure{Detector: det.Name, Error: err.Error()})
			p.metrics.DetectorFailures.WithLabelValues(det.Name).Inc()
			log.Warn().Err(err).Str("detector", det.Name).Str("account", account.ID).Msg("Detector failed")
			continue
		}
		if candidate == nil {
			continue
		}

		sig := p.buildSignal(account, candidate, opts, now)
		created, err := p.persistSignal(ctx, sig, detectCtx.Cutoff)
		if err != nil {
			result.Failed = append(result.Failed, DetectorFailure{Detector: det.Name, Error: err.Error()})
			p.metrics.DetectorFailures.WithLabelValues(det.Name).Inc()
			continue
		}
		if !created {
			result.Skipped = append(result.Skipped, sig.Type)
			p.metrics.SignalsSkipped.WithLabelValues(sig.Type).Inc()
			continue
		}
		result.Created = append(result.Created, sig)
		p.metrics.SignalsCreated.WithLabelValues(sig.Type).Inc()
	}

	p.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	log.Debug().
		Str("account", account.ID).
		Int("created", len(result.Created)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Msg("Account scan complete")
	return result, nil
}

// runDetector isolates a single detector call, converting panics to errors.
func (p *Processor) runDetector(det detect.Detector, detectCtx *detect.Context) (candidate *detect.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidate = nil
			err = fmt.Errorf("detector %s panicked: %v", det.Name, r)
		}
	}()
	return det.Detect(detectCtx)
}

func (p *Processor) buildSignal(account *domain.Account, candidate *detect.Candidate, opts Options, now time.Time) domain.Signal {
	source := opts.Source
	if source == "" {
		source = candidate.Type
	}
	return domain.Signal{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		WorkspaceID: account.WorkspaceID,
		Type:        candidate.Type,
		Value:       candidate.Value,
		Details:     candidate.Details,
		Timestamp:   now,
		Source:      source,
	}
}

// persistSignal routes the conditional insert through the circuit breaker so
// a failing store trips fast instead of timing out per candidate.
func (p *Processor) persistSignal(ctx context.Context, sig domain.Signal, since time.Time) (bool, error) {
	created, err := p.breaker.Execute(func() (any, error) {
		return p.signals.CreateIfAbsent(ctx, sig, since)
	})
	if err != nil {
		return false, fmt.Errorf("persist signal %s: %w", sig.Type, err)
	}
	return created.(bool), nil
}

// ProcessWorkspace runs every active account in the workspace through
// ProcessAccount on a bounded worker pool. One account's failure is recorded
// in the tally and never cancels its siblings; the returned error is reserved
// for failures of the batch itself (listing accounts, cancelled context).
func (p *Processor) ProcessWorkspace(ctx context.Context, workspaceID string, opts Options) (*BatchResult, error) {
	start := time.Now()
	p.metrics.ActiveScans.Inc()
	defer p.metrics.ActiveScans.Dec()

	accounts, err := p.accounts.ListActiveAccounts(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for workspace %s: %w", workspaceID, err)
	}

	result := &BatchResult{
		WorkspaceID:    workspaceID,
		AccountsTotal:  len(accounts),
		FailedAccounts: map[string]string{},
	}

	type accountOutcome struct {
		accountID string
		res       *AccountResult
		err       error
	}
	outcomes := make([]accountOutcome, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for i := range accounts {
		i := i
		account := accounts[i]
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				outcomes[i] = accountOutcome{accountID: account.ID, err: err}
				return nil
			}
			res, err := p.ProcessAccount(gctx, &account, opts)
			outcomes[i] = accountOutcome{accountID: account.ID, res: res, err: err}
			// Account failures are tallied, not returned: returning an error
			// here would cancel sibling accounts through the group context.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		p.metrics.AccountsScanned.Inc()
		if o.err != nil {
			result.FailedAccounts[o.accountID] = o.err.Error()
			p.metrics.AccountFailures.Inc()
			continue
		}
		result.SignalsCreated += len(o.res.Created)
		result.SignalsSkipped += len(o.res.Skipped)
		result.DetectorsFailed += len(o.res.Failed)
	}

	result.Elapsed = time.Since(start)
	log.Info().
		Str("workspace", workspaceID).
		Int("accounts", result.AccountsTotal).
		Int("created", result.SignalsCreated).
		Int("skipped", result.SignalsSkipped).
		Int("detector_failures", result.DetectorsFailed).
		Int("account_failures", len(result.FailedAccounts)).
		Dur("elapsed", result.Elapsed).
		Msg("Workspace scan complete")
	return result, nil
}

// DetectorSummary lists the registered detectors. Pure introspection.
func (p *Processor) DetectorSummary() []detect.Meta {
	return p.registry.Summary()
}
