package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getbeton/accountpulse/internal/aggregate"
	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/opportunity"
	"github.com/getbeton/accountpulse/internal/persistence"
	"github.com/getbeton/accountpulse/internal/persistence/postgres"
	"github.com/getbeton/accountpulse/internal/process"
	"github.com/getbeton/accountpulse/internal/scoring"
)

const (
	appName = "accountpulse"
	version = "v1.2.0"
)

var (
	flagConfig   string
	flagDatabase string
	flagRedis    string
	flagVerbose  bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Signal detection and heuristic scoring engine for B2B accounts",
		Version: version,
		Long: `AccountPulse scans account usage data for expansion and churn signals,
rolls them into decayed health, expansion and churn-risk scores, and emits
qualified opportunities when a score crosses its threshold.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	// Accept snake_case flag spellings too.
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Scoring config YAML (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database-url", os.Getenv("DATABASE_URL"), "Postgres DSN")
	rootCmd.PersistentFlags().StringVar(&flagRedis, "redis-url", os.Getenv("REDIS_URL"), "Redis URL for opportunity cooldowns")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newAggregateCmd())
	rootCmd.AddCommand(newDetectorsCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// deps bundles the wired runtime dependencies of a command invocation.
type deps struct {
	db         *sqlx.DB
	accounts   persistence.AccountStore
	signals    persistence.SignalStore
	scores     persistence.ScoreStore
	aggregates persistence.AggregateStore
	provider   config.Provider
	registry   *detect.Registry
	metrics    *metrics.Collector
	processor  *process.Processor
	engine     *scoring.Engine
	gate       *opportunity.Gate
	aggregator *aggregate.Aggregator
}

const storeTimeout = 5 * time.Second

func buildDeps(ctx context.Context, collector *metrics.Collector) (*deps, error) {
	if flagDatabase == "" {
		return nil, fmt.Errorf("no database configured: set --database-url or DATABASE_URL")
	}

	provider, err := loadProvider()
	if err != nil {
		return nil, err
	}

	db, err := postgres.Open(ctx, flagDatabase)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	d := &deps{
		db:         db,
		accounts:   postgres.NewAccountStore(db, storeTimeout),
		signals:    postgres.NewSignalStore(db, storeTimeout),
		scores:     postgres.NewScoreStore(db, storeTimeout),
		aggregates: postgres.NewAggregateStore(db, storeTimeout),
		provider:   provider,
		registry:   detect.NewRegistry(),
		metrics:    collector,
		engine:     scoring.NewEngine(),
	}
	d.processor = process.NewProcessor(d.accounts, d.signals, provider, d.registry, collector)
	d.gate = opportunity.NewGate(newCooldownStore(), provider, collector)
	d.aggregator = aggregate.NewAggregator(d.signals, d.aggregates, provider, collector)
	return d, nil
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
}

func loadProvider() (config.Provider, error) {
	if flagConfig == "" {
		return config.NewStaticProvider(config.DefaultScoringConfig()), nil
	}
	provider, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flagConfig, err)
	}
	log.Info().Str("path", flagConfig).Msg("Scoring config loaded")
	return provider, nil
}

// newCooldownStore returns the Redis-backed cooldown store, or a permissive
// in-process map when no Redis is configured.
func newCooldownStore() opportunity.CooldownStore {
	if flagRedis == "" {
		log.Warn().Msg("No Redis configured, opportunity cooldowns are process-local")
		return opportunity.NewLocalCooldownStore()
	}
	opts, err := redis.ParseURL(flagRedis)
	if err != nil {
		log.Warn().Err(err).Msg("Bad Redis URL, falling back to process-local cooldowns")
		return opportunity.NewLocalCooldownStore()
	}
	return opportunity.NewRedisCooldownStore(redis.NewClient(opts))
}
