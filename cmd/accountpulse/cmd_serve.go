package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/getbeton/accountpulse/internal/interfaces/http"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var (
		workspaces string
		host       string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection/scoring scheduler with the ops API",
		Long:  "Runs periodic detection and scoring cycles for the given workspaces and serves the read-only operational HTTP API alongside.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			workspaceIDs := splitWorkspaces(workspaces)
			if len(workspaceIDs) == 0 {
				return fmt.Errorf("no workspaces given: set --workspaces")
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector())
			collector := metrics.NewCollector(registry)

			d, err := buildDeps(cmd.Context(), collector)
			if err != nil {
				return err
			}
			defer d.close()

			runner := scheduler.NewRunner(d.accounts, d.signals, d.scores, d.processor,
				d.engine, d.gate, d.aggregator, d.provider, collector, nil)

			serverCfg := httpapi.DefaultServerConfig()
			if host != "" {
				serverCfg.Host = host
			}
			if port != 0 {
				serverCfg.Port = port
			}
			handlers := httpapi.NewHandlers(d.registry, d.scores, d.aggregates, version)
			server, err := httpapi.NewServer(serverCfg, handlers, registry)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := runner.Start(ctx, workspaceIDs)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			log.Info().Strs("workspaces", workspaceIDs).Msg("AccountPulse running")
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&workspaces, "workspaces", "", "Comma-separated workspace IDs to schedule (required)")
	cmd.Flags().StringVar(&host, "host", "", "Ops API bind host (default 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "Ops API port (default 8080 or HTTP_PORT)")
	_ = cmd.MarkFlagRequired("workspaces")
	return cmd
}

func splitWorkspaces(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
