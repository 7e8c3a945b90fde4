package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getbeton/accountpulse/internal/metrics"
)

func newAggregateCmd() *cobra.Command {
	var (
		workspaceID string
		signalType  string
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute signal performance rollups",
		Long:  "Rebuilds the per-signal-type performance aggregates (precision, recall, lift, confidence) for a workspace from recorded outcomes.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(cmd.Context(), metrics.NewNopCollector())
			if err != nil {
				return err
			}
			defer d.close()

			now := time.Now()
			if signalType != "" {
				if _, err := d.aggregator.Recompute(cmd.Context(), workspaceID, signalType, now); err != nil {
					return fmt.Errorf("recompute %s: %w", signalType, err)
				}
			} else {
				if err := d.aggregator.RecomputeAll(cmd.Context(), workspaceID, now); err != nil {
					return fmt.Errorf("recompute all: %w", err)
				}
			}
			log.Info().Str("workspace", workspaceID).Msg("Aggregates recomputed")

			return printAggregates(cmd, d, workspaceID, signalType)
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace to aggregate (required)")
	cmd.Flags().StringVar(&signalType, "type", "", "Single signal type (default: all configured)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func printAggregates(cmd *cobra.Command, d *deps, workspaceID, signalType string) error {
	types := []string{signalType}
	if signalType == "" {
		cfg := d.provider.ConfigFor(workspaceID)
		types = types[:0]
		for name := range cfg.Signals {
			types = append(types, name)
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Signal", "Count", "Precision", "Recall", "F1", "Lift", "Confidence", "Grade"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	for _, name := range types {
		agg, err := d.aggregates.Get(cmd.Context(), workspaceID, name)
		if err != nil {
			return fmt.Errorf("read aggregate %s: %w", name, err)
		}
		if agg == nil {
			continue
		}
		_ = table.Append([]string{
			agg.SignalType,
			fmt.Sprintf("%d", agg.TotalCount),
			fmt.Sprintf("%.2f", agg.AvgPrecision),
			fmt.Sprintf("%.2f", agg.AvgRecall),
			fmt.Sprintf("%.2f", agg.AvgF1),
			fmt.Sprintf("%.2fx", agg.AvgLift),
			fmt.Sprintf("%.2f", agg.ConfidenceScore),
			agg.QualityGrade,
		})
	}
	return table.Render()
}
