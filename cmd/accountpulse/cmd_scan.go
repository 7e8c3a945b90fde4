package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getbeton/accountpulse/internal/domain"
	"github.com/getbeton/accountpulse/internal/metrics"
	"github.com/getbeton/accountpulse/internal/process"
)

func newScanCmd() *cobra.Command {
	var (
		workspaceID string
		category    string
		source      string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run signal detection across a workspace",
		Long:  "Runs every registered detector against the workspace's active accounts and persists the surviving signals.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps(cmd.Context(), metrics.NewNopCollector())
			if err != nil {
				return err
			}
			defer d.close()

			opts := process.Options{
				Category: domain.SignalCategory(category),
				Source:   source,
			}
			result, err := d.processor.ProcessWorkspace(cmd.Context(), workspaceID, opts)
			if err != nil {
				return fmt.Errorf("scan workspace %s: %w", workspaceID, err)
			}

			log.Info().
				Int("accounts", result.AccountsTotal).
				Int("created", result.SignalsCreated).
				Int("skipped", result.SignalsSkipped).
				Int("detector_failures", result.DetectorsFailed).
				Dur("elapsed", result.Elapsed).
				Msg("Scan complete")

			printScanTable(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace to scan (required)")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to one detector category (expansion|churn_risk)")
	cmd.Flags().StringVar(&source, "source", "", "Override the signal source tag")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func printScanTable(result *process.BatchResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Metric", "Value"})

	_ = table.Append([]string{"Accounts scanned", fmt.Sprintf("%d", result.AccountsTotal)})
	_ = table.Append([]string{"Signals created", fmt.Sprintf("%d", result.SignalsCreated)})
	_ = table.Append([]string{"Signals skipped (dedup)", fmt.Sprintf("%d", result.SignalsSkipped)})
	_ = table.Append([]string{"Detector failures", fmt.Sprintf("%d", result.DetectorsFailed)})
	_ = table.Append([]string{"Failed accounts", fmt.Sprintf("%d", len(result.FailedAccounts))})
	_ = table.Render()

	for accountID, reason := range result.FailedAccounts {
		log.Warn().Str("account", accountID).Str("reason", reason).Msg("Account failed during scan")
	}
}
