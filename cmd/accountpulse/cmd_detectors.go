package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/detect"
	"github.com/getbeton/accountpulse/internal/domain"
)

func newDetectorsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "List the registered signal detectors",
		Long:  "Prints the detector catalog with the weight each signal type carries in the default scoring config. Needs no database.",
		RunE: func(_ *cobra.Command, _ []string) error {
			registry := detect.NewRegistry()
			cfg := config.DefaultScoringConfig()
			if flagConfig != "" {
				provider, err := config.Load(flagConfig)
				if err != nil {
					return fmt.Errorf("load config %s: %w", flagConfig, err)
				}
				cfg = provider.ConfigFor("")
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header([]string{"Detector", "Category", "Weight", "Description"})

			for _, d := range registry.ByCategory(domain.SignalCategory(category)) {
				_ = table.Append([]string{
					d.Name,
					string(d.Category),
					fmt.Sprintf("%.0f", cfg.SignalWeight(d.Name)),
					d.Description,
				})
			}
			return table.Render()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category (expansion|churn_risk)")
	return cmd
}
