// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/passes/pass15"
)

var pass15Options = struct {
	traceOptions
	Concurrency   int
	SelectLimit   int
	MaxRetries    int
	RecomputeOnly bool
}{}

var pass15Cmd = &cobra.Command{
	Use:   "pass15",
	Short: "Run the 5-year NDVI slope + distress composite scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		summary, err := pass15.Run(ctx, pass15.Deps{
			DSN:           cfg.DatabaseDSN,
			Historical:    newHistoricalClient(cfg, pass15Options.traceOptions),
			Concurrency:   pass15Options.Concurrency,
			SelectLimit:   pass15Options.SelectLimit,
			MaxRetries:    pass15Options.MaxRetries,
			RecomputeOnly: pass15Options.RecomputeOnly,
		})
		if err != nil {
			return err
		}

		fmt.Println(summary.String())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pass15Cmd)

	pass15Cmd.Flags().IntVar(&pass15Options.Concurrency, "concurrency", pass15.DefaultConcurrency, "Number of parcels scanned concurrently")
	pass15Cmd.Flags().IntVar(&pass15Options.SelectLimit, "select-limit", pass15.DefaultSelectLimit, "Maximum parcels selected per run")
	pass15Cmd.Flags().IntVar(&pass15Options.MaxRetries, "max-retries", 3, "Maximum attempts, first try included, for a per-parcel fetch that fails transiently")
	pass15Cmd.Flags().BoolVar(&pass15Options.RecomputeOnly, "recompute-only", false, "Skip STAC reads and re-run the county composite recomputation over existing slopes")
	pass15Cmd.Flags().BoolVar(&pass15Options.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	pass15Cmd.Flags().BoolVar(&pass15Options.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
