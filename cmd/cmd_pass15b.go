// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/passes/pass15b"
)

var pass15bOptions = struct {
	traceOptions
	Concurrency int
	SelectLimit int
	MaxRetries  int
	Months      int
}{}

var pass15bCmd = &cobra.Command{
	Use:   "pass15b",
	Short: "Run the satellite NDVI trend enrichment scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		summary, err := pass15b.Run(ctx, pass15b.Deps{
			DSN:         cfg.DatabaseDSN,
			Satellite:   newSatelliteClient(ctx, cfg, pass15bOptions.traceOptions),
			Fallback:    newSatelliteFallbackClient(cfg, pass15bOptions.traceOptions),
			Months:      pass15bOptions.Months,
			Concurrency: pass15bOptions.Concurrency,
			SelectLimit: pass15bOptions.SelectLimit,
			MaxRetries:  pass15bOptions.MaxRetries,
		})
		if err != nil {
			return err
		}

		fmt.Println(summary.String())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pass15bCmd)

	pass15bCmd.Flags().IntVar(&pass15bOptions.Concurrency, "concurrency", pass15b.DefaultConcurrency, "Number of parcels scanned concurrently")
	pass15bCmd.Flags().IntVar(&pass15bOptions.SelectLimit, "select-limit", pass15b.DefaultSelectLimit, "Maximum parcels selected per run")
	pass15bCmd.Flags().IntVar(&pass15bOptions.MaxRetries, "max-retries", 2, "Maximum attempts, first try included, for a per-parcel fetch that fails transiently")
	pass15bCmd.Flags().IntVar(&pass15bOptions.Months, "months", pass15b.DefaultMonths, "Lookback window requested from the statistics endpoint")
	pass15bCmd.Flags().BoolVar(&pass15bOptions.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	pass15bCmd.Flags().BoolVar(&pass15bOptions.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
