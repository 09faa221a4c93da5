// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/passes/pass1"
)

var pass1Options = struct {
	traceOptions
	Concurrency int
	SelectLimit int
	MaxRetries  int
}{}

var pass1Cmd = &cobra.Command{
	Use:   "pass1",
	Short: "Run the bulk aerial NDVI + flood scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		summary, err := pass1.Run(ctx, pass1.Deps{
			DSN:         cfg.DatabaseDSN,
			Aerial:      newAerialClient(cfg, pass1Options.traceOptions),
			Flood:       newFloodClient(cfg, pass1Options.traceOptions),
			Concurrency: pass1Options.Concurrency,
			SelectLimit: pass1Options.SelectLimit,
			MaxRetries:  pass1Options.MaxRetries,
		})
		if err != nil {
			return err
		}

		fmt.Println(summary.String())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pass1Cmd)

	pass1Cmd.Flags().IntVar(&pass1Options.Concurrency, "concurrency", pass1.DefaultConcurrency, "Number of parcels scanned concurrently")
	pass1Cmd.Flags().IntVar(&pass1Options.SelectLimit, "select-limit", pass1.DefaultSelectLimit, "Maximum parcels selected per run")
	pass1Cmd.Flags().IntVar(&pass1Options.MaxRetries, "max-retries", 3, "Maximum attempts, first try included, for a per-parcel fetch that fails transiently")
	pass1Cmd.Flags().BoolVar(&pass1Options.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	pass1Cmd.Flags().BoolVar(&pass1Options.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
