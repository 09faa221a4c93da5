// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/passes/pass2"
)

var pass2Options = struct {
	traceOptions
	SelectLimit        int
	CompositeThreshold float64
}{}

var pass2Cmd = &cobra.Command{
	Use:   "pass2",
	Short: "Run the carrier-confirmed vacancy check",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		vacancyClient, err := newVacancyClient(ctx, cfg, pass2Options.traceOptions)
		if err != nil {
			return fmt.Errorf("building vacancy client: %w", err)
		}

		summary, err := pass2.Run(ctx, pass2.Deps{
			DSN:                cfg.DatabaseDSN,
			Vacancy:            vacancyClient,
			CompositeThreshold: pass2Options.CompositeThreshold,
			SelectLimit:        pass2Options.SelectLimit,
		})
		if err != nil {
			return err
		}

		fmt.Println(summary.String())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pass2Cmd)

	pass2Cmd.Flags().IntVar(&pass2Options.SelectLimit, "select-limit", pass2.DefaultSelectLimit, "Maximum parcels selected per run")
	pass2Cmd.Flags().Float64Var(&pass2Options.CompositeThreshold, "composite-threshold", pass2.DefaultCompositeThreshold, "Minimum distress composite a parcel needs before a vacancy lookup is spent on it")
	pass2Cmd.Flags().BoolVar(&pass2Options.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	pass2Cmd.Flags().BoolVar(&pass2Options.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
