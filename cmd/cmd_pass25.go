// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/passes/pass25"
)

var pass25Options = struct {
	SelectLimit int
}{}

var pass25Cmd = &cobra.Command{
	Use:   "pass25",
	Short: "Run the conviction-score fusion over distress composite, motivation signals and vacancy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		summary, err := pass25.Run(ctx, pass25.Deps{
			DSN:         cfg.DatabaseDSN,
			SelectLimit: pass25Options.SelectLimit,
		})
		if err != nil {
			return err
		}

		fmt.Println(summary.String())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pass25Cmd)

	pass25Cmd.Flags().IntVar(&pass25Options.SelectLimit, "select-limit", pass25.DefaultSelectLimit, "Maximum parcels selected per run")
}
