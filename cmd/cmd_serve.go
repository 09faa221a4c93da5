// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parceldistress/sentinel/internal/api"
	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/sources/vacancy"
	"github.com/parceldistress/sentinel/internal/store"
)

var serveOptions = struct {
	traceOptions
	Addr string
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the parcel query surface and on-demand scan endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		db, err := store.Open(cfg.DatabaseDSN)
		if err != nil {
			return err
		}

		if err := store.Migrate(db); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}

		// Unlike pass2, serve must still start without vacancy credentials:
		// the check-vacancy endpoint degrades to a 503 rather than the
		// whole query surface refusing to come up.
		var vacancyClient *vacancy.Client

		vacancyClient, err = newVacancyClient(ctx, cfg, serveOptions.traceOptions)
		if err != nil && !errs.IsAuth(err) {
			return fmt.Errorf("building vacancy client: %w", err)
		}

		server := api.NewServer(api.Deps{
			DB:         db,
			Config:     cfg,
			Aerial:     newAerialClient(cfg, serveOptions.traceOptions),
			Flood:      newFloodClient(cfg, serveOptions.traceOptions),
			Historical: newHistoricalClient(cfg, serveOptions.traceOptions),
			Satellite:  newSatelliteClient(ctx, cfg, serveOptions.traceOptions),
			Vacancy:    vacancyClient,
			HighRes:    newHighResClient(cfg, serveOptions.traceOptions),
		})

		return server.Run(serveOptions.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOptions.Addr, "addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolVar(&serveOptions.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	serveCmd.Flags().BoolVar(&serveOptions.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
