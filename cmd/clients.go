// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/sources/aerial"
	"github.com/parceldistress/sentinel/internal/sources/flood"
	"github.com/parceldistress/sentinel/internal/sources/highres"
	"github.com/parceldistress/sentinel/internal/sources/historical"
	"github.com/parceldistress/sentinel/internal/sources/satellite"
	"github.com/parceldistress/sentinel/internal/sources/vacancy"
)

// traceOptions are the --trace-http/--trace-http-body flags every scan
// subcommand shares.
type traceOptions struct {
	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
}

func (t traceOptions) writer() io.Writer {
	if t.EnableHTTPTrace || t.EnableHTTPBodyTrace {
		return os.Stderr
	}

	return nil
}

func newAerialClient(cfg *config.Config, t traceOptions) *aerial.Client {
	return aerial.New(aerial.Options{
		BaseURL:     cfg.AerialBaseURL,
		UserAgent:   cfg.UserAgent,
		CacheDir:    cfg.AerialCacheDir,
		TraceWriter: t.writer(),
		TraceBody:   t.EnableHTTPBodyTrace,
	})
}

func newFloodClient(cfg *config.Config, t traceOptions) *flood.Client {
	return flood.New(flood.Options{
		BaseURL:     cfg.FloodBaseURL,
		UserAgent:   cfg.UserAgent,
		TraceWriter: t.writer(),
		TraceBody:   t.EnableHTTPBodyTrace,
	})
}

func newHistoricalClient(cfg *config.Config, t traceOptions) *historical.Client {
	return historical.New(historical.Options{
		BaseURL:     cfg.HistoricalBaseURL,
		UserAgent:   cfg.UserAgent,
		TraceWriter: t.writer(),
		TraceBody:   t.EnableHTTPBodyTrace,
	})
}

func newSatelliteClient(ctx context.Context, cfg *config.Config, t traceOptions) *satellite.Client {
	return satellite.New(ctx, satellite.Options{
		BaseURL:      cfg.SatelliteBaseURL,
		TokenURL:     cfg.SatelliteTokenURL,
		ClientID:     cfg.SatelliteClientID,
		ClientSecret: cfg.SatelliteClientSecret,
		UserAgent:    cfg.UserAgent,
		TraceWriter:  t.writer(),
		TraceBody:    t.EnableHTTPBodyTrace,
	})
}

// newSatelliteFallbackClient builds the free aerial-shaped client pointed
// at the fallback endpoint, used by pass1.5b only when the primary
// satellite series comes back empty for a point.
func newSatelliteFallbackClient(cfg *config.Config, t traceOptions) *aerial.Client {
	return aerial.New(aerial.Options{
		BaseURL:     cfg.SatelliteFallbackBaseURL,
		UserAgent:   cfg.UserAgent,
		CacheDir:    cfg.AerialCacheDir,
		TraceWriter: t.writer(),
		TraceBody:   t.EnableHTTPBodyTrace,
	})
}

func newVacancyClient(ctx context.Context, cfg *config.Config, t traceOptions) (*vacancy.Client, error) {
	return vacancy.New(ctx, vacancy.Options{
		BaseURL:     cfg.VacancyBaseURL,
		TokenURL:    cfg.VacancyTokenURL,
		Accounts:    cfg.VacancyAccounts,
		UserAgent:   cfg.UserAgent,
		DelayMin:    cfg.VacancyDelayMin,
		DelayMax:    cfg.VacancyDelayMax,
		UseTestEP:   cfg.VacancyUseTestEP,
		TraceWriter: t.writer(),
		TraceBody:   t.EnableHTTPBodyTrace,
	})
}

func newHighResClient(cfg *config.Config, t traceOptions) *highres.Client {
	return highres.New(highres.Options{
		BaseURL:     cfg.HighResBaseURL,
		Token:       cfg.HighResToken,
		UserAgent:   cfg.UserAgent,
		TraceWriter: t.writer(),
		TraceBody:   t.EnableHTTPBodyTrace,
	})
}
