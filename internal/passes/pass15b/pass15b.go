// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package pass15b runs the satellite NDVI enrichment batch over parcels
// Pass 1 flagged sentinel_worthy: a quota-bounded monthly statistics series
// per parcel, a trend classification, and a fallback to the free
// aerial-shaped endpoint when the primary series comes back empty.
package pass15b

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/semaphore"

	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/passes"
	"github.com/parceldistress/sentinel/internal/scoring"
	"github.com/parceldistress/sentinel/internal/sources/aerial"
	"github.com/parceldistress/sentinel/internal/sources/satellite"
	"github.com/parceldistress/sentinel/internal/store"
)

// Trend directions, per the satellite band's trend_direction column.
const (
	TrendRising       = "rising"
	TrendFalling      = "falling"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient"
)

// trendEpsilon is the minimum monthly NDVI slope magnitude for a series to
// be classified rising/falling rather than stable.
const trendEpsilon = 0.01

// DefaultMonths is the lookback window requested from the statistics
// endpoint per parcel.
const DefaultMonths = 12

// DefaultConcurrency is bounded primarily by the satellite client's own
// 300 req/min limiter; a handful of workers keeps that limiter saturated
// without piling up goroutines waiting on it.
const DefaultConcurrency = 5

// DefaultSelectLimit bounds how many parcels a single Run call selects.
const DefaultSelectLimit = 20_000

// Deps are the collaborators Run needs. Fallback is a second aerial-shaped
// client pointed at the free fallback endpoint, used only when the primary
// satellite series comes back empty for a point.
type Deps struct {
	DSN         string
	Satellite   *satellite.Client
	Fallback    *aerial.Client
	Months      int
	Concurrency int
	SelectLimit int
	MaxRetries  int
}

type parcelResult struct {
	id   model.Identity
	band model.SatelliteBand
}

// Run selects every sentinel-worthy parcel not yet enriched, classifies its
// NDVI trend from the satellite statistics series (or the free fallback
// when the series is empty), and advances scan_pass to 2.
func Run(ctx context.Context, deps Deps) (passes.Summary, error) {
	months := deps.Months
	if months == 0 {
		months = DefaultMonths
	}

	concurrency := deps.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	limit := deps.SelectLimit
	if limit == 0 {
		limit = DefaultSelectLimit
	}

	maxRetries := deps.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}

	db, err := store.Open(deps.DSN)
	if err != nil {
		return passes.Summary{}, err
	}

	parcels, err := store.NewRepository(db).SelectSentinelWorthy(ctx, limit)

	db.Close()

	if err != nil {
		return passes.Summary{}, fmt.Errorf("selecting pass1.5b candidates: %w", err)
	}

	log.Printf("pass15b: %d sentinel-worthy parcels selected", len(parcels))

	passes.SortByH3Locality(parcels)

	results := fanOut(ctx, deps, concurrency, maxRetries, months, parcels)

	var summary passes.Summary

	err = store.WithFlushes(ctx, deps.DSN, results, func(ctx context.Context, repo store.Repository, chunk []parcelResult) error {
		for _, r := range chunk {
			if upErr := repo.UpsertSatelliteBand(ctx, r.id, r.band); upErr != nil {
				return upErr
			}

			summary.Scanned++

			if r.band.TrendDirection == TrendRising || r.band.TrendDirection == TrendFalling {
				summary.Flagged++
			}

			if r.band.ScanError != "" {
				summary.Errors++
			}
		}

		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("flushing pass1.5b results: %w", err)
	}

	log.Printf("pass15b complete - %s", summary)

	return summary, nil
}

func fanOut(ctx context.Context, deps Deps, concurrency, maxRetries, months int, parcels []model.Parcel) []parcelResult {
	n := len(parcels)
	results := make([]parcelResult, n)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("pass15b"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	sem := semaphore.NewWeighted(int64(concurrency))

	var wg sync.WaitGroup

	for i, p := range parcels {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)

		go func(i int, p model.Parcel) {
			defer wg.Done()
			defer sem.Release(1)

			results[i] = processParcel(ctx, deps, maxRetries, months, p)

			if bar != nil {
				_ = bar.Add(1)
			}
		}(i, p)
	}

	wg.Wait()

	return results
}

func processParcel(ctx context.Context, deps Deps, maxRetries, months int, p model.Parcel) parcelResult {
	var series []satellite.MonthlyNDVI

	err := passes.WithRetry(ctx, maxRetries, func() error {
		s, err := deps.Satellite.StatsNDVI(ctx, p.Point, months)
		series = s

		return err
	})
	if err != nil {
		return parcelResult{id: p.Identity, band: model.SatelliteBand{
			SentinelScanDate: time.Now().UTC(),
			ScanError:        err.Error(),
		}}
	}

	if len(series) == 0 {
		return fallbackResult(ctx, deps, maxRetries, p)
	}

	return parcelResult{id: p.Identity, band: Classify(series, "satellite")}
}

func fallbackResult(ctx context.Context, deps Deps, maxRetries int, p model.Parcel) parcelResult {
	if deps.Fallback == nil {
		return parcelResult{id: p.Identity, band: model.SatelliteBand{
			TrendDirection:   TrendInsufficient,
			Source:           "none",
			SentinelScanDate: time.Now().UTC(),
			ScanError:        "satellite series empty and no fallback configured",
		}}
	}

	var bands aerial.BandValues

	err := passes.WithRetry(ctx, maxRetries, func() error {
		b, err := deps.Fallback.IdentifyFast(ctx, p.Point)
		bands = b

		return err
	})
	if err != nil {
		return parcelResult{id: p.Identity, band: model.SatelliteBand{
			SentinelScanDate: time.Now().UTC(),
			ScanError:        err.Error(),
		}}
	}

	ndvi := bands.NDVI()

	return parcelResult{id: p.Identity, band: model.SatelliteBand{
		TrendDirection:   TrendInsufficient,
		LatestNDVI:       ndvi,
		MeanNDVI:         ndvi,
		MonthCount:       1,
		Source:           "fallback",
		SentinelScanDate: time.Now().UTC(),
	}}
}

// Classify derives a trend direction and the rest of the satellite band
// from a monthly NDVI series. Exported so the on-demand enrich-satellite
// scan handler applies the exact same classification the batch uses.
func Classify(series []satellite.MonthlyNDVI, source string) model.SatelliteBand {
	points := make([]scoring.YearNDVI, 0, len(series))

	var sum, latest float64

	latestKey := -1

	for _, m := range series {
		key := m.Year*12 + m.Month
		points = append(points, scoring.YearNDVI{Year: key, NDVI: m.Mean})
		sum += m.Mean

		if key > latestKey {
			latestKey = key
			latest = m.Mean
		}
	}

	mean := sum / float64(len(series))

	trend := TrendInsufficient

	if slope, ok := scoring.SlopeRegression(points); ok {
		switch {
		case slope > trendEpsilon:
			trend = TrendRising
		case slope < -trendEpsilon:
			trend = TrendFalling
		default:
			trend = TrendStable
		}

		return model.SatelliteBand{
			TrendDirection:   trend,
			Slope:            slope,
			LatestNDVI:       latest,
			MonthCount:       len(series),
			MeanNDVI:         mean,
			Source:           source,
			SentinelScanDate: time.Now().UTC(),
		}
	}

	return model.SatelliteBand{
		TrendDirection:   trend,
		LatestNDVI:       latest,
		MonthCount:       len(series),
		MeanNDVI:         mean,
		Source:           source,
		SentinelScanDate: time.Now().UTC(),
	}
}
