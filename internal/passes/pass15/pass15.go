// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package pass15 runs the historical NDVI slope batch: low-concurrency STAC
// reads, a closed-form OLS regression per parcel, then a single
// county-scoped percentile-rank + composite recomputation once every
// parcel in a touched county has a slope.
package pass15

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/semaphore"

	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/passes"
	"github.com/parceldistress/sentinel/internal/scoring"
	"github.com/parceldistress/sentinel/internal/sources/historical"
	"github.com/parceldistress/sentinel/internal/store"
)

// DefaultConcurrency is deliberately low: STAC cloud-optimized raster reads
// are heavy per point, unlike Pass 1's cheap fast-identify calls.
const DefaultConcurrency = 3

// DefaultSelectLimit bounds how many parcels a single Run call selects.
const DefaultSelectLimit = 20_000

// Deps are the collaborators Run needs. RecomputeOnly skips the STAC reads
// entirely and re-runs the county composite recomputation over every county
// that already has slopes, for when the composite formula inputs (flood
// tiers, backfilled slopes) changed without any new vintage data.
type Deps struct {
	DSN           string
	Historical    *historical.Client
	Concurrency   int
	SelectLimit   int
	MaxRetries    int
	RecomputeOnly bool
}

type parcelResult struct {
	id    model.Identity
	band  model.HistoricalBand
	err   error
	valid bool
}

// Run selects every parcel that has reached Pass 1 but has no recorded
// slope, computes the slope and vintage span, persists the historical
// band, then recomputes the distress composite for every county touched.
func Run(ctx context.Context, deps Deps) (passes.Summary, error) {
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
		maxRetries = 3
	}

	if deps.RecomputeOnly {
		return passes.Summary{}, recomputeAllCounties(ctx, deps.DSN)
	}

	db, err := store.Open(deps.DSN)
	if err != nil {
		return passes.Summary{}, err
	}

	parcels, err := store.NewRepository(db).SelectForHistorical(ctx, limit)

	db.Close()

	if err != nil {
		return passes.Summary{}, fmt.Errorf("selecting pass1.5 candidates: %w", err)
	}

	log.Printf("pass15: %d parcels selected", len(parcels))

	passes.SortByH3Locality(parcels)

	results := fanOut(ctx, deps, concurrency, maxRetries, parcels)

	var summary passes.Summary

	counties := make(map[[2]string]bool)

	err = store.WithFlushes(ctx, deps.DSN, results, func(ctx context.Context, repo store.Repository, chunk []parcelResult) error {
		for _, r := range chunk {
			if upErr := repo.UpsertHistoricalBand(ctx, r.id, r.band); upErr != nil {
				return upErr
			}

			summary.Scanned++

			if r.valid {
				summary.Flagged++
			}

			if r.err != nil {
				summary.Errors++
			}

			counties[[2]string{r.id.County, r.id.StateCode}] = true
		}

		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("flushing pass1.5 results: %w", err)
	}

	if err := recomputeCounties(ctx, deps.DSN, counties); err != nil {
		return summary, fmt.Errorf("recomputing composites: %w", err)
	}

	log.Printf("pass15 complete - %s", summary)

	return summary, nil
}

func recomputeAllCounties(ctx context.Context, dsn string) error {
	db, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	counties, err := store.DistinctCounties(ctx, db)
	if err != nil {
		return err
	}

	log.Printf("pass15: recomputing composites for %d counties", len(counties))

	for _, key := range counties {
		if err := store.RecomputeCountyComposite(ctx, db, key[0], key[1]); err != nil {
			return err
		}
	}

	return nil
}

func recomputeCounties(ctx context.Context, dsn string, counties map[[2]string]bool) error {
	if len(counties) == 0 {
		return nil
	}

	db, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	for key := range counties {
		if err := store.RecomputeCountyComposite(ctx, db, key[0], key[1]); err != nil {
			return err
		}
	}

	return nil
}

func fanOut(ctx context.Context, deps Deps, concurrency, maxRetries int, parcels []model.Parcel) []parcelResult {
	n := len(parcels)
	results := make([]parcelResult, n)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("pass15"),
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

			results[i] = processParcel(ctx, deps, maxRetries, p)

			if bar != nil {
				_ = bar.Add(1)
			}
		}(i, p)
	}

	wg.Wait()

	return results
}

func processParcel(ctx context.Context, deps Deps, maxRetries int, p model.Parcel) parcelResult {
	var seq scoring.NDVISequence

	err := passes.WithRetry(ctx, maxRetries, func() error {
		s, err := deps.Historical.Vintages(ctx, p.Point)
		seq = s

		return err
	})
	if err != nil {
		return parcelResult{id: p.Identity, err: err}
	}

	points := scoring.CollectDedup(seq)

	slope, ok := scoring.SlopeRegression(points)

	yearSpan := 0
	if len(points) > 0 {
		minYear, maxYear := points[0].Year, points[0].Year

		for _, pt := range points {
			if pt.Year < minYear {
				minYear = pt.Year
			}

			if pt.Year > maxYear {
				maxYear = pt.Year
			}
		}

		yearSpan = maxYear - minYear
	}

	band := model.HistoricalBand{
		NDVISlope5yr:   slope,
		NDVISlopeValid: ok,
		VintageCount:   len(points),
		YearSpan:       yearSpan,
	}

	return parcelResult{id: p.Identity, band: band, valid: ok}
}
