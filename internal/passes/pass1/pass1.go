// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package pass1 runs the bulk NDVI+flood batch: the free, unlimited aerial
// fast-identify plus the flood hazard lookup, fanned out across a bounded
// worker pool per parcel that has not yet been scanned.
package pass1

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/parceldistress/sentinel/internal/evidence"
	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/passes"
	"github.com/parceldistress/sentinel/internal/scoring"
	"github.com/parceldistress/sentinel/internal/sources/aerial"
	"github.com/parceldistress/sentinel/internal/sources/flood"
	"github.com/parceldistress/sentinel/internal/store"
)

// SentinelWorthyThreshold is the distress-score cutoff (on the 0-10 scale)
// at or above which a parcel is marked sentinel_worthy. A fired neglect flag
// marks the parcel regardless of score. Exported so the on-demand scan
// handlers apply the exact same cutoff the batch uses.
const SentinelWorthyThreshold = 5.0

// DefaultConcurrency targets roughly 10 parcels/s against the free
// aerial and flood endpoints.
const DefaultConcurrency = 10

// DefaultSelectLimit bounds how many parcels a single Run call selects.
const DefaultSelectLimit = 50_000

// Deps are the collaborators Run needs: the shared clients (one HTTP
// session each, safe for concurrent GETs) and the database DSN used to
// open one connection per selection and one per flush.
type Deps struct {
	DSN         string
	Aerial      *aerial.Client
	Flood       *flood.Client
	Concurrency int
	SelectLimit int
	MaxRetries  int
}

type parcelResult struct {
	id      model.Identity
	band    model.Pass1Band
	flagged bool
}

// Run selects every parcel that has not reached scan_pass 1, scores it from
// aerial NDVI + flood zone evidence, and persists the result in small
// committed batches.
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

	db, err := store.Open(deps.DSN)
	if err != nil {
		return passes.Summary{}, err
	}

	parcels, err := store.NewRepository(db).SelectForPass1(ctx, limit)

	db.Close()

	if err != nil {
		return passes.Summary{}, fmt.Errorf("selecting pass1 candidates: %w", err)
	}

	log.Printf("pass1: %d parcels selected", len(parcels))

	results := fanOut(ctx, deps, concurrency, maxRetries, parcels)

	var summary passes.Summary

	err = store.WithFlushes(ctx, deps.DSN, results, func(ctx context.Context, repo store.Repository, chunk []parcelResult) error {
		for _, r := range chunk {
			if upErr := repo.UpsertPass1Band(ctx, r.id, r.band); upErr != nil {
				return upErr
			}

			summary.Scanned++

			if r.flagged {
				summary.Flagged++
			}

			if r.band.ScanError != "" {
				summary.Errors++
			}
		}

		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("flushing pass1 results: %w", err)
	}

	log.Printf("pass1 complete - %s", summary)

	return summary, nil
}

func fanOut(ctx context.Context, deps Deps, concurrency, maxRetries int, parcels []model.Parcel) []parcelResult {
	n := len(parcels)
	results := make([]parcelResult, n)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("pass1"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	sem := semaphore.NewWeighted(int64(concurrency))

	var wg sync.WaitGroup

	for i, p := range parcels {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: stop launching new work, but already
			// in-flight goroutines still finish and flush their results.
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
	var bands aerial.BandValues

	var zone flood.Zone

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return passes.WithRetry(gctx, maxRetries, func() error {
			b, err := deps.Aerial.IdentifyFast(gctx, p.Point)
			bands = b

			return err
		})
	})

	g.Go(func() error {
		return passes.WithRetry(gctx, maxRetries, func() error {
			z, err := deps.Flood.Lookup(gctx, p.Point)
			zone = z

			return err
		})
	})

	id := p.Identity

	if err := g.Wait(); err != nil {
		return parcelResult{
			id: id,
			band: model.Pass1Band{
				ScanPass:  1,
				ScanDate:  time.Now().UTC(),
				ScanError: err.Error(),
			},
		}
	}

	bundle := evidence.Bundle{
		CurrentNDVI:   bands.NDVI(),
		FloodRiskTier: zone.RiskTier(),
	}

	band, anyFired := ScorePass1Band(bundle, zone.FldZone, zone.SFHATF == "T")

	return parcelResult{id: id, band: band, flagged: anyFired}
}

// ScorePass1Band runs the full flag evaluation over bundle and assembles
// the persisted Pass-1 band. Shared by the batch orchestrator and the
// on-demand scan handlers so flag evaluation and sentinel_worthy selection
// never drift between the two call sites.
func ScorePass1Band(bundle evidence.Bundle, floodZone string, specialHazard bool) (model.Pass1Band, bool) {
	flags := evidence.EvaluateAll(bundle)
	score := scoring.DistressScore(flags)

	flagByName := make(map[string]evidence.Flag, len(flags))
	for _, f := range flags {
		flagByName[f.Name] = f
	}

	neglect := flagByName["vegetation_neglect"]
	anyFired := false

	for _, f := range flags {
		if f.Fired {
			anyFired = true

			break
		}
	}

	band := model.Pass1Band{
		NDVI:          bundle.CurrentNDVI,
		NDVICategory:  passes.NDVICategory(bundle.CurrentNDVI),
		FloodZone:     floodZone,
		SpecialHazard: specialHazard,
		FloodRiskTier: bundle.FloodRiskTier,
		DistressScore: score,

		FlagOvergrowth: flagByName["vegetation_overgrowth"].Fired,
		FlagNeglect:    neglect.Fired,
		FlagFlood:      flagByName["flood_risk"].Fired,
		FlagStructural: flagByName["structural_change"].Fired,
		ConfOvergrowth: flagByName["vegetation_overgrowth"].Confidence,
		ConfNeglect:    neglect.Confidence,
		ConfFlood:      flagByName["flood_risk"].Confidence,
		ConfStructural: flagByName["structural_change"].Confidence,

		ScanPass:       1,
		ScanDate:       time.Now().UTC(),
		SentinelWorthy: score >= SentinelWorthyThreshold || neglect.Fired,
	}

	return band, anyFired
}
