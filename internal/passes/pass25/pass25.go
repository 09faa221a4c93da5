// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package pass25 runs the conviction-fusion batch: reweighted-average
// fusion of the distress composite and the externally produced motivation
// signals, plus a carrier-vacancy bonus, landing on the canonical parcel
// row and backfilling the motivation_scores table.
package pass25

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/passes"
	"github.com/parceldistress/sentinel/internal/scoring"
	"github.com/parceldistress/sentinel/internal/store"
)

// DefaultSelectLimit bounds how many parcels a single Run call selects.
const DefaultSelectLimit = 50_000

// Deps are the collaborators Run needs.
type Deps struct {
	DSN         string
	SelectLimit int
}

type fusedRow struct {
	id    model.Identity
	band  model.ConvictionBand
	score model.MotivationScoreRow
}

// Run selects every parcel with a recorded distress composite lacking a
// conviction score, fuses it with its motivation signals and vacancy
// confidence, persists the conviction band in small committed batches, and
// replaces each touched county's motivation_scores backfill in one
// DELETE+INSERT per county.
func Run(ctx context.Context, deps Deps) (passes.Summary, error) {
	limit := deps.SelectLimit
	if limit == 0 {
		limit = DefaultSelectLimit
	}

	db, err := store.Open(deps.DSN)
	if err != nil {
		return passes.Summary{}, err
	}

	parcels, err := store.NewRepository(db).SelectForConviction(ctx, limit)

	db.Close()

	if err != nil {
		return passes.Summary{}, fmt.Errorf("selecting pass2.5 candidates: %w", err)
	}

	log.Printf("pass25: %d candidates selected", len(parcels))

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(parcels),
			progressbar.OptionSetDescription("pass25"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var summary passes.Summary

	byCounty := make(map[[2]string][]model.MotivationScoreRow)

	err = store.WithFlushes(ctx, deps.DSN, parcels, func(ctx context.Context, repo store.Repository, chunk []model.Parcel) error {
		for _, p := range chunk {
			signals, err := repo.SelectMotivationSignals(ctx, p.Identity)
			if err != nil {
				return fmt.Errorf("reading motivation signals for %s: %w", p.ParcelID, err)
			}

			row := fuse(p, signals)

			if upErr := repo.UpsertConvictionBand(ctx, p.Identity, row.band); upErr != nil {
				return upErr
			}

			key := [2]string{p.County, p.StateCode}
			byCounty[key] = append(byCounty[key], row.score)

			summary.Scanned++

			if row.band.ConvictionScore >= 7.0 {
				summary.Flagged++
			}

			if bar != nil {
				_ = bar.Add(1)
			}
		}

		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("flushing pass25 results: %w", err)
	}

	db, err = store.Open(deps.DSN)
	if err != nil {
		return summary, err
	}
	defer db.Close()

	for key, rows := range byCounty {
		if err := store.ReplaceMotivationScores(ctx, db, key[0], key[1], rows); err != nil {
			return summary, fmt.Errorf("replacing motivation_scores for %s/%s: %w", key[0], key[1], err)
		}
	}

	log.Printf("pass25 complete - %s", summary)

	return summary, nil
}

func fuse(p model.Parcel, signals []model.MotivationSignal) fusedRow {
	now := time.Now().UTC()

	dsComp := scoring.DSComponent(p.History.DistressComposite, p.History.CompositeValid)

	var mcRaw float64

	codes := make([]string, 0, len(signals))

	for _, s := range signals {
		mcRaw += s.Confidence
		codes = append(codes, s.Code)
	}

	mcComp := scoring.MCComponent(mcRaw, len(signals) > 0)

	conviction, base, bonus := scoring.Conviction(dsComp, mcComp, p.Vacancy.FlagVacancy, p.Vacancy.VacancyConfidence)

	components := store.ComponentsJSON(map[string]any{
		"distress_composite_present": dsComp.Present,
		"mc_present":                 mcComp.Present,
		"vacancy_confirmed":          p.Vacancy.FlagVacancy,
	})

	band := model.ConvictionBand{
		ConvictionScore:        conviction,
		ConvictionBaseScore:    base,
		ConvictionVacancyBonus: bonus,
		ConvictionMCScore:      mcComp.Value,
		ConvictionComponents:   components,
		MCSignalCount:          len(signals),
		MCCodes:                codes,
		ConvictionDate:         now,
	}

	score := model.MotivationScoreRow{
		Identity:    p.Identity,
		ComputedAt:  now,
		MCRaw:       mcRaw,
		SignalCount: len(signals),
		Codes:       codes,
	}

	return fusedRow{id: p.Identity, band: band, score: score}
}
