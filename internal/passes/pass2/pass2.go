// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package pass2 runs the carrier-confirmed vacancy check: one address at a
// time, serially, since the vacancy client's quota is token-scoped per
// account and Lookup already owns the jitter/backoff between calls.
package pass2

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/parceldistress/sentinel/internal/errs"
	"github.com/parceldistress/sentinel/internal/evidence"
	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/passes"
	"github.com/parceldistress/sentinel/internal/sources/vacancy"
	"github.com/parceldistress/sentinel/internal/store"
)

// DefaultSelectLimit bounds how many parcels a single Run call selects.
// The vacancy service's 60/hour-per-account quota makes large select
// limits academic; this just caps memory for the candidate slice.
const DefaultSelectLimit = 5_000

// DefaultCompositeThreshold is the distress-composite cutoff a parcel must
// reach before it is worth spending a quota-bounded vacancy lookup on.
const DefaultCompositeThreshold = 7.5

// Deps are the collaborators Run needs.
type Deps struct {
	DSN                string
	Vacancy            *vacancy.Client
	CompositeThreshold float64
	SelectLimit        int
}

// vacancyResult is one parcel's outcome from the serial lookup loop,
// carrying everything the later flush needs to persist it without holding
// a database connection open across the lookup's jitter sleep.
type vacancyResult struct {
	id      model.Identity
	skipped bool
	band    model.VacancyBand
	account string
	vacant  bool
	dpv     bool
	errCode string
}

// Run selects every parcel at or above the composite cutoff lacking a
// vacancy check, looks each one up serially, and persists the resulting bands plus
// best-effort audit rows in small committed batches. The lookup loop holds
// no database connection: deps.Vacancy.Lookup sleeps a mandatory 30-55s
// jitter between calls, and a connection left open across that sleep is
// exactly the kind of long-lived connection the managed host drops.
func Run(ctx context.Context, deps Deps) (passes.Summary, error) {
	limit := deps.SelectLimit
	if limit == 0 {
		limit = DefaultSelectLimit
	}

	threshold := deps.CompositeThreshold
	if threshold == 0 {
		threshold = DefaultCompositeThreshold
	}

	db, err := store.Open(deps.DSN)
	if err != nil {
		return passes.Summary{}, err
	}

	parcels, err := store.NewRepository(db).SelectForVacancy(ctx, threshold, limit)

	db.Close()

	if err != nil {
		return passes.Summary{}, fmt.Errorf("selecting pass2 candidates: %w", err)
	}

	log.Printf("pass2: %d candidates selected", len(parcels))

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(parcels),
			progressbar.OptionSetDescription("pass2"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]vacancyResult, 0, len(parcels))

	var authErr error

	for _, p := range parcels {
		address, city, zip, ok := ResolveMailingAddress(p)
		if !ok {
			results = append(results, vacancyResult{id: p.Identity, skipped: true})

			if bar != nil {
				_ = bar.Add(1)
			}

			continue
		}

		rec, account, lookupErr := deps.Vacancy.Lookup(ctx, address, city, zip)

		// A credential failure is operator-actionable: stop looking up
		// instead of burning the remaining selection on a dead account,
		// but still flush what completed before it.
		if errs.IsAuth(lookupErr) {
			authErr = lookupErr

			break
		}

		errorCode := ""
		if lookupErr != nil {
			errorCode = lookupErr.Error()
		}

		band := model.VacancyBand{
			AddressNormalized: rec.AddressNormalized,
			CityNormalized:    rec.CityNormalized,
			ZIPNormalized:     rec.ZIPNormalized,
			ZIP4Normalized:    rec.ZIP4Normalized,
			Vacant:            rec.Vacant,
			DPVConfirmed:      rec.DPVConfirmed,
			Business:          rec.Business,
			AddressMismatch:   rec.AddressMismatch,
			CheckDate:         time.Now().UTC(),
			ErrorCode:         errorCode,
		}

		flag := evidence.EvaluateVacancy(evidence.Bundle{Vacancy: &evidence.VacancyEvidence{
			Vacant:          rec.Vacant,
			DPVConfirmed:    rec.DPVConfirmed,
			AddressMismatch: rec.AddressMismatch,
		}})
		band.FlagVacancy = flag.Fired
		band.VacancyConfidence = flag.Confidence

		results = append(results, vacancyResult{
			id:      p.Identity,
			band:    band,
			account: account,
			vacant:  rec.Vacant,
			dpv:     rec.DPVConfirmed,
			errCode: errorCode,
		})

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	var summary passes.Summary

	err = store.WithFlushes(ctx, deps.DSN, results, func(ctx context.Context, repo store.Repository, chunk []vacancyResult) error {
		for _, r := range chunk {
			if r.skipped {
				summary.Skipped++

				continue
			}

			if r.errCode != "" {
				summary.Errors++
			}

			if upErr := repo.UpsertVacancyBand(ctx, r.id, r.band); upErr != nil {
				return upErr
			}

			repo.AuditVacancyCheck(ctx, r.id, r.account, r.vacant, r.dpv, r.errCode)

			summary.Scanned++

			if r.band.FlagVacancy {
				summary.Flagged++
			}
		}

		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("flushing pass2 results: %w", err)
	}

	if authErr != nil {
		return summary, fmt.Errorf("vacancy credentials rejected: %w", authErr)
	}

	log.Printf("pass2 complete - %s", summary)

	return summary, nil
}

// ResolveMailingAddress resolves the address/city/zip to submit: the situs
// address when present, otherwise the mailing address, but only when the
// mailing state matches the parcel's own state — an out-of-state mailing
// address says nothing about whether the situs property is vacant.
// Exported so the on-demand check-vacancy scan handler applies the same
// fallback rule the batch uses.
func ResolveMailingAddress(p model.Parcel) (address, city, zip string, ok bool) {
	if p.SitusAddress != "" && p.SitusCity != "" && p.SitusZIP != "" {
		return p.SitusAddress, p.SitusCity, p.SitusZIP, true
	}

	if p.MailingAddress == "" || p.MailingCity == "" || p.MailingZIP == "" {
		return "", "", "", false
	}

	if p.MailingState != p.StateCode {
		return "", "", "", false
	}

	return p.MailingAddress, p.MailingCity, p.MailingZIP, true
}
