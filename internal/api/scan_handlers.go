// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parceldistress/sentinel/internal/evidence"
	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/passes/pass1"
	"github.com/parceldistress/sentinel/internal/passes/pass15b"
	"github.com/parceldistress/sentinel/internal/passes/pass2"
	"github.com/parceldistress/sentinel/internal/scoring"
	"github.com/parceldistress/sentinel/internal/sources/highres"
	"github.com/parceldistress/sentinel/internal/spatial"
	"github.com/parceldistress/sentinel/internal/store"
)

// On-demand scan handlers delegate to the exact evaluator, scoring and
// client code the batch passes use (pass1.ScorePass1Band, pass15b.Classify,
// pass2.ResolveMailingAddress) so a single-parcel rescan can never compute
// a different answer than the next batch run would.

func identityFromParams(ctx *gin.Context) model.Identity {
	return model.Identity{
		ParcelID:  ctx.Param("parcel_id"),
		County:    ctx.Param("county"),
		StateCode: ctx.Param("state"),
	}
}

// resolvePoint honors an explicit lat/lng query override — useful when a
// parcel's on-file geocode needs correcting — and otherwise uses the point
// already on the parcel row.
func resolvePoint(ctx *gin.Context, fallback spatial.Point) spatial.Point {
	lat, latOK := floatQuery(ctx, "lat")
	lng, lngOK := floatQuery(ctx, "lng")

	if latOK && lngOK {
		return spatial.Point{Lat: lat, Lng: lng}
	}

	return fallback
}

func (s *Server) writePass1Band(ctx *gin.Context, id model.Identity, band model.Pass1Band) error {
	if err := store.NewRepository(s.db).UpsertPass1Band(ctx.Request.Context(), id, band); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return err
	}

	return nil
}

// scanFree mirrors Pass 1's per-parcel pipeline: aerial fast-identify +
// flood lookup only, no historical baseline.
func (s *Server) scanFree(ctx *gin.Context) {
	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	p := resolvePoint(ctx, view.Point)
	rctx := ctx.Request.Context()

	bands, err := s.aerial.IdentifyFast(rctx, p)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	zone, err := s.flood.Lookup(rctx, p)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	bundle := evidence.Bundle{CurrentNDVI: bands.NDVI(), FloodRiskTier: zone.RiskTier()}
	band, _ := pass1.ScorePass1Band(bundle, zone.FldZone, zone.SFHATF == "T")

	if err := s.writePass1Band(ctx, identityFromParams(ctx), band); err != nil {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"pass1": band})
}

// scanFull runs the complete evidence pipeline: the cached full aerial
// identify (not the bulk fast variant), a flood lookup, a historical
// baseline read for the overgrowth moderate-tier and structural_change
// evaluators, and cross-source agreement against whatever satellite trend
// is already on file. A historical-read failure degrades to "no baseline"
// rather than failing the scan: one misbehaving source skips its
// evaluators, the others still run.
func (s *Server) scanFull(ctx *gin.Context) {
	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	p := resolvePoint(ctx, view.Point)
	rctx := ctx.Request.Context()

	bands, err := s.aerial.Identify(rctx, p)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	zone, err := s.flood.Lookup(rctx, p)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	bundle := evidence.Bundle{
		CurrentNDVI:   bands.NDVI(),
		FloodRiskTier: zone.RiskTier(),
	}

	if seq, hErr := s.historical.Vintages(rctx, p); hErr == nil {
		if points := scoring.CollectDedup(seq); len(points) > 0 {
			baseline := points[0]

			for _, pt := range points[1:] {
				if pt.Year < baseline.Year {
					baseline = pt
				}
			}

			bundle.HasHistoricalBaseline = true
			bundle.HistoricalBaselineNDVI = baseline.NDVI
		}
	}

	if view.SatellitePresent && bundle.HasHistoricalBaseline {
		switch view.Sat.TrendDirection {
		case pass15b.TrendRising:
			bundle.HasSatelliteAgreement = bundle.CurrentNDVI > bundle.HistoricalBaselineNDVI
		case pass15b.TrendFalling:
			bundle.HasSatelliteAgreement = bundle.CurrentNDVI < bundle.HistoricalBaselineNDVI
		}
	}

	band, _ := pass1.ScorePass1Band(bundle, zone.FldZone, zone.SFHATF == "T")

	if err := s.writePass1Band(ctx, identityFromParams(ctx), band); err != nil {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"pass1": band})
}

// scanEnrichSatellite mirrors Pass 1.5b's per-parcel pipeline: a monthly
// NDVI statistics series classified into a trend. The on-demand endpoint
// skips the free-fallback-endpoint step the batch takes on an empty series,
// since it is a single interactive request rather than a bulk sweep.
func (s *Server) scanEnrichSatellite(ctx *gin.Context) {
	if s.satellite == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "satellite client not configured"})

		return
	}

	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	p := resolvePoint(ctx, view.Point)
	months := intQueryDefault(ctx, "months", pass15b.DefaultMonths)

	series, err := s.satellite.StatsNDVI(ctx.Request.Context(), p, months)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	var band model.SatelliteBand

	if len(series) == 0 {
		band = model.SatelliteBand{
			TrendDirection:   pass15b.TrendInsufficient,
			Source:           "none",
			SentinelScanDate: time.Now().UTC(),
			ScanError:        "satellite series empty",
		}
	} else {
		band = pass15b.Classify(series, "satellite")
	}

	if err := store.NewRepository(s.db).UpsertSatelliteBand(ctx.Request.Context(), identityFromParams(ctx), band); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"satellite": band})
}

// scanCheckVacancy mirrors Pass 2's per-parcel pipeline: resolve a usable
// address, run a single carrier-vacancy lookup, evaluate the usps_vacancy
// flag, and write the band plus a best-effort audit row.
func (s *Server) scanCheckVacancy(ctx *gin.Context) {
	if s.vacancy == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "vacancy client not configured"})

		return
	}

	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	address, city, zip, ok := pass2.ResolveMailingAddress(view.Parcel)
	if !ok {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no usable situs or mailing address for vacancy lookup"})

		return
	}

	rctx := ctx.Request.Context()

	rec, account, err := s.vacancy.Lookup(rctx, address, city, zip)

	errorCode := ""
	if err != nil {
		errorCode = err.Error()
	}

	flag := evidence.EvaluateVacancy(evidence.Bundle{Vacancy: &evidence.VacancyEvidence{
		Vacant:          rec.Vacant,
		DPVConfirmed:    rec.DPVConfirmed,
		AddressMismatch: rec.AddressMismatch,
	}})

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
		FlagVacancy:       flag.Fired,
		VacancyConfidence: flag.Confidence,
	}

	id := identityFromParams(ctx)
	repo := store.NewRepository(s.db)

	if err := repo.UpsertVacancyBand(rctx, id, band); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	repo.AuditVacancyCheck(rctx, id, account, rec.Vacant, rec.DPVConfirmed, errorCode)

	ctx.JSON(http.StatusOK, gin.H{"vacancy": band})
}

// scanBaseline mirrors Pass 1.5's per-parcel pipeline: read the historical
// NDVI vintage sequence, compute the closed-form OLS slope, persist the
// historical band, then recompute this one parcel's county composite —
// the on-demand equivalent of Pass 1.5's post-sweep county recomputation.
func (s *Server) scanBaseline(ctx *gin.Context) {
	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	p := resolvePoint(ctx, view.Point)
	rctx := ctx.Request.Context()

	seq, err := s.historical.Vintages(rctx, p)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	points := scoring.CollectDedup(seq)
	slope, slopeOK := scoring.SlopeRegression(points)

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
		NDVISlopeValid: slopeOK,
		VintageCount:   len(points),
		YearSpan:       yearSpan,
	}

	id := identityFromParams(ctx)

	if err := store.NewRepository(s.db).UpsertHistoricalBand(rctx, id, band); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if err := store.RecomputeCountyComposite(rctx, s.db, id.County, id.StateCode); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"historical": band})
}

// scanFloodLookup refreshes only the flood zone classification, then reruns
// the full evaluator/scoring pipeline against the NDVI already on file —
// a flood-zone reclassification can change the flood_risk flag and,
// through the neglect evaluator's flood boost, the neglect confidence too.
func (s *Server) scanFloodLookup(ctx *gin.Context) {
	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	p := resolvePoint(ctx, view.Point)

	zone, err := s.flood.Lookup(ctx.Request.Context(), p)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	bundle := evidence.Bundle{CurrentNDVI: view.Pass1.NDVI, FloodRiskTier: zone.RiskTier()}
	band, _ := pass1.ScorePass1Band(bundle, zone.FldZone, zone.SFHATF == "T")

	if err := s.writePass1Band(ctx, identityFromParams(ctx), band); err != nil {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"flood": gin.H{"zone": band.FloodZone, "risk_tier": band.FloodRiskTier}})
}

// scanHighResSearch honors the 60-day re-run guard unless force=true, then
// runs the two-narrow-window temporal-pair acquisition: an older window
// nine-to-twelve months back and a recent one-month window, picking one
// scene per endpoint.
func (s *Server) scanHighResSearch(ctx *gin.Context) {
	if s.highres == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "high-res client not configured"})

		return
	}

	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	force := ctx.Query("force") == "true"
	if highres.ShouldSkip(view.HighRes.PlanetScanDate, force) {
		ctx.JSON(http.StatusTooManyRequests, gin.H{"error": "parcel scanned within the last 60 days; pass force=true to override"})

		return
	}

	p := resolvePoint(ctx, view.Point)
	now := time.Now().UTC()

	earliestStart, earliestEnd := now.AddDate(-1, 0, 0), now.AddDate(0, -9, 0)
	latestStart, latestEnd := now.AddDate(0, -1, 0), now

	result, err := s.highres.Search(ctx.Request.Context(), p, earliestStart, earliestEnd, latestStart, latestEnd)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	band := model.HighResBand{
		SceneCount:       result.SceneCount,
		ChangeScore:      result.ChangeScore,
		TemporalSpan:     result.TemporalSpan,
		EarliestDate:     result.Earliest.AcquiredAt,
		LatestDate:       result.Latest.AcquiredAt,
		EarliestThumbURL: result.Earliest.ThumbURL,
		LatestThumbURL:   result.Latest.ThumbURL,
		PlanetScanDate:   now,
	}

	if err := store.NewRepository(s.db).UpsertHighResBand(ctx.Request.Context(), identityFromParams(ctx), band); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"high_res": band})
}
