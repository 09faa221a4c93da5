// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parceldistress/sentinel/internal/store"
)

func boolQuery(ctx *gin.Context, key string) *bool {
	raw := ctx.Query(key)
	if raw == "" {
		return nil
	}

	v := raw == "true" || raw == "1"

	return &v
}

func floatQuery(ctx *gin.Context, key string) (float64, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func intQueryDefault(ctx *gin.Context, key string, def int) int {
	raw := ctx.Query(key)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return v
}

func filterFromQuery(ctx *gin.Context) store.Filter {
	f := store.Filter{
		County:        ctx.Query("county"),
		State:         ctx.Query("state"),
		PropertyClass: ctx.Query("class"),
		FloodZone:     ctx.Query("fema_zone"),
		ZIP:           ctx.Query("zip"),
		ScannedOnly:   ctx.Query("scanned_only") == "true",
		SortColumn:    ctx.Query("sort"),
		SortDesc:      ctx.Query("order") == "desc",
		Limit:         intQueryDefault(ctx, "limit", 100),
		Offset:        intQueryDefault(ctx, "offset", 0),

		FlagOvergrowth: boolQuery(ctx, "flag_overgrowth"),
		FlagNeglect:    boolQuery(ctx, "flag_neglect"),
		FlagFlood:      boolQuery(ctx, "flag_flood"),
		FlagStructural: boolQuery(ctx, "flag_structural"),
		FlagVacancy:    boolQuery(ctx, "flag_vacancy"),
	}

	if v, ok := floatQuery(ctx, "min_value"); ok {
		f.MinValuation, f.HasMinValuation = v, true
	}

	if v, ok := floatQuery(ctx, "max_value"); ok {
		f.MaxValuation, f.HasMaxValuation = v, true
	}

	if v, ok := floatQuery(ctx, "min_size"); ok {
		f.MinLandSizeAcres, f.HasMinLandSize = v, true
	}

	if v, ok := floatQuery(ctx, "max_size"); ok {
		f.MaxLandSizeAcres, f.HasMaxLandSize = v, true
	}

	if v, ok := floatQuery(ctx, "min_distress_score"); ok {
		f.MinDistressScore, f.HasMinDistressScore = v, true
	}

	if v, ok := floatQuery(ctx, "min_composite"); ok {
		f.MinComposite, f.HasMinComposite = v, true
	}

	if v, ok := floatQuery(ctx, "min_conviction"); ok {
		f.MinConviction, f.HasMinConviction = v, true
	}

	return f
}

// listParcels serves the filtered-read query surface. county and state
// are not required but are strongly recommended: an unscoped scan of a
// multi-county inventory is exactly what the 1000-row cap guards against.
func (s *Server) listParcels(ctx *gin.Context) {
	views, err := store.Query(ctx.Request.Context(), s.db, filterFromQuery(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	out := make([]gin.H, 0, len(views))
	for _, v := range views {
		out = append(out, parcelViewJSON(v))
	}

	ctx.JSON(http.StatusOK, gin.H{"parcels": out, "count": len(out)})
}

func (s *Server) getParcel(ctx *gin.Context) {
	view, ok := fetchOneParcel(ctx, s.db, ctx.Param("county"), ctx.Param("state"), ctx.Param("parcel_id"))
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, parcelViewJSON(view))
}

// parcelViewJSON nests each band under its own key with the prefixed
// sub-keys the query surface contract specifies, rather than flattening
// every column onto one object.
func parcelViewJSON(v store.ParcelView) gin.H {
	return gin.H{
		"parcel_id":  v.ParcelID,
		"county":     v.County,
		"state_code": v.StateCode,
		"point":      gin.H{"lat": v.Point.Lat, "lng": v.Point.Lng},

		"address_situs":      v.SitusAddress,
		"city_situs":         v.SitusCity,
		"zip_situs":          v.SitusZIP,
		"address_mailing":    v.MailingAddress,
		"city_mailing":       v.MailingCity,
		"zip_mailing":        v.MailingZIP,
		"state_mailing":      v.MailingState,

		"property_class":  v.PropertyClass,
		"valuation":       v.Valuation,
		"land_size_acres": v.LandSizeAcres,
		"updated_at":      v.UpdatedAt,

		"flags": gin.H{
			"overgrowth": v.Pass1.FlagOvergrowth,
			"neglect":    v.Pass1.FlagNeglect,
			"flood":      v.Pass1.FlagFlood,
			"structural": v.Pass1.FlagStructural,
			"vacancy":    v.Vacancy.FlagVacancy,
		},

		"aerial": gin.H{
			"present":        v.Pass1Present,
			"ndvi":           v.Pass1.NDVI,
			"ndvi_category":  v.Pass1.NDVICategory,
			"distress_score": v.Pass1.DistressScore,
			"scan_pass":      v.Pass1.ScanPass,
			"scan_date":      v.Pass1.ScanDate,
			"sentinel_worthy": v.Pass1.SentinelWorthy,
		},

		"flood": gin.H{
			"zone":           v.Pass1.FloodZone,
			"special_hazard": v.Pass1.SpecialHazard,
			"risk_tier":      v.Pass1.FloodRiskTier,
		},

		"historical": gin.H{
			"present":             v.HistoryPresent,
			"ndvi_slope_5yr":      v.History.NDVISlope5yr,
			"ndvi_slope_pctile":   v.History.NDVISlopePctile,
			"distress_composite":  v.History.DistressComposite,
		},

		"satellite": gin.H{
			"present":         v.SatellitePresent,
			"trend_direction": v.Sat.TrendDirection,
			"latest_ndvi":     v.Sat.LatestNDVI,
			"source":          v.Sat.Source,
		},

		// Carrier-vacancy keys are prefixed (vacancy_address, vacancy_city,
		// vacancy_zip, vacancy_zip4), not bare: consumers must not collide
		// these with an unrelated top-level address/city/zip field.
		"vacancy": gin.H{
			"present":       v.VacancyPresent,
			"vacancy_address": v.Vacancy.AddressNormalized,
			"vacancy_city":    v.Vacancy.CityNormalized,
			"vacancy_zip":     v.Vacancy.ZIPNormalized,
			"vacancy_zip4":    v.Vacancy.ZIP4Normalized,
			"vacant":          v.Vacancy.Vacant,
			"dpv_confirmed":   v.Vacancy.DPVConfirmed,
			"confidence":      v.Vacancy.VacancyConfidence,
		},

		"high_res": gin.H{
			"present":      v.HighResPresent,
			"change_score": v.HighRes.ChangeScore,
			"scene_count":  v.HighRes.SceneCount,
		},

		"conviction": gin.H{
			"present":     v.ConvictionPresent,
			"score":       v.Convict.ConvictionScore,
			"base_score":  v.Convict.ConvictionBaseScore,
			"vacancy_bonus": v.Convict.ConvictionVacancyBonus,
			"mc_score":    v.Convict.ConvictionMCScore,
			"mc_codes":    v.Convict.MCCodes,
		},
	}
}
