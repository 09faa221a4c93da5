// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parceldistress/sentinel/internal/model"
)

// Filter is the full set of query-surface read parameters: range filters
// on score/value/size, flag/zone/class equality filters, a scanned-only
// guard, and a sort/paginate pair. Every field is optional; the zero value
// means "no constraint" except Limit, which callers must set themselves
// (Query never runs unbounded).
type Filter struct {
	ParcelID string
	County   string
	State    string

	PropertyClass string
	FloodZone     string

	MinValuation float64
	MaxValuation float64
	HasMinValuation bool
	HasMaxValuation bool

	MinLandSizeAcres float64
	MaxLandSizeAcres float64
	HasMinLandSize   bool
	HasMaxLandSize   bool

	ZIP string

	MinDistressScore    float64
	HasMinDistressScore bool
	MinComposite        float64
	HasMinComposite     bool
	MinConviction       float64
	HasMinConviction    bool

	FlagOvergrowth *bool
	FlagNeglect    *bool
	FlagFlood      *bool
	FlagStructural *bool
	FlagVacancy    *bool

	ScannedOnly bool

	SortColumn string // whitelisted below; defaults to parcel_id
	SortDesc   bool

	Limit  int
	Offset int
}

var allowedSortColumns = map[string]bool{
	"parcel_id": true, "distress_score": true, "distress_composite": true,
	"conviction_score": true, "valuation": true, "land_size_acres": true,
	"updated_at": true,
}

// ParcelView is the full read-surface projection of a parcel row: every
// scan-output band plus the base identity/address columns, each band's
// presence tracked so handlers never confuse a zero value with "not yet
// scanned".
type ParcelView struct {
	model.Parcel

	Pass1Present      bool
	HistoryPresent    bool
	SatellitePresent  bool
	VacancyPresent    bool
	HighResPresent    bool
	ConvictionPresent bool
}

// Query runs a dynamic filtered read against the full parcel row,
// returning every scan-output band the query surface exposes.
func Query(ctx context.Context, db *sql.DB, f Filter) ([]ParcelView, error) {
	where, args := buildWhere(f)

	sortCol := "parcel_id"
	if allowedSortColumns[f.SortColumn] {
		sortCol = f.SortColumn
	}

	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	} else if limit > 1000 {
		limit = 1000
	}

	query := fmt.Sprintf(`
		SELECT
			parcel_id, county, state_code, point,
			situs_address, situs_city, situs_zip,
			mailing_address, mailing_city, mailing_zip, mailing_state,
			property_class, valuation, land_size_acres, updated_at,
			ndvi, ndvi_category, flood_zone, special_hazard, flood_risk_tier, distress_score,
			flag_overgrowth, flag_neglect, flag_flood, flag_structural,
			conf_overgrowth, conf_neglect, conf_flood, conf_structural,
			scan_pass, scan_date, sentinel_worthy, scan_error,
			ndvi_slope_5yr, ndvi_slope_pctile, vintage_count, year_span, distress_composite, composite_date,
			sentinel_trend_direction, sentinel_slope, sentinel_latest_ndvi, sentinel_month_count,
			sentinel_mean_ndvi, sentinel_source, sentinel_chart_url, sentinel_scan_date, sentinel_error,
			vacancy_address, vacancy_city, vacancy_zip, vacancy_zip4,
			vacant, dpv_confirmed, vacancy_business, address_mismatch, vacancy_check_date, vacancy_error,
			flag_vacancy, vacancy_confidence,
			planet_scene_count, planet_change_score, planet_temporal_span,
			planet_earliest_date, planet_latest_date, planet_earliest_thumb_url, planet_latest_thumb_url, planet_scan_date,
			conviction_score, conviction_base_score, conviction_vacancy_bonus, conviction_mc_score,
			conviction_components, mc_signal_count, mc_codes, conviction_date
		FROM parcels
		%s
		ORDER BY %s %s
		LIMIT ? OFFSET ?
	`, where, sortCol, order)

	args = append(args, limit, f.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying parcels: %w", err)
	}
	defer rows.Close()

	var out []ParcelView

	for rows.Next() {
		v, err := scanParcelView(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

func buildWhere(f Filter) (string, []any) {
	var clauses []string

	var args []any

	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if f.ParcelID != "" {
		add("parcel_id = ?", f.ParcelID)
	}

	if f.County != "" {
		add("county = ?", f.County)
	}

	if f.State != "" {
		add("state_code = ?", f.State)
	}

	if f.PropertyClass != "" {
		add("property_class = ?", f.PropertyClass)
	}

	if f.FloodZone != "" {
		add("flood_zone = ?", f.FloodZone)
	}

	if f.ZIP != "" {
		add("situs_zip = ?", f.ZIP)
	}

	if f.HasMinValuation {
		add("valuation >= ?", f.MinValuation)
	}

	if f.HasMaxValuation {
		add("valuation <= ?", f.MaxValuation)
	}

	if f.HasMinLandSize {
		add("land_size_acres >= ?", f.MinLandSizeAcres)
	}

	if f.HasMaxLandSize {
		add("land_size_acres <= ?", f.MaxLandSizeAcres)
	}

	if f.HasMinDistressScore {
		add("distress_score >= ?", f.MinDistressScore)
	}

	if f.HasMinComposite {
		add("distress_composite >= ?", f.MinComposite)
	}

	if f.HasMinConviction {
		add("conviction_score >= ?", f.MinConviction)
	}

	if f.FlagOvergrowth != nil {
		add("flag_overgrowth = ?", *f.FlagOvergrowth)
	}

	if f.FlagNeglect != nil {
		add("flag_neglect = ?", *f.FlagNeglect)
	}

	if f.FlagFlood != nil {
		add("flag_flood = ?", *f.FlagFlood)
	}

	if f.FlagStructural != nil {
		add("flag_structural = ?", *f.FlagStructural)
	}

	if f.FlagVacancy != nil {
		add("flag_vacancy = ?", *f.FlagVacancy)
	}

	if f.ScannedOnly {
		clauses = append(clauses, "scan_pass >= 1")
	}

	if len(clauses) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanParcelView(rows *sql.Rows) (ParcelView, error) {
	var v ParcelView

	var (
		situsAddress, situsCity, situsZIP                     sql.NullString
		mailingAddress, mailingCity, mailingZIP, mailingState sql.NullString
		propertyClass                                         sql.NullString
		valuation, landSizeAcres                              sql.NullFloat64
		updatedAt                                              sql.NullTime

		ndvi                                                                   sql.NullFloat64
		ndviCategory, floodZone, floodRiskTier, scanError                     sql.NullString
		distressScore, confOvergrowth, confNeglect, confFlood, confStructural sql.NullFloat64
		specialHazard, sentinelWorthy                                         sql.NullBool
		flagOvergrowth, flagNeglect, flagFlood, flagStructural                sql.NullBool
		scanPass                                                              sql.NullInt64
		scanDate                                                              sql.NullTime

		ndviSlope5yr, ndviSlopePctile, distressComposite     sql.NullFloat64
		vintageCount, yearSpan                                sql.NullInt64
		compositeDate                                         sql.NullTime

		trendDirection, satSource, chartURL, satError         sql.NullString
		satSlope, satLatest, satMean                          sql.NullFloat64
		satMonthCount                                          sql.NullInt64
		satScanDate                                            sql.NullTime

		vacAddress, vacCity, vacZIP, vacZIP4, vacError        sql.NullString
		vacant, dpvConfirmed, vacBusiness, addressMismatch    sql.NullBool
		vacCheckDate                                           sql.NullTime
		flagVacancy                                            sql.NullBool
		vacancyConfidence                                      sql.NullFloat64

		sceneCount, temporalSpan                               sql.NullInt64
		changeScore                                            sql.NullFloat64
		earliestDate, latestDate                               sql.NullTime
		earliestThumb, latestThumb                             sql.NullString
		planetScanDate                                          sql.NullTime

		convScore, convBase, convVacBonus, convMC             sql.NullFloat64
		convComponents                                         sql.NullString
		mcSignalCount                                          sql.NullInt64
		mcCodes                                                sql.NullString
		convDate                                               sql.NullTime
	)

	err := rows.Scan(
		&v.ParcelID, &v.County, &v.StateCode, &v.Point,
		&situsAddress, &situsCity, &situsZIP,
		&mailingAddress, &mailingCity, &mailingZIP, &mailingState,
		&propertyClass, &valuation, &landSizeAcres, &updatedAt,

		&ndvi, &ndviCategory, &floodZone, &specialHazard, &floodRiskTier, &distressScore,
		&flagOvergrowth, &flagNeglect, &flagFlood, &flagStructural,
		&confOvergrowth, &confNeglect, &confFlood, &confStructural,
		&scanPass, &scanDate, &sentinelWorthy, &scanError,

		&ndviSlope5yr, &ndviSlopePctile, &vintageCount, &yearSpan, &distressComposite, &compositeDate,

		&trendDirection, &satSlope, &satLatest, &satMonthCount,
		&satMean, &satSource, &chartURL, &satScanDate, &satError,

		&vacAddress, &vacCity, &vacZIP, &vacZIP4,
		&vacant, &dpvConfirmed, &vacBusiness, &addressMismatch, &vacCheckDate, &vacError,
		&flagVacancy, &vacancyConfidence,

		&sceneCount, &changeScore, &temporalSpan,
		&earliestDate, &latestDate, &earliestThumb, &latestThumb, &planetScanDate,

		&convScore, &convBase, &convVacBonus, &convMC,
		&convComponents, &mcSignalCount, &mcCodes, &convDate,
	)
	if err != nil {
		return ParcelView{}, fmt.Errorf("scanning parcel view row: %w", err)
	}

	v.SitusAddress = situsAddress.String
	v.SitusCity = situsCity.String
	v.SitusZIP = situsZIP.String
	v.MailingAddress = mailingAddress.String
	v.MailingCity = mailingCity.String
	v.MailingZIP = mailingZIP.String
	v.MailingState = mailingState.String
	v.PropertyClass = propertyClass.String
	v.Valuation = valuation.Float64
	v.LandSizeAcres = landSizeAcres.Float64
	v.UpdatedAt = updatedAt.Time

	v.Pass1.NDVI = ndvi.Float64
	v.Pass1.FlagOvergrowth = flagOvergrowth.Bool
	v.Pass1.FlagNeglect = flagNeglect.Bool
	v.Pass1.FlagFlood = flagFlood.Bool
	v.Pass1.FlagStructural = flagStructural.Bool
	v.Pass1.NDVICategory = ndviCategory.String
	v.Pass1.FloodZone = floodZone.String
	v.Pass1.SpecialHazard = specialHazard.Bool
	v.Pass1.FloodRiskTier = floodRiskTier.String
	v.Pass1.DistressScore = distressScore.Float64
	v.Pass1.ConfOvergrowth = confOvergrowth.Float64
	v.Pass1.ConfNeglect = confNeglect.Float64
	v.Pass1.ConfFlood = confFlood.Float64
	v.Pass1.ConfStructural = confStructural.Float64
	v.Pass1.ScanPass = int(scanPass.Int64)
	v.Pass1.ScanDate = scanDate.Time
	v.Pass1.SentinelWorthy = sentinelWorthy.Bool
	v.Pass1.ScanError = scanError.String
	v.Pass1Present = scanPass.Valid && scanPass.Int64 >= 1

	v.History.NDVISlope5yr = ndviSlope5yr.Float64
	v.History.NDVISlopeValid = ndviSlope5yr.Valid
	v.History.NDVISlopePctile = ndviSlopePctile.Float64
	v.History.VintageCount = int(vintageCount.Int64)
	v.History.YearSpan = int(yearSpan.Int64)
	v.History.DistressComposite = distressComposite.Float64
	v.History.CompositeValid = distressComposite.Valid
	v.History.CompositeDate = compositeDate.Time
	v.HistoryPresent = distressComposite.Valid

	v.Sat.TrendDirection = trendDirection.String
	v.Sat.Slope = satSlope.Float64
	v.Sat.LatestNDVI = satLatest.Float64
	v.Sat.MonthCount = int(satMonthCount.Int64)
	v.Sat.MeanNDVI = satMean.Float64
	v.Sat.Source = satSource.String
	v.Sat.ChartArtifactURL = chartURL.String
	v.Sat.SentinelScanDate = satScanDate.Time
	v.Sat.ScanError = satError.String
	v.SatellitePresent = trendDirection.Valid

	v.Vacancy.AddressNormalized = vacAddress.String
	v.Vacancy.CityNormalized = vacCity.String
	v.Vacancy.ZIPNormalized = vacZIP.String
	v.Vacancy.ZIP4Normalized = vacZIP4.String
	v.Vacancy.Vacant = vacant.Bool
	v.Vacancy.DPVConfirmed = dpvConfirmed.Bool
	v.Vacancy.Business = vacBusiness.Bool
	v.Vacancy.AddressMismatch = addressMismatch.Bool
	v.Vacancy.CheckDate = vacCheckDate.Time
	v.Vacancy.ErrorCode = vacError.String
	v.Vacancy.FlagVacancy = flagVacancy.Bool
	v.Vacancy.VacancyConfidence = vacancyConfidence.Float64
	v.VacancyPresent = vacCheckDate.Valid

	v.HighRes.SceneCount = int(sceneCount.Int64)
	v.HighRes.ChangeScore = changeScore.Float64
	v.HighRes.TemporalSpan = int(temporalSpan.Int64)
	v.HighRes.EarliestDate = earliestDate.Time
	v.HighRes.LatestDate = latestDate.Time
	v.HighRes.EarliestThumbURL = earliestThumb.String
	v.HighRes.LatestThumbURL = latestThumb.String
	v.HighRes.PlanetScanDate = planetScanDate.Time
	v.HighResPresent = sceneCount.Valid

	v.Convict.ConvictionScore = convScore.Float64
	v.Convict.ConvictionBaseScore = convBase.Float64
	v.Convict.ConvictionVacancyBonus = convVacBonus.Float64
	v.Convict.ConvictionMCScore = convMC.Float64
	v.Convict.ConvictionComponents = convComponents.String
	v.Convict.MCSignalCount = int(mcSignalCount.Int64)

	if mcCodes.Valid && mcCodes.String != "" {
		v.Convict.MCCodes = strings.Split(mcCodes.String, ",")
	}

	v.Convict.ConvictionDate = convDate.Time
	v.ConvictionPresent = convScore.Valid

	return v, nil
}
