// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/parceldistress/sentinel/internal/model"
)

// Repository is the persistence surface every pass orchestrator drives.
// Every method that writes a band must never fail the caller's batch over
// an auxiliary write; see AuditVacancyCheck.
type Repository interface {
	SelectForPass1(ctx context.Context, limit int) ([]model.Parcel, error)
	SelectForHistorical(ctx context.Context, limit int) ([]model.Parcel, error)
	SelectSentinelWorthy(ctx context.Context, limit int) ([]model.Parcel, error)
	SelectForVacancy(ctx context.Context, minComposite float64, limit int) ([]model.Parcel, error)
	SelectForConviction(ctx context.Context, limit int) ([]model.Parcel, error)
	SelectMotivationSignals(ctx context.Context, id model.Identity) ([]model.MotivationSignal, error)

	UpsertPass1Band(ctx context.Context, id model.Identity, b model.Pass1Band) error
	UpsertHistoricalBand(ctx context.Context, id model.Identity, b model.HistoricalBand) error
	UpsertSatelliteBand(ctx context.Context, id model.Identity, b model.SatelliteBand) error
	UpsertVacancyBand(ctx context.Context, id model.Identity, b model.VacancyBand) error
	UpsertHighResBand(ctx context.Context, id model.Identity, b model.HighResBand) error
	UpsertConvictionBand(ctx context.Context, id model.Identity, b model.ConvictionBand) error

	AuditVacancyCheck(ctx context.Context, id model.Identity, account string, vacant, dpvConfirmed bool, errorCode string)
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository wraps an open *sql.DB. Callers own the connection's
// lifetime; the repository never opens or closes one itself.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

const parcelSelectColumns = `
	parcel_id, county, state_code, point,
	situs_address, situs_city, situs_zip,
	mailing_address, mailing_city, mailing_zip, mailing_state,
	property_class, valuation, land_size_acres, updated_at
`

func scanParcel(rows *sql.Rows) (model.Parcel, error) {
	var p model.Parcel

	var (
		situsAddress, situsCity, situsZIP                     sql.NullString
		mailingAddress, mailingCity, mailingZIP, mailingState sql.NullString
		propertyClass                                         sql.NullString
		valuation, landSizeAcres                              sql.NullFloat64
		updatedAt                                              sql.NullTime
	)

	err := rows.Scan(
		&p.ParcelID, &p.County, &p.StateCode, &p.Point,
		&situsAddress, &situsCity, &situsZIP,
		&mailingAddress, &mailingCity, &mailingZIP, &mailingState,
		&propertyClass, &valuation, &landSizeAcres, &updatedAt,
	)
	if err != nil {
		return model.Parcel{}, err
	}

	p.SitusAddress = situsAddress.String
	p.SitusCity = situsCity.String
	p.SitusZIP = situsZIP.String
	p.MailingAddress = mailingAddress.String
	p.MailingCity = mailingCity.String
	p.MailingZIP = mailingZIP.String
	p.MailingState = mailingState.String
	p.PropertyClass = propertyClass.String
	p.Valuation = valuation.Float64
	p.LandSizeAcres = landSizeAcres.Float64
	p.UpdatedAt = updatedAt.Time

	return p, nil
}

// SelectForPass1 returns parcels that have never been scanned, or whose
// scan_pass is still at the baseline, ordered for deterministic fan-out.
func (r *sqlRepository) SelectForPass1(ctx context.Context, limit int) ([]model.Parcel, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM parcels
		WHERE scan_pass IS NULL OR scan_pass = 0
		ORDER BY county, state_code, parcel_id
		LIMIT ?
	`, parcelSelectColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("selecting pass1 candidates: %w", err)
	}
	defer rows.Close()

	return collectParcels(rows)
}

// SelectForHistorical returns parcels that have completed Pass 1 but have
// no recorded 5-year slope yet, the input set for Pass 1.5.
func (r *sqlRepository) SelectForHistorical(ctx context.Context, limit int) ([]model.Parcel, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM parcels
		WHERE scan_pass >= 1 AND ndvi_slope_5yr IS NULL
		ORDER BY county, state_code, parcel_id
		LIMIT ?
	`, parcelSelectColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("selecting historical candidates: %w", err)
	}
	defer rows.Close()

	return collectParcels(rows)
}

// SelectSentinelWorthy returns parcels Pass 1 flagged for satellite
// enrichment that have not yet advanced past scan_pass 1.
func (r *sqlRepository) SelectSentinelWorthy(ctx context.Context, limit int) ([]model.Parcel, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM parcels
		WHERE sentinel_worthy = true AND scan_pass = 1
		ORDER BY county, state_code, parcel_id
		LIMIT ?
	`, parcelSelectColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("selecting sentinel-worthy candidates: %w", err)
	}
	defer rows.Close()

	return collectParcels(rows)
}

// SelectForVacancy returns parcels whose distress composite has reached the
// cutoff and that have not yet had a carrier-vacancy check run against them.
func (r *sqlRepository) SelectForVacancy(ctx context.Context, minComposite float64, limit int) ([]model.Parcel, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM parcels
		WHERE vacancy_check_date IS NULL
		  AND distress_composite >= ?
		ORDER BY county, state_code, parcel_id
		LIMIT ?
	`, parcelSelectColumns), minComposite, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting vacancy candidates: %w", err)
	}
	defer rows.Close()

	return collectParcels(rows)
}

// SelectForConviction returns parcels with a distress composite ready to be
// fused into a conviction score. Unlike the other selects, it also needs
// the distress_composite and carrier-vacancy columns themselves as fusion
// inputs, not just identity/address, so it scans its own column set rather
// than sharing parcelSelectColumns.
func (r *sqlRepository) SelectForConviction(ctx context.Context, limit int) ([]model.Parcel, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, distress_composite, flag_vacancy, vacancy_confidence
		FROM parcels
		WHERE distress_composite IS NOT NULL AND conviction_date IS NULL
		ORDER BY county, state_code, parcel_id
		LIMIT ?
	`, parcelSelectColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("selecting conviction candidates: %w", err)
	}
	defer rows.Close()

	var out []model.Parcel

	for rows.Next() {
		var p model.Parcel

		var (
			situsAddress, situsCity, situsZIP                     sql.NullString
			mailingAddress, mailingCity, mailingZIP, mailingState sql.NullString
			propertyClass                                         sql.NullString
			valuation, landSizeAcres                              sql.NullFloat64
			updatedAt                                              sql.NullTime
			composite, vacancyConfidence                          sql.NullFloat64
			flagVacancy                                           sql.NullBool
		)

		err := rows.Scan(
			&p.ParcelID, &p.County, &p.StateCode, &p.Point,
			&situsAddress, &situsCity, &situsZIP,
			&mailingAddress, &mailingCity, &mailingZIP, &mailingState,
			&propertyClass, &valuation, &landSizeAcres, &updatedAt,
			&composite, &flagVacancy, &vacancyConfidence,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning conviction candidate row: %w", err)
		}

		p.SitusAddress = situsAddress.String
		p.SitusCity = situsCity.String
		p.SitusZIP = situsZIP.String
		p.MailingAddress = mailingAddress.String
		p.MailingCity = mailingCity.String
		p.MailingZIP = mailingZIP.String
		p.MailingState = mailingState.String
		p.PropertyClass = propertyClass.String
		p.Valuation = valuation.Float64
		p.LandSizeAcres = landSizeAcres.Float64
		p.UpdatedAt = updatedAt.Time

		p.History.DistressComposite = composite.Float64
		p.History.CompositeValid = composite.Valid
		p.Vacancy.FlagVacancy = flagVacancy.Bool
		p.Vacancy.VacancyConfidence = vacancyConfidence.Float64

		out = append(out, p)
	}

	return out, rows.Err()
}

func collectParcels(rows *sql.Rows) ([]model.Parcel, error) {
	var out []model.Parcel

	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning parcel row: %w", err)
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

// UpsertPass1Band writes the bulk NDVI+flood band. scan_pass only ever
// advances via GREATEST, so a retried or out-of-order flush can never
// regress a parcel that a later pass has already touched.
func (r *sqlRepository) UpsertPass1Band(ctx context.Context, id model.Identity, b model.Pass1Band) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parcels SET
			ndvi = ?, ndvi_category = ?, flood_zone = ?, special_hazard = ?, flood_risk_tier = ?,
			distress_score = ?,
			flag_overgrowth = ?, flag_neglect = ?, flag_flood = ?, flag_structural = ?,
			conf_overgrowth = ?, conf_neglect = ?, conf_flood = ?, conf_structural = ?,
			scan_pass = GREATEST(COALESCE(scan_pass, 0), ?),
			scan_date = ?, sentinel_worthy = ?, scan_error = ?,
			updated_at = ?
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`,
		nullFloat(b.NDVI), b.NDVICategory, b.FloodZone, b.SpecialHazard, b.FloodRiskTier,
		b.DistressScore,
		b.FlagOvergrowth, b.FlagNeglect, b.FlagFlood, b.FlagStructural,
		b.ConfOvergrowth, b.ConfNeglect, b.ConfFlood, b.ConfStructural,
		b.ScanPass,
		nullTime(b.ScanDate), b.SentinelWorthy, nullString(b.ScanError),
		nowUTC(),
		id.ParcelID, id.County, id.StateCode,
	)
	if err != nil {
		return fmt.Errorf("upserting pass1 band for %s: %w", id.Key(), err)
	}

	return nil
}

// UpsertHistoricalBand writes the 5-year slope band. It does not set
// ndvi_slope_pctile or distress_composite; those are filled in a single
// county-scoped pass by RecomputeCountyComposite after every parcel in the
// county has a slope.
func (r *sqlRepository) UpsertHistoricalBand(ctx context.Context, id model.Identity, b model.HistoricalBand) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parcels SET
			ndvi_slope_5yr = ?, vintage_count = ?, year_span = ?,
			scan_pass = GREATEST(COALESCE(scan_pass, 0), 1),
			updated_at = ?
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`,
		nullFloatIf(b.NDVISlopeValid, b.NDVISlope5yr), b.VintageCount, b.YearSpan,
		nowUTC(),
		id.ParcelID, id.County, id.StateCode,
	)
	if err != nil {
		return fmt.Errorf("upserting historical band for %s: %w", id.Key(), err)
	}

	return nil
}

// UpsertSatelliteBand writes the satellite-NDVI trend band and advances
// scan_pass to 2.
func (r *sqlRepository) UpsertSatelliteBand(ctx context.Context, id model.Identity, b model.SatelliteBand) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parcels SET
			sentinel_trend_direction = ?, sentinel_slope = ?, sentinel_latest_ndvi = ?,
			sentinel_month_count = ?, sentinel_mean_ndvi = ?, sentinel_source = ?,
			sentinel_chart_url = ?, sentinel_scan_date = ?, sentinel_error = ?,
			scan_pass = GREATEST(COALESCE(scan_pass, 0), 2),
			updated_at = ?
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`,
		b.TrendDirection, b.Slope, b.LatestNDVI,
		b.MonthCount, b.MeanNDVI, b.Source,
		nullString(b.ChartArtifactURL), nowUTC(), nullString(b.ScanError),
		nowUTC(),
		id.ParcelID, id.County, id.StateCode,
	)
	if err != nil {
		return fmt.Errorf("upserting satellite band for %s: %w", id.Key(), err)
	}

	return nil
}

// UpsertVacancyBand writes the carrier-vacancy band.
func (r *sqlRepository) UpsertVacancyBand(ctx context.Context, id model.Identity, b model.VacancyBand) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parcels SET
			vacancy_address = ?, vacancy_city = ?, vacancy_zip = ?, vacancy_zip4 = ?,
			vacant = ?, dpv_confirmed = ?, vacancy_business = ?, address_mismatch = ?,
			vacancy_check_date = ?, vacancy_error = ?,
			flag_vacancy = ?, vacancy_confidence = ?,
			updated_at = ?
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`,
		b.AddressNormalized, b.CityNormalized, b.ZIPNormalized, b.ZIP4Normalized,
		b.Vacant, b.DPVConfirmed, b.Business, b.AddressMismatch,
		nowUTC(), nullString(b.ErrorCode),
		b.FlagVacancy, b.VacancyConfidence,
		nowUTC(),
		id.ParcelID, id.County, id.StateCode,
	)
	if err != nil {
		return fmt.Errorf("upserting vacancy band for %s: %w", id.Key(), err)
	}

	return nil
}

// UpsertHighResBand writes the paid high-resolution change-detection band.
func (r *sqlRepository) UpsertHighResBand(ctx context.Context, id model.Identity, b model.HighResBand) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parcels SET
			planet_scene_count = ?, planet_change_score = ?, planet_temporal_span = ?,
			planet_earliest_date = ?, planet_latest_date = ?,
			planet_earliest_thumb_url = ?, planet_latest_thumb_url = ?,
			planet_scan_date = ?,
			updated_at = ?
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`,
		b.SceneCount, b.ChangeScore, b.TemporalSpan,
		nullTime(b.EarliestDate), nullTime(b.LatestDate),
		nullString(b.EarliestThumbURL), nullString(b.LatestThumbURL),
		nowUTC(),
		nowUTC(),
		id.ParcelID, id.County, id.StateCode,
	)
	if err != nil {
		return fmt.Errorf("upserting high-res band for %s: %w", id.Key(), err)
	}

	return nil
}

// UpsertConvictionBand writes the Pass 2.5 fused score.
func (r *sqlRepository) UpsertConvictionBand(ctx context.Context, id model.Identity, b model.ConvictionBand) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parcels SET
			conviction_score = ?, conviction_base_score = ?, conviction_vacancy_bonus = ?,
			conviction_mc_score = ?, conviction_components = ?,
			mc_signal_count = ?, mc_codes = ?,
			conviction_date = ?,
			updated_at = ?
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`,
		b.ConvictionScore, b.ConvictionBaseScore, b.ConvictionVacancyBonus,
		b.ConvictionMCScore, b.ConvictionComponents,
		b.MCSignalCount, strings.Join(b.MCCodes, ","),
		nowUTC(),
		nowUTC(),
		id.ParcelID, id.County, id.StateCode,
	)
	if err != nil {
		return fmt.Errorf("upserting conviction band for %s: %w", id.Key(), err)
	}

	return nil
}

// AuditVacancyCheck records a best-effort audit row. Failure here is
// logged, never returned: the parent vacancy band write must never be
// rolled back by an audit-table hiccup.
func (r *sqlRepository) AuditVacancyCheck(ctx context.Context, id model.Identity, account string, vacant, dpvConfirmed bool, errorCode string) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vacancy_checks (parcel_uuid, checked_at, account, vacant, dpv_confirmed, error_code)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.ParcelID+"|"+id.Key(), nowUTC(), account, vacant, dpvConfirmed, nullString(errorCode))
	if err != nil {
		auditLogger.Printf("best-effort audit write failed for %s: %v", id.Key(), err)
	}
}

func nullFloat(v float64) any {
	if v == 0 {
		return sql.NullFloat64{}
	}

	return v
}

func nullFloatIf(ok bool, v float64) any {
	if !ok {
		return sql.NullFloat64{}
	}

	return v
}

func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}

	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return sql.NullTime{}
	}

	return t
}

// ComponentsJSON is a small helper conviction orchestration uses to record
// which component values (distress composite, motivation score, vacancy
// bonus) were present vs absent when the fused score was computed.
func ComponentsJSON(parts map[string]any) string {
	b, err := json.Marshal(parts)
	if err != nil {
		return "{}"
	}

	return string(b)
}
