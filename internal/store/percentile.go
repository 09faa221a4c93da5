// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecomputeCountyComposite recomputes ndvi_slope_pctile and
// distress_composite for every parcel in (county, state_code) using a
// single window-function pass. It must run after every parcel in the
// county has a slope recorded by UpsertHistoricalBand; running it earlier
// would rank a partial county and corrupt the percentile for parcels
// processed later in the same pass.
//
// county and state_code are never optional here: parcel_id repeats across
// counties, so ranking without the compound key would mix unrelated
// parcels into the same percentile window.
func RecomputeCountyComposite(ctx context.Context, db *sql.DB, county, stateCode string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			WITH ranked AS (
				SELECT
					parcel_id,
					percent_rank() OVER (
						PARTITION BY county, state_code
						ORDER BY ndvi_slope_5yr ASC NULLS FIRST
					) AS pctile
				FROM parcels
				WHERE county = ? AND state_code = ? AND ndvi_slope_5yr IS NOT NULL
			)
			UPDATE parcels
			SET ndvi_slope_pctile = ranked.pctile
			FROM ranked
			WHERE parcels.parcel_id = ranked.parcel_id
			  AND parcels.county = ? AND parcels.state_code = ?
		`, county, stateCode, county, stateCode); err != nil {
			return fmt.Errorf("ranking ndvi_slope_pctile for %s/%s: %w", county, stateCode, err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE parcels
			SET
				distress_composite = LEAST(10.0, GREATEST(0.0,
					(0.70 * COALESCE(ndvi_slope_pctile, 0) +
					 0.30 * CASE flood_risk_tier
					 	WHEN 'HIGH' THEN 1.0
					 	WHEN 'MODERATE' THEN 0.5
					 	WHEN 'LOW' THEN 0.1
					 	ELSE 0.0
					 END) * 10.0
				)),
				composite_date = now()
			WHERE county = ? AND state_code = ? AND ndvi_slope_pctile IS NOT NULL
		`, county, stateCode); err != nil {
			return fmt.Errorf("computing distress_composite for %s/%s: %w", county, stateCode, err)
		}

		return nil
	})
}

// DistinctCounties returns every (county, state_code) pair with at least
// one parcel awaiting a composite recomputation in this run.
func DistinctCounties(ctx context.Context, db *sql.DB) ([][2]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT county, state_code FROM parcels
		WHERE ndvi_slope_5yr IS NOT NULL
		ORDER BY county, state_code
	`)
	if err != nil {
		return nil, fmt.Errorf("listing distinct counties: %w", err)
	}
	defer rows.Close()

	var out [][2]string

	for rows.Next() {
		var county, state string
		if err := rows.Scan(&county, &state); err != nil {
			return nil, fmt.Errorf("scanning county row: %w", err)
		}

		out = append(out, [2]string{county, state})
	}

	return out, rows.Err()
}
