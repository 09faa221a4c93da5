// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"fmt"
	"log"
)

// migrationGroup is a named set of columns guarded by a single existence
// check, so a migration already applied never re-issues DDL against a
// table a long-running scan may hold locks on.
type migrationGroup struct {
	name    string
	columns []string // column names this group is responsible for
	ddl     []string // statements to run when any column is missing
}

const baseTableDDL = `
CREATE TABLE IF NOT EXISTS parcels (
	parcel_id       VARCHAR NOT NULL,
	county          VARCHAR NOT NULL,
	state_code      VARCHAR NOT NULL,
	point           POINT_2D,
	situs_address   VARCHAR,
	situs_city      VARCHAR,
	situs_zip       VARCHAR,
	mailing_address VARCHAR,
	mailing_city    VARCHAR,
	mailing_zip     VARCHAR,
	mailing_state   VARCHAR,
	property_class  VARCHAR,
	valuation       DOUBLE,
	land_size_acres DOUBLE,
	updated_at      TIMESTAMP,
	PRIMARY KEY (parcel_id, county, state_code)
);
`

var migrationGroups = []migrationGroup{
	{
		name:    "scan",
		columns: []string{"ndvi", "ndvi_category", "flood_zone", "special_hazard", "flood_risk_tier", "distress_score", "flag_overgrowth", "flag_neglect", "flag_flood", "flag_structural", "conf_overgrowth", "conf_neglect", "conf_flood", "conf_structural", "scan_pass", "scan_date", "sentinel_worthy", "scan_error"},
		ddl: []string{
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS ndvi DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS ndvi_category VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flood_zone VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS special_hazard BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flood_risk_tier VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS distress_score DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flag_overgrowth BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flag_neglect BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flag_flood BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flag_structural BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conf_overgrowth DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conf_neglect DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conf_flood DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conf_structural DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS scan_pass SMALLINT DEFAULT 0;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS scan_date TIMESTAMP;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_worthy BOOLEAN DEFAULT false;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS scan_error VARCHAR;`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_ndvi ON parcels(ndvi);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_distress_score ON parcels(distress_score);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_flood_zone ON parcels(flood_zone);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_flag_overgrowth ON parcels(flag_overgrowth);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_flag_neglect ON parcels(flag_neglect);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_flag_flood ON parcels(flag_flood);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_flag_structural ON parcels(flag_structural);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_scan_date ON parcels(scan_date);`,
		},
	},
	{
		name:    "composite",
		columns: []string{"ndvi_slope_5yr", "ndvi_slope_pctile", "vintage_count", "year_span", "distress_composite", "composite_date"},
		ddl: []string{
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS ndvi_slope_5yr DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS ndvi_slope_pctile DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vintage_count INTEGER;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS year_span INTEGER;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS distress_composite DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS composite_date TIMESTAMP;`,
		},
	},
	{
		name:    "satellite",
		columns: []string{"sentinel_trend_direction", "sentinel_slope", "sentinel_latest_ndvi", "sentinel_month_count", "sentinel_mean_ndvi", "sentinel_source", "sentinel_chart_url", "sentinel_scan_date", "sentinel_error"},
		ddl: []string{
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_trend_direction VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_slope DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_latest_ndvi DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_month_count INTEGER;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_mean_ndvi DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_source VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_chart_url VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_scan_date TIMESTAMP;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS sentinel_error VARCHAR;`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_sentinel_scan_date ON parcels(sentinel_scan_date);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_sentinel_trend ON parcels(sentinel_trend_direction);`,
		},
	},
	{
		name:    "vacancy",
		columns: []string{"vacancy_address", "vacancy_city", "vacancy_zip", "vacancy_zip4", "vacant", "dpv_confirmed", "vacancy_business", "address_mismatch", "vacancy_check_date", "vacancy_error", "flag_vacancy", "vacancy_confidence"},
		ddl: []string{
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_address VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_city VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_zip VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_zip4 VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacant BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS dpv_confirmed BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_business BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS address_mismatch BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_check_date TIMESTAMP;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_error VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS flag_vacancy BOOLEAN;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS vacancy_confidence DOUBLE;`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_flag_vacancy ON parcels(flag_vacancy);`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_vacancy_check_date ON parcels(vacancy_check_date);`,
		},
	},
	{
		name:    "highres",
		columns: []string{"planet_scene_count", "planet_change_score", "planet_temporal_span", "planet_earliest_date", "planet_latest_date", "planet_earliest_thumb_url", "planet_latest_thumb_url", "planet_scan_date"},
		ddl: []string{
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_scene_count INTEGER;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_change_score DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_temporal_span INTEGER;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_earliest_date TIMESTAMP;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_latest_date TIMESTAMP;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_earliest_thumb_url VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_latest_thumb_url VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS planet_scan_date TIMESTAMP;`,
		},
	},
	{
		name:    "conviction",
		columns: []string{"conviction_score", "conviction_base_score", "conviction_vacancy_bonus", "conviction_mc_score", "conviction_components", "mc_signal_count", "mc_codes", "conviction_date"},
		ddl: []string{
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conviction_score DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conviction_base_score DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conviction_vacancy_bonus DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conviction_mc_score DOUBLE;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conviction_components VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS mc_signal_count INTEGER;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS mc_codes VARCHAR;`,
			`ALTER TABLE parcels ADD COLUMN IF NOT EXISTS conviction_date TIMESTAMP;`,
			`CREATE INDEX IF NOT EXISTS idx_parcels_conviction_score ON parcels(conviction_score DESC NULLS LAST);`,
		},
	},
}

const auxTableDDL = `
CREATE TABLE IF NOT EXISTS vacancy_checks (
	parcel_uuid VARCHAR NOT NULL,
	checked_at  TIMESTAMP NOT NULL,
	account     VARCHAR,
	vacant      BOOLEAN,
	dpv_confirmed BOOLEAN,
	error_code  VARCHAR
);

CREATE TABLE IF NOT EXISTS motivation_scores (
	parcel_id    VARCHAR NOT NULL,
	county       VARCHAR NOT NULL,
	state_code   VARCHAR NOT NULL,
	computed_at  TIMESTAMP NOT NULL,
	mc_raw       DOUBLE,
	signal_count INTEGER,
	codes        VARCHAR
);

-- motivation_signals is owned by the external motivation-curator system in
-- production; this table only exists so a local/dev DuckDB file has
-- somewhere to read fixture rows from. SelectMotivationSignals always
-- reads it through the full (parcel_id, county, state_code) key.
CREATE TABLE IF NOT EXISTS motivation_signals (
	parcel_id  VARCHAR NOT NULL,
	county     VARCHAR NOT NULL,
	state_code VARCHAR NOT NULL,
	code       VARCHAR NOT NULL,
	confidence DOUBLE,
	evidence   VARCHAR
);
`

func existingColumns(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT column_name FROM information_schema.columns WHERE table_name = 'parcels'`)
	if err != nil {
		return nil, fmt.Errorf("reading column catalog: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column catalog: %w", err)
		}

		cols[name] = true
	}

	return cols, rows.Err()
}

func groupComplete(existing map[string]bool, g migrationGroup) bool {
	for _, c := range g.columns {
		if !existing[c] {
			return false
		}
	}

	return true
}

// Migrate runs every idempotent migration group, skipping the DDL for a
// group entirely once its columns already exist so a restarted process
// never takes an exclusive table lock against a long-running scan.
func Migrate(db *sql.DB) error {
	// DuckDB needs to load the spatial extension before the POINT_2D
	// column in baseTableDDL (and the ST_Point calls every caller uses to
	// write it) can be parsed.
	if _, err := db.Exec(`INSTALL spatial; LOAD spatial;`); err != nil {
		return fmt.Errorf("loading spatial extension: %w", err)
	}

	if _, err := db.Exec(baseTableDDL); err != nil {
		return fmt.Errorf("creating base parcels table: %w", err)
	}

	if _, err := db.Exec(auxTableDDL); err != nil {
		return fmt.Errorf("creating auxiliary tables: %w", err)
	}

	for _, g := range migrationGroups {
		existing, err := existingColumns(db)
		if err != nil {
			return err
		}

		if groupComplete(existing, g) {
			log.Printf("migration group %q already applied, skipping", g.name)

			continue
		}

		for _, stmt := range g.ddl {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migration group %q: %w", g.name, err)
			}
		}

		log.Printf("migration group %q applied", g.name)
	}

	return nil
}
