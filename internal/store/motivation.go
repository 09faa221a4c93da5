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

// SelectMotivationSignals reads every motivation signal for one parcel,
// joined on the full (parcel_id, county, state_code) key. A bare
// parcel_id join would mix signals across counties, since parcel_id is
// only unique within a single county.
func (r *sqlRepository) SelectMotivationSignals(ctx context.Context, id model.Identity) ([]model.MotivationSignal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT parcel_id, county, state_code, code, confidence, evidence
		FROM motivation_signals
		WHERE parcel_id = ? AND county = ? AND state_code = ?
	`, id.ParcelID, id.County, id.StateCode)
	if err != nil {
		return nil, fmt.Errorf("selecting motivation signals for %s/%s/%s: %w", id.County, id.StateCode, id.ParcelID, err)
	}
	defer rows.Close()

	var out []model.MotivationSignal

	for rows.Next() {
		var s model.MotivationSignal

		var confidence sql.NullFloat64

		var evidence sql.NullString

		if err := rows.Scan(&s.ParcelID, &s.County, &s.StateCode, &s.Code, &confidence, &evidence); err != nil {
			return nil, fmt.Errorf("scanning motivation signal row: %w", err)
		}

		s.Confidence = confidence.Float64
		s.Evidence = evidence.String

		out = append(out, s)
	}

	return out, rows.Err()
}

// ReplaceMotivationScores swaps a county's entire motivation_scores
// backfill in one transaction: DELETE then bulk INSERT, not an upsert,
// since the table's uniqueness key is (parcel_id, computed_at) rather than
// parcel_id alone — an upsert would accumulate one row per pass instead of
// replacing the prior one.
func ReplaceMotivationScores(ctx context.Context, db *sql.DB, county, stateCode string, rows []model.MotivationScoreRow) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM motivation_scores WHERE county = ? AND state_code = ?
		`, county, stateCode); err != nil {
			return fmt.Errorf("clearing motivation_scores for %s/%s: %w", county, stateCode, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO motivation_scores (parcel_id, county, state_code, computed_at, mc_raw, signal_count, codes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing motivation_scores insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if row.County != county || row.StateCode != stateCode {
				return fmt.Errorf("motivation score row %s belongs to %s/%s, not %s/%s", row.ParcelID, row.County, row.StateCode, county, stateCode)
			}

			if _, err := stmt.ExecContext(ctx,
				row.ParcelID, row.County, row.StateCode, row.ComputedAt,
				row.MCRaw, row.SignalCount, strings.Join(row.Codes, ","),
			); err != nil {
				return fmt.Errorf("inserting motivation score for %s: %w", row.ParcelID, err)
			}
		}

		return nil
	})
}
