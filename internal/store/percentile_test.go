// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/model"
)

func seedParcelWithSlope(t *testing.T, db *sql.DB, id model.Identity, slope float64, floodTier string) {
	t.Helper()

	insertBaseParcel(t, db, id)

	_, err := db.Exec(`UPDATE parcels SET ndvi_slope_5yr = ?, flood_risk_tier = ? WHERE parcel_id = ? AND county = ? AND state_code = ?`,
		slope, floodTier, id.ParcelID, id.County, id.StateCode)
	require.NoError(t, err)
}

func TestRecomputeCountyComposite_OrderPreservingWithinCounty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	low := model.Identity{ParcelID: "low", County: "Gaston", StateCode: "NC"}
	mid := model.Identity{ParcelID: "mid", County: "Gaston", StateCode: "NC"}
	high := model.Identity{ParcelID: "high", County: "Gaston", StateCode: "NC"}

	seedParcelWithSlope(t, db, low, -0.05, "NONE")
	seedParcelWithSlope(t, db, mid, 0.0, "NONE")
	seedParcelWithSlope(t, db, high, 0.08, "NONE")

	require.NoError(t, RecomputeCountyComposite(ctx, db, "Gaston", "NC"))

	pctile := func(parcelID string) float64 {
		var p float64

		require.NoError(t, db.QueryRow(`SELECT ndvi_slope_pctile FROM parcels WHERE parcel_id = ?`, parcelID).Scan(&p))

		return p
	}

	pLow, pMid, pHigh := pctile("low"), pctile("mid"), pctile("high")

	require.GreaterOrEqual(t, pMid, pLow)
	require.GreaterOrEqual(t, pHigh, pMid)
	require.InDelta(t, 0.0, pLow, 1e-9)
	require.InDelta(t, 1.0, pHigh, 1e-9)
}

func TestRecomputeCountyComposite_ClampedToTenAndScopedPerCounty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	b := model.Identity{ParcelID: "B", County: "Mecklenburg", StateCode: "NC"}

	seedParcelWithSlope(t, db, a, 0.05, "HIGH")
	seedParcelWithSlope(t, db, b, 0.05, "NONE")

	require.NoError(t, RecomputeCountyComposite(ctx, db, "Gaston", "NC"))

	var composite float64

	require.NoError(t, db.QueryRow(`SELECT distress_composite FROM parcels WHERE parcel_id = 'A'`).Scan(&composite))
	// Single-parcel county: slope percentile rank is 0, so composite comes
	// entirely from the flood term: 0.30 * 1.0 * 10 = 3.0.
	require.InDelta(t, 3.0, composite, 1e-9)

	require.LessOrEqual(t, composite, 10.0)
	require.GreaterOrEqual(t, composite, 0.0)

	// Recomputing Gaston must never touch Mecklenburg's row.
	var mecklenburgComposite sql.NullFloat64

	require.NoError(t, db.QueryRow(`SELECT distress_composite FROM parcels WHERE parcel_id = 'B'`).Scan(&mecklenburgComposite))
	require.False(t, mecklenburgComposite.Valid)
}

func TestRecomputeCountyComposite_IdempotentOnRerun(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	b := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}

	seedParcelWithSlope(t, db, a, -0.02, "MODERATE")
	seedParcelWithSlope(t, db, b, 0.03, "LOW")

	require.NoError(t, RecomputeCountyComposite(ctx, db, "Gaston", "NC"))

	readComposite := func(id string) float64 {
		var v float64

		require.NoError(t, db.QueryRow(`SELECT distress_composite FROM parcels WHERE parcel_id = ?`, id).Scan(&v))

		return v
	}

	firstA, firstB := readComposite("A"), readComposite("B")

	require.NoError(t, RecomputeCountyComposite(ctx, db, "Gaston", "NC"))

	require.InDelta(t, firstA, readComposite("A"), 1e-9)
	require.InDelta(t, firstB, readComposite("B"), 1e-9)
}

func TestDistinctCounties_OnlyCountsParcelsWithSlope(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	withSlope := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	noSlope := model.Identity{ParcelID: "B", County: "Wake", StateCode: "NC"}

	insertBaseParcel(t, db, withSlope)
	insertBaseParcel(t, db, noSlope)

	_, err := db.Exec(`UPDATE parcels SET ndvi_slope_5yr = 0.01 WHERE parcel_id = 'A'`)
	require.NoError(t, err)

	counties, err := DistinctCounties(ctx, db)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"Gaston", "NC"}}, counties)
}
