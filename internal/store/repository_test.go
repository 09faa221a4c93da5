// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open("")
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	t.Cleanup(func() { db.Close() })

	return db
}

func insertBaseParcel(t *testing.T, db *sql.DB, id model.Identity) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO parcels (parcel_id, county, state_code, point, situs_city, situs_zip, mailing_state, updated_at)
		VALUES (?, ?, ?, ST_Point(-81.1873, 35.2621), 'Gastonia', '28052', ?, ?)
	`, id.ParcelID, id.County, id.StateCode, id.StateCode, time.Now().UTC())
	require.NoError(t, err)
}

func TestUpsertPass1Band_ScanPassNeverRegresses(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	id := model.Identity{ParcelID: "P1", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, id)

	require.NoError(t, repo.UpsertPass1Band(ctx, id, model.Pass1Band{NDVI: 0.72, ScanPass: 1}))
	require.NoError(t, repo.UpsertSatelliteBand(ctx, id, model.SatelliteBand{TrendDirection: "rising"}))

	var scanPass int

	require.NoError(t, db.QueryRow(`SELECT scan_pass FROM parcels WHERE parcel_id = ?`, id.ParcelID).Scan(&scanPass))
	require.Equal(t, 2, scanPass)

	// Writing pass1 again (e.g. a retried or out-of-order flush) must not
	// downgrade scan_pass below what pass15b already advanced it to.
	require.NoError(t, repo.UpsertPass1Band(ctx, id, model.Pass1Band{NDVI: 0.72, ScanPass: 1}))
	require.NoError(t, db.QueryRow(`SELECT scan_pass FROM parcels WHERE parcel_id = ?`, id.ParcelID).Scan(&scanPass))
	require.Equal(t, 2, scanPass)
}

func TestUpsertPass1Band_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	id := model.Identity{ParcelID: "P1", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, id)

	band := model.Pass1Band{
		NDVI: 0.72, NDVICategory: "very_dense", FloodRiskTier: "LOW",
		DistressScore: 1.2, FlagOvergrowth: true, ConfOvergrowth: 0.6, ScanPass: 1,
	}

	require.NoError(t, repo.UpsertPass1Band(ctx, id, band))
	require.NoError(t, repo.UpsertPass1Band(ctx, id, band))

	var ndvi, score float64

	require.NoError(t, db.QueryRow(`SELECT ndvi, distress_score FROM parcels WHERE parcel_id = ?`, id.ParcelID).Scan(&ndvi, &score))
	require.InDelta(t, 0.72, ndvi, 1e-9)
	require.InDelta(t, 1.2, score, 1e-9)
}

func TestAuditVacancyCheck_BestEffort_NeverFailsCaller(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	id := model.Identity{ParcelID: "P1", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, id)

	// AuditVacancyCheck has no error return: a failed audit write must never
	// block the parcel update that triggered it.
	repo.AuditVacancyCheck(ctx, id, "account1", true, true, "")

	var count int

	require.NoError(t, db.QueryRow(`SELECT count(*) FROM vacancy_checks`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestSelectForPass1_OnlyUnscannedParcels(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	unscanned := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	scanned := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, unscanned)
	insertBaseParcel(t, db, scanned)
	require.NoError(t, repo.UpsertPass1Band(ctx, scanned, model.Pass1Band{NDVI: 0.1, ScanPass: 1}))

	got, err := repo.SelectForPass1(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].ParcelID)
}

func TestSelectSentinelWorthy_RequiresFlagAndExactPass1(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	worthy := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	notWorthy := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}
	alreadyPast := model.Identity{ParcelID: "C", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, worthy)
	insertBaseParcel(t, db, notWorthy)
	insertBaseParcel(t, db, alreadyPast)

	require.NoError(t, repo.UpsertPass1Band(ctx, worthy, model.Pass1Band{SentinelWorthy: true, ScanPass: 1}))
	require.NoError(t, repo.UpsertPass1Band(ctx, notWorthy, model.Pass1Band{SentinelWorthy: false, ScanPass: 1}))
	require.NoError(t, repo.UpsertPass1Band(ctx, alreadyPast, model.Pass1Band{SentinelWorthy: true, ScanPass: 1}))
	require.NoError(t, repo.UpsertSatelliteBand(ctx, alreadyPast, model.SatelliteBand{TrendDirection: "stable"}))

	got, err := repo.SelectSentinelWorthy(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].ParcelID)
}

func TestSelectForVacancy_CompositeCutoffAndNoPriorCheck(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	above := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	below := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}
	checked := model.Identity{ParcelID: "C", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, above)
	insertBaseParcel(t, db, below)
	insertBaseParcel(t, db, checked)

	_, err := db.Exec(`UPDATE parcels SET distress_composite = 8.1 WHERE parcel_id IN ('A', 'C')`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE parcels SET distress_composite = 7.4 WHERE parcel_id = 'B'`)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertVacancyBand(ctx, checked, model.VacancyBand{Vacant: true}))

	got, err := repo.SelectForVacancy(ctx, 7.5, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ParcelID)
	}

	if diff := cmp.Diff([]string{"A"}, ids); diff != "" {
		t.Fatalf("selected parcels mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectForConviction_RequiresCompositeAndNoPriorConviction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ready := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	noComposite := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}
	alreadyFused := model.Identity{ParcelID: "C", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, ready)
	insertBaseParcel(t, db, noComposite)
	insertBaseParcel(t, db, alreadyFused)

	_, err := db.Exec(`UPDATE parcels SET distress_composite = 7.59 WHERE parcel_id IN ('A', 'C')`)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertConvictionBand(ctx, alreadyFused, model.ConvictionBand{ConvictionScore: 7.59}))

	got, err := repo.SelectForConviction(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].ParcelID)
	require.InDelta(t, 7.59, got[0].History.DistressComposite, 1e-9)
}

func TestSelectForConviction_CarriesVacancyFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	id := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	insertBaseParcel(t, db, id)
	require.NoError(t, repo.UpsertVacancyBand(ctx, id, model.VacancyBand{FlagVacancy: true, VacancyConfidence: 0.90}))

	_, err := db.Exec(`UPDATE parcels SET distress_composite = 8.0 WHERE parcel_id = 'A'`)
	require.NoError(t, err)

	got, err := repo.SelectForConviction(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Vacancy.FlagVacancy)
	require.InDelta(t, 0.90, got[0].Vacancy.VacancyConfidence, 1e-9)
}
