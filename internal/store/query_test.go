// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/model"
)

func TestQuery_FiltersByCountyAndMinDistressScore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	gastonHigh := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	gastonLow := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}
	otherCounty := model.Identity{ParcelID: "C", County: "Wake", StateCode: "NC"}

	for _, id := range []model.Identity{gastonHigh, gastonLow, otherCounty} {
		insertBaseParcel(t, db, id)
	}

	require.NoError(t, repo.UpsertPass1Band(ctx, gastonHigh, model.Pass1Band{DistressScore: 8.0, ScanPass: 1}))
	require.NoError(t, repo.UpsertPass1Band(ctx, gastonLow, model.Pass1Band{DistressScore: 1.0, ScanPass: 1}))
	require.NoError(t, repo.UpsertPass1Band(ctx, otherCounty, model.Pass1Band{DistressScore: 9.0, ScanPass: 1}))

	views, err := Query(ctx, db, Filter{County: "Gaston", HasMinDistressScore: true, MinDistressScore: 5.0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "A", views[0].ParcelID)
}

func TestQuery_FlagFilterIsExactBooleanMatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	flagged := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	notFlagged := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, flagged)
	insertBaseParcel(t, db, notFlagged)

	require.NoError(t, repo.UpsertPass1Band(ctx, flagged, model.Pass1Band{FlagNeglect: true, ScanPass: 1}))
	require.NoError(t, repo.UpsertPass1Band(ctx, notFlagged, model.Pass1Band{FlagNeglect: false, ScanPass: 1}))

	yes := true
	views, err := Query(ctx, db, Filter{FlagNeglect: &yes, Limit: 10})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "A", views[0].ParcelID)
}

func TestQuery_ScannedOnlyExcludesUnscannedParcels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	scanned := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	unscanned := model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"}

	insertBaseParcel(t, db, scanned)
	insertBaseParcel(t, db, unscanned)
	require.NoError(t, repo.UpsertPass1Band(ctx, scanned, model.Pass1Band{ScanPass: 1}))

	views, err := Query(ctx, db, Filter{ScannedOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "A", views[0].ParcelID)
}

func TestQuery_BandPresenceDistinguishesUnscannedFromZero(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	id := model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"}
	insertBaseParcel(t, db, id)

	// A real zero-confidence, zero-score scan must still read as "present".
	require.NoError(t, repo.UpsertPass1Band(ctx, id, model.Pass1Band{DistressScore: 0, ScanPass: 1}))

	views, err := Query(ctx, db, Filter{ParcelID: "A", Limit: 10})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, views[0].Pass1Present)
	require.False(t, views[0].HistoryPresent)
	require.False(t, views[0].VacancyPresent)
}

func TestQuery_IgnoresUnknownSortColumnAndDefaultsToParcelID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertBaseParcel(t, db, model.Identity{ParcelID: "B", County: "Gaston", StateCode: "NC"})
	insertBaseParcel(t, db, model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"})

	views, err := Query(ctx, db, Filter{SortColumn: "'; DROP TABLE parcels; --", Limit: 10})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "A", views[0].ParcelID)
	require.Equal(t, "B", views[1].ParcelID)
}

func TestQuery_ClampsOversizedLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		insertBaseParcel(t, db, model.Identity{ParcelID: string(rune('A' + i)), County: "Gaston", StateCode: "NC"})
	}

	views, err := Query(ctx, db, Filter{Limit: 5000})
	require.NoError(t, err)
	require.Len(t, views, 3)
}
