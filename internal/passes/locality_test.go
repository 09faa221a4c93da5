// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/spatial"
)

func TestSortByH3Locality_GroupsNearbyParcels(t *testing.T) {
	near1 := model.Parcel{Identity: model.Identity{ParcelID: "near1"}, Point: spatial.Point{Lat: 35.2271, Lng: -80.8431}}
	near2 := model.Parcel{Identity: model.Identity{ParcelID: "near2"}, Point: spatial.Point{Lat: 35.2280, Lng: -80.8440}}
	far := model.Parcel{Identity: model.Identity{ParcelID: "far"}, Point: spatial.Point{Lat: 61.2181, Lng: -149.9003}}

	parcels := []model.Parcel{far, near1, near2}

	SortByH3Locality(parcels)

	cells := make([]uint64, len(parcels))
	for i, p := range parcels {
		cells[i] = spatial.IndexLevels(p.Point).Res4
	}

	require.True(t, cells[0] <= cells[1])
	require.True(t, cells[1] <= cells[2])
}

func TestSortByH3Locality_StableForEqualCells(t *testing.T) {
	a := model.Parcel{Identity: model.Identity{ParcelID: "a"}, Point: spatial.Point{Lat: 35.2271, Lng: -80.8431}}
	b := model.Parcel{Identity: model.Identity{ParcelID: "b"}, Point: spatial.Point{Lat: 35.2271, Lng: -80.8431}}

	parcels := []model.Parcel{a, b}

	SortByH3Locality(parcels)

	require.Equal(t, "a", parcels[0].ParcelID)
	require.Equal(t, "b", parcels[1].ParcelID)
}
