// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexLevels_DeterministicForSamePoint(t *testing.T) {
	p := Point{Lat: 35.2271, Lng: -80.8431}

	a := IndexLevels(p)
	b := IndexLevels(p)

	require.Equal(t, a, b)
}

func TestIndexLevels_AllResolutionsPopulated(t *testing.T) {
	p := Point{Lat: 35.2271, Lng: -80.8431}

	levels := IndexLevels(p)

	require.NotZero(t, levels.Res1)
	require.NotZero(t, levels.Res2)
	require.NotZero(t, levels.Res3)
	require.NotZero(t, levels.Res4)
	require.NotZero(t, levels.Res5)
	require.NotZero(t, levels.Res6)
	require.NotZero(t, levels.Res7)
	require.NotZero(t, levels.Res8)
}

func TestIndexLevels_DistantPointsDiffer(t *testing.T) {
	gaston := Point{Lat: 35.2621, Lng: -81.1873}
	anchorage := Point{Lat: 61.2181, Lng: -149.9003}

	a := IndexLevels(gaston)
	b := IndexLevels(anchorage)

	require.NotEqual(t, a.Res1, b.Res1)
	require.NotEqual(t, a.Res4, b.Res4)
}

func TestIndexLevels_NearbyPointsShareCoarseCell(t *testing.T) {
	// Two points a few hundred meters apart within the same parcel cluster
	// should share the same resolution-1 (coarse) cell even though finer
	// resolutions may diverge.
	a := Point{Lat: 35.2271, Lng: -80.8431}
	b := Point{Lat: 35.2280, Lng: -80.8440}

	require.Equal(t, IndexLevels(a).Res1, IndexLevels(b).Res1)
}
