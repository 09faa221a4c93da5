// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package passes

import (
	"sort"

	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/spatial"
)

// SortByH3Locality reorders parcels by their resolution-4 H3 cell so that
// STAC and satellite reads for nearby parcels land close together in time,
// giving the upstream cloud-optimized-raster tile cache a chance to stay
// warm across a pass's fan-out. Pass 1's aerial-fast calls are cheap enough
// that this ordering doesn't matter there; Pass 1.5 and 1.5b's heavier
// per-point reads are where tile locality pays off.
func SortByH3Locality(parcels []model.Parcel) {
	sort.SliceStable(parcels, func(i, j int) bool {
		return spatial.IndexLevels(parcels[i].Point).Res4 < spatial.IndexLevels(parcels[j].Point).Res4
	})
}
