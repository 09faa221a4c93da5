// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"github.com/uber/h3-go/v4"
)

// CellLevels holds an H3 cell index for each resolution 1 through 8, the
// same band the upstream GIS ingestor uses to cluster parcels for
// raster-tile cache locality during historical and satellite enrichment.
type CellLevels struct {
	Res1, Res2, Res3, Res4, Res5, Res6, Res7, Res8 uint64
}

// IndexLevels computes H3 cell indices for a point at resolutions 1-8.
func IndexLevels(p Point) CellLevels {
	latLng := h3.NewLatLng(p.Lat, p.Lng)

	var levels CellLevels

	for res := 1; res <= 8; res++ {
		cell := h3.LatLngToCell(latLng, res)

		switch res {
		case 1:
			levels.Res1 = uint64(cell)
		case 2:
			levels.Res2 = uint64(cell)
		case 3:
			levels.Res3 = uint64(cell)
		case 4:
			levels.Res4 = uint64(cell)
		case 5:
			levels.Res5 = uint64(cell)
		case 6:
			levels.Res6 = uint64(cell)
		case 7:
			levels.Res7 = uint64(cell)
		case 8:
			levels.Res8 = uint64(cell)
		}
	}

	return levels
}
