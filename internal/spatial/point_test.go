// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoint_ScanDuckDBTextForm(t *testing.T) {
	var p Point

	require.NoError(t, p.Scan([]byte("POINT (-81.187300 35.262100)")))
	require.InDelta(t, -81.1873, p.Lng, 1e-6)
	require.InDelta(t, 35.2621, p.Lat, 1e-6)
}

func TestPoint_ScanMapForm(t *testing.T) {
	var p Point

	require.NoError(t, p.Scan(map[string]interface{}{"x": -81.1873, "y": 35.2621}))
	require.InDelta(t, -81.1873, p.Lng, 1e-9)
	require.InDelta(t, 35.2621, p.Lat, 1e-9)
}

func TestPoint_ScanNilIsZero(t *testing.T) {
	p := Point{Lat: 1, Lng: 2}

	require.NoError(t, p.Scan(nil))
	require.Zero(t, p.Lat)
	require.Zero(t, p.Lng)
}

func TestHaversineDistance_KnownDistance(t *testing.T) {
	gastonia := Point{Lat: 35.2621, Lng: -81.1873}
	charlotte := Point{Lat: 35.2271, Lng: -80.8431}

	d := gastonia.HaversineDistance(&charlotte)

	// Roughly 31.5 km between the two city centers.
	require.InDelta(t, 31_500, d, 1_500)
}

func TestHaversineDistance_ZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 35.2621, Lng: -81.1873}

	require.InDelta(t, 0, p.HaversineDistance(&p), 1e-6)
}
