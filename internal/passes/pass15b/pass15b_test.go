// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package pass15b

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/sources/satellite"
)

func monthlySeries(start float64, step float64, months int) []satellite.MonthlyNDVI {
	series := make([]satellite.MonthlyNDVI, 0, months)
	for i := 0; i < months; i++ {
		series = append(series, satellite.MonthlyNDVI{
			Year:  2025,
			Month: i + 1,
			Mean:  start + step*float64(i),
		})
	}

	return series
}

func TestClassify_RisingSeries(t *testing.T) {
	band := Classify(monthlySeries(0.30, 0.02, 6), "satellite")

	require.Equal(t, TrendRising, band.TrendDirection)
	require.Greater(t, band.Slope, trendEpsilon)
	require.Equal(t, 6, band.MonthCount)
	require.InDelta(t, 0.40, band.LatestNDVI, 1e-9)
	require.Equal(t, "satellite", band.Source)
}

func TestClassify_FallingSeries(t *testing.T) {
	band := Classify(monthlySeries(0.50, -0.03, 6), "satellite")

	require.Equal(t, TrendFalling, band.TrendDirection)
	require.Less(t, band.Slope, -trendEpsilon)
}

func TestClassify_FlatSeriesIsStable(t *testing.T) {
	band := Classify(monthlySeries(0.40, 0, 6), "satellite")

	require.Equal(t, TrendStable, band.TrendDirection)
}

func TestClassify_SingleMonthIsInsufficient(t *testing.T) {
	band := Classify(monthlySeries(0.40, 0, 1), "satellite")

	require.Equal(t, TrendInsufficient, band.TrendDirection)
	require.Equal(t, 1, band.MonthCount)
}

func TestClassify_LatestTracksMostRecentMonthNotSliceOrder(t *testing.T) {
	series := []satellite.MonthlyNDVI{
		{Year: 2025, Month: 6, Mean: 0.55},
		{Year: 2025, Month: 1, Mean: 0.30},
		{Year: 2024, Month: 12, Mean: 0.28},
	}

	band := Classify(series, "satellite")
	require.InDelta(t, 0.55, band.LatestNDVI, 1e-9)
}
