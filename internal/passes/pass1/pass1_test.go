// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package pass1

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/evidence"
)

func TestScorePass1Band_OvergrowthOnly(t *testing.T) {
	// NDVI 0.72, minimal-risk zone X: overgrowth fires at 0.6, no flood
	// flag, score = 2.0 * 0.6 = 1.2, below the sentinel cutoff.
	band, fired := ScorePass1Band(evidence.Bundle{
		CurrentNDVI:   0.72,
		FloodRiskTier: evidence.FloodLow,
	}, "X", false)

	require.True(t, fired)
	require.True(t, band.FlagOvergrowth)
	require.False(t, band.FlagFlood)
	require.InDelta(t, 1.2, band.DistressScore, 1e-9)
	require.False(t, band.SentinelWorthy)
	require.Equal(t, 1, band.ScanPass)
}

func TestScorePass1Band_NeglectMarksSentinelWorthyRegardlessOfScore(t *testing.T) {
	band, _ := ScorePass1Band(evidence.Bundle{
		CurrentNDVI:   0.20,
		FloodRiskTier: evidence.FloodNone,
	}, "", false)

	require.True(t, band.FlagNeglect)
	require.Less(t, band.DistressScore, SentinelWorthyThreshold)
	require.True(t, band.SentinelWorthy)
}

func TestScorePass1Band_NoFlags(t *testing.T) {
	band, fired := ScorePass1Band(evidence.Bundle{
		CurrentNDVI:   0.40,
		FloodRiskTier: evidence.FloodNone,
	}, "", false)

	require.False(t, fired)
	require.Zero(t, band.DistressScore)
	require.False(t, band.SentinelWorthy)
}

func TestScorePass1Band_ConfidencesWithinUnitInterval(t *testing.T) {
	band, _ := ScorePass1Band(evidence.Bundle{
		CurrentNDVI:   0.11,
		FloodRiskTier: evidence.FloodHigh,
	}, "AE", true)

	for _, conf := range []float64{band.ConfOvergrowth, band.ConfNeglect, band.ConfFlood, band.ConfStructural} {
		require.GreaterOrEqual(t, conf, 0.0)
		require.LessOrEqual(t, conf, 1.0)
	}

	require.GreaterOrEqual(t, band.DistressScore, 0.0)
	require.LessOrEqual(t, band.DistressScore, 10.0)
}
