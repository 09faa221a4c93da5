// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"testing"

	"github.com/parceldistress/sentinel/internal/evidence"
	"github.com/stretchr/testify/require"
)

func TestDistressScore_OvergrowthOnly(t *testing.T) {
	// overgrowth conf 0.6, no other flags. score = 2.0 * 0.6 = 1.2.
	flags := []evidence.Flag{
		{Name: "vegetation_overgrowth", Fired: true, Confidence: 0.6},
	}

	require.InDelta(t, 1.2, DistressScore(flags), 1e-9)
}

func TestDistressScore_NeglectAndFlood(t *testing.T) {
	// neglect 0.65, flood 1.0. score = 1.5*0.65 + 1.5*1.0 = 2.475.
	flags := []evidence.Flag{
		{Name: "vegetation_neglect", Fired: true, Confidence: 0.65},
		{Name: "flood_risk", Fired: true, Confidence: 1.0},
	}

	require.InDelta(t, 2.475, DistressScore(flags), 1e-9)
}

func TestDistressScore_ClampedToTen(t *testing.T) {
	flags := []evidence.Flag{
		{Name: "vegetation_overgrowth", Fired: true, Confidence: 1.0},
		{Name: "vegetation_neglect", Fired: true, Confidence: 1.0},
		{Name: "flood_risk", Fired: true, Confidence: 1.0},
		{Name: "structural_change", Fired: true, Confidence: 1.0},
		{Name: "usps_vacancy", Fired: true, Confidence: 1.0},
	}

	require.Equal(t, 10.0, DistressScore(flags))
}

func TestDistressScore_UnfiredFlagsIgnored(t *testing.T) {
	flags := []evidence.Flag{
		{Name: "vegetation_overgrowth", Fired: false, Confidence: 0.9},
	}

	require.Zero(t, DistressScore(flags))
}

func TestFloodRiskNormalized(t *testing.T) {
	require.Equal(t, 1.0, FloodRiskNormalized(evidence.FloodHigh))
	require.Equal(t, 0.5, FloodRiskNormalized(evidence.FloodModerate))
	require.Equal(t, 0.1, FloodRiskNormalized(evidence.FloodLow))
	require.Equal(t, 0.0, FloodRiskNormalized(evidence.FloodNone))
}
