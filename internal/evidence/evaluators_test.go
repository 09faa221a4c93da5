// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateOvergrowth_StrongTier(t *testing.T) {
	flag := EvaluateOvergrowth(Bundle{CurrentNDVI: 0.72})
	require.True(t, flag.Fired)
	require.GreaterOrEqual(t, flag.Confidence, 0.6)
}

func TestEvaluateOvergrowth_BoundaryExact(t *testing.T) {
	// NDVI exactly 0.65 fires the strong tier; 0.6499 does not (no history).
	exact := EvaluateOvergrowth(Bundle{CurrentNDVI: 0.65})
	require.True(t, exact.Fired, "the strong tier includes its threshold value")

	justBelow := EvaluateOvergrowth(Bundle{CurrentNDVI: 0.6499})
	require.False(t, justBelow.Fired)
}

func TestEvaluateOvergrowth_ModerateRequiresHistoricalDelta(t *testing.T) {
	noHistory := EvaluateOvergrowth(Bundle{CurrentNDVI: 0.55})
	require.False(t, noHistory.Fired)

	withDelta := EvaluateOvergrowth(Bundle{
		CurrentNDVI:            0.55,
		HasHistoricalBaseline:  true,
		HistoricalBaselineNDVI: 0.35,
	})
	require.True(t, withDelta.Fired)

	belowDelta := EvaluateOvergrowth(Bundle{
		CurrentNDVI:            0.55,
		HasHistoricalBaseline:  true,
		HistoricalBaselineNDVI: 0.45,
	})
	require.False(t, belowDelta.Fired)
}

func TestEvaluateNeglect_FloodBoostInHighRiskZone(t *testing.T) {
	flag := EvaluateNeglect(Bundle{CurrentNDVI: 0.20, FloodRiskTier: FloodHigh})
	require.True(t, flag.Fired)
	require.InDelta(t, 0.65, flag.Confidence, 1e-9)
}

func TestEvaluateNeglect_MetamorphicFloodBoostNeverDecreasesOrFalselyIncreases(t *testing.T) {
	withoutBoost := EvaluateNeglect(Bundle{CurrentNDVI: 0.20, FloodRiskTier: FloodNone})
	withBoost := EvaluateNeglect(Bundle{CurrentNDVI: 0.20, FloodRiskTier: FloodHigh})

	require.Less(t, withoutBoost.Confidence, withBoost.Confidence)
}

func TestEvaluateFlood(t *testing.T) {
	require.Equal(t, 1.0, EvaluateFlood(Bundle{FloodRiskTier: FloodHigh}).Confidence)
	require.Equal(t, 0.6, EvaluateFlood(Bundle{FloodRiskTier: FloodModerate}).Confidence)
	require.False(t, EvaluateFlood(Bundle{FloodRiskTier: FloodLow}).Fired)
	require.False(t, EvaluateFlood(Bundle{FloodRiskTier: FloodNone}).Fired)
}

func TestEvaluateStructuralChange(t *testing.T) {
	notFired := EvaluateStructuralChange(Bundle{
		HasHistoricalBaseline: true, HistoricalBaselineNDVI: 0.50, CurrentNDVI: 0.35,
	})
	require.False(t, notFired.Fired)

	fired := EvaluateStructuralChange(Bundle{
		HasHistoricalBaseline: true, HistoricalBaselineNDVI: 0.50, CurrentNDVI: 0.29,
	})
	require.True(t, fired.Fired)
}

func TestEvaluateVacancy_AddressMismatchForcesExactly070(t *testing.T) {
	withDPV := EvaluateVacancy(Bundle{Vacancy: &VacancyEvidence{Vacant: true, DPVConfirmed: true, AddressMismatch: true}})
	require.Equal(t, 0.70, withDPV.Confidence)

	withoutDPV := EvaluateVacancy(Bundle{Vacancy: &VacancyEvidence{Vacant: true, DPVConfirmed: false, AddressMismatch: true}})
	require.Equal(t, 0.70, withoutDPV.Confidence)
}

func TestEvaluateVacancy_DPVTiers(t *testing.T) {
	require.Equal(t, 0.90, EvaluateVacancy(Bundle{Vacancy: &VacancyEvidence{Vacant: true, DPVConfirmed: true}}).Confidence)
	require.Equal(t, 0.75, EvaluateVacancy(Bundle{Vacancy: &VacancyEvidence{Vacant: true, DPVConfirmed: false}}).Confidence)
	require.False(t, EvaluateVacancy(Bundle{Vacancy: &VacancyEvidence{Vacant: false}}).Fired)
}

func TestEvaluateVacancy_ConfidenceInAllowedSet(t *testing.T) {
	allowed := map[float64]bool{0.70: true, 0.75: true, 0.90: true}

	for _, dpv := range []bool{true, false} {
		for _, mismatch := range []bool{true, false} {
			flag := EvaluateVacancy(Bundle{Vacancy: &VacancyEvidence{Vacant: true, DPVConfirmed: dpv, AddressMismatch: mismatch}})
			require.True(t, allowed[flag.Confidence], "unexpected confidence %v", flag.Confidence)
		}
	}
}
