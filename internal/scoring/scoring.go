// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package scoring implements the three scores described in the design: the
// per-parcel weighted distress score, the county-scoped distress composite,
// and the conviction-score fusion.
package scoring

import "github.com/parceldistress/sentinel/internal/evidence"

// Flag weights for the weighted distress score.
const (
	WeightOvergrowth = 2.0
	WeightNeglect    = 1.5
	WeightFlood      = 1.5
	WeightStructural = 2.5
	WeightVacancy    = 2.5
)

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// DistressScore computes the weighted, clamped sum of flag confidences.
// Unrecognized flag names contribute zero weight.
func DistressScore(flags []evidence.Flag) float64 {
	var sum float64

	for _, f := range flags {
		if !f.Fired {
			continue
		}

		switch f.Name {
		case "vegetation_overgrowth":
			sum += WeightOvergrowth * f.Confidence
		case "vegetation_neglect":
			sum += WeightNeglect * f.Confidence
		case "flood_risk":
			sum += WeightFlood * f.Confidence
		case "structural_change":
			sum += WeightStructural * f.Confidence
		case "usps_vacancy":
			sum += WeightVacancy * f.Confidence
		}
	}

	return clamp(sum, 0, 10)
}

// FloodRiskNormalized maps a flood risk tier to the normalized value used in
// the distress composite formula. This is a distinct scale from the
// flood_risk flag's own confidence values (1.0/0.6).
func FloodRiskNormalized(tier string) float64 {
	switch tier {
	case evidence.FloodHigh:
		return 1.0
	case evidence.FloodModerate:
		return 0.5
	case evidence.FloodLow:
		return 0.1
	default:
		return 0
	}
}

// DistressComposite blends the county-scoped NDVI-slope percentile rank
// with the normalized flood risk, scaled to [0, 10].
func DistressComposite(ndviSlopePctile, floodRiskNormalized float64) float64 {
	composite := 0.70*ndviSlopePctile + 0.30*floodRiskNormalized

	return clamp(composite*10, 0, 10)
}
