// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package evidence

const (
	overgrowthStrongThreshold   = 0.65
	overgrowthModerateLow       = 0.50
	overgrowthModerateHigh      = 0.65
	overgrowthHistoricalDelta   = 0.15
	overgrowthBaseConfidence    = 0.6

	neglectLow  = 0.10
	neglectHigh = 0.30

	structuralDropThreshold  = 0.20
	structuralBaseConfidence = 0.6
)

// EvaluateOvergrowth implements the two-tier vegetation_overgrowth rule:
// strong (NDVI >= 0.65) fires regardless of history; moderate
// (0.50 <= NDVI < 0.65) fires only when the historical delta exceeds 0.15.
func EvaluateOvergrowth(b Bundle) Flag {
	flag := Flag{Name: "vegetation_overgrowth"}

	// Boundary: NDVI exactly at the threshold fires the strong tier;
	// anything below needs the moderate-tier historical delta.
	strong := b.CurrentNDVI >= overgrowthStrongThreshold

	moderate := false
	if b.CurrentNDVI >= overgrowthModerateLow && b.CurrentNDVI <= overgrowthModerateHigh && b.HasHistoricalBaseline {
		delta := b.CurrentNDVI - b.HistoricalBaselineNDVI
		moderate = delta > overgrowthHistoricalDelta
	}

	if !strong && !moderate {
		return flag
	}

	flag.Fired = true
	flag.Confidence = overgrowthBaseConfidence

	if b.HasSatelliteAgreement {
		flag.Confidence = clamp01(flag.Confidence + agreementBoost)
	}

	if strong {
		flag.Evidence = "current NDVI above strong-tier threshold"
	} else {
		flag.Evidence = "moderate NDVI band with historical delta above threshold"
	}

	return flag
}

// EvaluateNeglect implements vegetation_neglect: linear inverse confidence
// within NDVI in [0.10, 0.30], boosted (never OR'd) when the parcel sits in
// a high flood-risk zone.
func EvaluateNeglect(b Bundle) Flag {
	flag := Flag{Name: "vegetation_neglect"}

	if b.CurrentNDVI < neglectLow || b.CurrentNDVI > neglectHigh {
		return flag
	}

	// Linear: 0.10 -> 1.0, 0.30 -> 0.0.
	conf := (neglectHigh - b.CurrentNDVI) / (neglectHigh - neglectLow)

	if b.FloodRiskTier == FloodHigh {
		// Additive, not a logical-or: a legitimate 0.0 base confidence
		// still gets the boost rather than being treated as "no signal".
		conf += 0.15
	}

	flag.Fired = true
	flag.Confidence = clamp01(conf)
	flag.Evidence = "NDVI within neglect band"

	return flag
}

// EvaluateFlood implements flood_risk: a direct zone-tier mapping, no
// magnitude computation.
func EvaluateFlood(b Bundle) Flag {
	flag := Flag{Name: "flood_risk"}

	switch b.FloodRiskTier {
	case FloodHigh:
		flag.Fired = true
		flag.Confidence = 1.0
		flag.Evidence = "high-risk FEMA zone"
	case FloodModerate:
		flag.Fired = true
		flag.Confidence = 0.6
		flag.Evidence = "moderate-risk FEMA zone"
	}

	return flag
}

// EvaluateStructuralChange implements structural_change: a drop of more
// than 0.20 NDVI from the historical baseline, boosted on cross-source
// agreement.
func EvaluateStructuralChange(b Bundle) Flag {
	flag := Flag{Name: "structural_change"}

	if !b.HasHistoricalBaseline {
		return flag
	}

	drop := b.HistoricalBaselineNDVI - b.CurrentNDVI
	if drop <= structuralDropThreshold {
		return flag
	}

	flag.Fired = true
	flag.Confidence = structuralBaseConfidence

	if b.HasSatelliteAgreement {
		flag.Confidence = clamp01(flag.Confidence + agreementBoost)
	}

	flag.Evidence = "NDVI drop below historical baseline beyond threshold"

	return flag
}

// EvaluateVacancy implements usps_vacancy. address_mismatch forces
// confidence to exactly 0.70 regardless of DPV confirmation.
func EvaluateVacancy(b Bundle) Flag {
	flag := Flag{Name: "usps_vacancy"}

	if b.Vacancy == nil || !b.Vacancy.Vacant {
		return flag
	}

	flag.Fired = true

	switch {
	case b.Vacancy.AddressMismatch:
		flag.Confidence = 0.70
		flag.Evidence = "carrier-confirmed vacant; resolved address mismatch"
	case b.Vacancy.DPVConfirmed:
		flag.Confidence = 0.90
		flag.Evidence = "carrier-confirmed vacant; DPV confirmed"
	default:
		flag.Confidence = 0.75
		flag.Evidence = "carrier-confirmed vacant; DPV unknown"
	}

	return flag
}

// EvaluateAll runs every evaluator over the bundle.
func EvaluateAll(b Bundle) []Flag {
	return []Flag{
		EvaluateOvergrowth(b),
		EvaluateNeglect(b),
		EvaluateFlood(b),
		EvaluateStructuralChange(b),
		EvaluateVacancy(b),
	}
}
