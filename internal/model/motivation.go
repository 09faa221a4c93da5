// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// MotivationSignal is one read-only row produced by the external
// motivation-curator system. It is always joined against a parcel through
// the full (parcel_id, county, state_code) compound key, never a bare
// parcel_id, since parcel_id repeats across counties.
type MotivationSignal struct {
	ParcelID   string
	County     string
	StateCode  string
	Code       string
	Confidence float64
	Evidence   string
}

// MotivationScoreRow is one row of the conviction-fusion backfill table.
// Its uniqueness key is (parcel_id, computed_at), not parcel_id alone, so
// Pass 2.5 replaces a county's rows with a scoped DELETE+INSERT rather than
// an upsert.
type MotivationScoreRow struct {
	Identity
	ComputedAt  time.Time
	MCRaw       float64
	SignalCount int
	Codes       []string
}
