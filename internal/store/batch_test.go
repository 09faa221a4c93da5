// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNullHelpers_ZeroValuesBecomeSQLNull(t *testing.T) {
	require.Equal(t, sql.NullFloat64{}, nullFloat(0))
	require.Equal(t, 1.5, nullFloat(1.5))

	require.Equal(t, sql.NullString{}, nullString(""))
	require.Equal(t, "x", nullString("x"))

	require.Equal(t, sql.NullTime{}, nullTime(time.Time{}))

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, ts, nullTime(ts))
}

func TestNullFloatIf_RespectsValidFlag(t *testing.T) {
	require.Equal(t, sql.NullFloat64{}, nullFloatIf(false, 0.08))
	require.Equal(t, 0.08, nullFloatIf(true, 0.08))
}

func TestComponentsJSON_RoundTripsKnownKeys(t *testing.T) {
	js := ComponentsJSON(map[string]any{"distress_composite_present": true, "mc_present": false})
	require.Contains(t, js, "distress_composite_present")
	require.Contains(t, js, "mc_present")
}

func TestNowUTC_HonorsClockOverride(t *testing.T) {
	fixed := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	old := clockOverride
	clockOverride = func() time.Time { return fixed }

	defer func() { clockOverride = old }()

	require.Equal(t, fixed, nowUTC())
}
