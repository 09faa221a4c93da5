// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package flood

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZone_RiskTier(t *testing.T) {
	cases := []struct {
		name string
		zone Zone
		want string
	}{
		{"no hit", Zone{Hit: false}, RiskNone},
		{"high risk AE", Zone{Hit: true, FldZone: "AE"}, RiskHigh},
		{"high risk A", Zone{Hit: true, FldZone: "A"}, RiskHigh},
		{"high risk VE", Zone{Hit: true, FldZone: "VE"}, RiskHigh},
		{"zone X minimal", Zone{Hit: true, FldZone: "X", ZoneSubtype: "MINIMAL"}, RiskLow},
		{"zone X 500-year", Zone{Hit: true, FldZone: "X", ZoneSubtype: "500"}, RiskModerate},
		{"zone X unknown subtype", Zone{Hit: true, FldZone: "X", ZoneSubtype: "OTHER"}, RiskNone},
		{"unrecognized zone", Zone{Hit: true, FldZone: "D"}, RiskNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.zone.RiskTier())
		})
	}
}

func TestZone_NeverReferencesFloodway(t *testing.T) {
	// FLD_AR_ID and STATIC_BFE are the only fields beyond zone/subtype this
	// system reads; FLOODWAY is intentionally absent from the struct.
	z := Zone{FldAreaID: "1200Z", StaticBFE: 12.5}
	require.Equal(t, "1200Z", z.FldAreaID)
	require.InDelta(t, 12.5, z.StaticBFE, 1e-9)

	zt := reflect.TypeOf(Zone{})
	for i := 0; i < zt.NumField(); i++ {
		require.NotEqual(t, "FLOODWAY", zt.Field(i).Tag.Get("json"))
	}
}
