// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type payload struct {
	NDVI float64 `json:"ndvi"`
}

func TestDisk_PutThenGetRoundTrips(t *testing.T) {
	d := NewDisk(t.TempDir(), time.Hour)
	key := Key("aerial", "identify", "35.0", "-80.0")

	require.NoError(t, d.Put(key, payload{NDVI: 0.42}))

	var got payload
	ok, err := d.Get(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.42, got.NDVI, 1e-9)
}

func TestDisk_GetMissReturnsFalse(t *testing.T) {
	d := NewDisk(t.TempDir(), time.Hour)

	var got payload
	ok, err := d.Get(Key("nonexistent"), &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDisk_ExpiredEntryIsAMiss(t *testing.T) {
	d := NewDisk(t.TempDir(), time.Hour)
	key := Key("x")

	require.NoError(t, d.Put(key, payload{NDVI: 0.1}))

	// Backdate the entry past the TTL.
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(d.path(key), stale, stale))

	var got payload
	ok, err := d.Get(key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKey_IsStableAndOrderSensitive(t *testing.T) {
	require.Equal(t, Key("a", "b"), Key("a", "b"))
	require.NotEqual(t, Key("a", "b"), Key("b", "a"))
}
