// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_DoublesAndCaps(t *testing.T) {
	b := NewBackoff()

	require.Equal(t, 120*time.Second, b.Next(0))
	require.Equal(t, 240*time.Second, b.Next(0))
	require.Equal(t, 480*time.Second, b.Next(0))
	require.Equal(t, 900*time.Second, b.Next(0)) // 960s would exceed the 900s cap
	require.Equal(t, 900*time.Second, b.Next(0))
}

func TestBackoff_HonorsLargerRetryAfter(t *testing.T) {
	b := NewBackoff()

	require.Equal(t, 600*time.Second, b.Next(600*time.Second))
}

func TestBackoff_ResetClearsConsecutiveCount(t *testing.T) {
	b := NewBackoff()

	b.Next(0)
	b.Next(0)
	b.Reset()

	require.Equal(t, 120*time.Second, b.Next(0))
}

func TestLimiter_MonthlyQuotaExceeded(t *testing.T) {
	l := NewLimiter(60_000, 2)

	require.NoError(t, l.Wait(t.Context()))
	require.NoError(t, l.Wait(t.Context()))
	require.ErrorIs(t, l.Wait(t.Context()), ErrMonthlyQuotaExceeded)
}
