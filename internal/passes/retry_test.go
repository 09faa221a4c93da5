// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package passes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/errs"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0

	err := WithRetry(context.Background(), 3, func() error {
		attempts++
		if attempts < 3 {
			return errs.New("aerial", errs.KindTransient, "timeout", nil)
		}

		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithRetry_DoesNotRetryNonTransientErrors(t *testing.T) {
	attempts := 0
	authErr := errs.New("vacancy", errs.KindAuth, "bad token", nil)

	err := WithRetry(context.Background(), 5, func() error {
		attempts++

		return authErr
	})

	require.ErrorIs(t, err, authErr)
	require.Equal(t, 1, attempts)
}

func TestWithRetry_ReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	attempts := 0

	err := WithRetry(context.Background(), 2, func() error {
		attempts++

		return errs.New("flood", errs.KindTransient, "unavailable", nil)
	})

	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestWithRetry_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0

	err := WithRetry(ctx, 5, func() error {
		attempts++

		return errs.New("flood", errs.KindTransient, "unavailable", nil)
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}
