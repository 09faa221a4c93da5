// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPStatus_MapsToExpectedKind(t *testing.T) {
	require.Equal(t, KindRateLimit, ClassifyHTTPStatus("vacancy", http.StatusTooManyRequests, "").Kind)
	require.Equal(t, KindAuth, ClassifyHTTPStatus("satellite", http.StatusUnauthorized, "").Kind)
	require.Equal(t, KindAuth, ClassifyHTTPStatus("satellite", http.StatusForbidden, "").Kind)
	require.Equal(t, KindStructural, ClassifyHTTPStatus("aerial", http.StatusBadRequest, "bad payload").Kind)
	require.Equal(t, KindTransient, ClassifyHTTPStatus("flood", http.StatusServiceUnavailable, "").Kind)
	require.Equal(t, KindTransient, ClassifyHTTPStatus("flood", http.StatusBadGateway, "").Kind)
	require.Equal(t, KindTransient, ClassifyHTTPStatus("flood", http.StatusGatewayTimeout, "").Kind)
	require.Equal(t, KindUnknown, ClassifyHTTPStatus("highres", http.StatusTeapot, "").Kind)
}

func TestClassify_UnwrapsSourceError(t *testing.T) {
	wrapped := errors.New("connection refused")
	se := New("aerial", KindTransient, "dial failed", wrapped)

	require.Equal(t, KindTransient, Classify(se))
	require.True(t, IsTransient(se))
	require.False(t, IsAuth(se))
	require.ErrorIs(t, se, wrapped)
}

func TestClassify_FallsBackToStringHeuristics(t *testing.T) {
	require.Equal(t, KindRateLimit, Classify(errors.New("received 429 too many requests")))
	require.Equal(t, KindAuth, Classify(errors.New("401 unauthorized")))
	require.Equal(t, KindTransient, Classify(errors.New("context deadline exceeded")))
	require.Equal(t, KindUnknown, Classify(errors.New("something else entirely")))
	require.Equal(t, KindUnknown, Classify(nil))
}

func TestIsRateLimit_TrueOnlyForRateLimitKind(t *testing.T) {
	require.True(t, IsRateLimit(New("vacancy", KindRateLimit, "quota", nil)))
	require.False(t, IsRateLimit(New("vacancy", KindAuth, "bad token", nil)))
}

func TestSourceError_ErrorIncludesSourceKindAndMessage(t *testing.T) {
	se := New("vacancy", KindAuth, "token rejected", nil)
	require.Contains(t, se.Error(), "vacancy")
	require.Contains(t, se.Error(), "auth")
	require.Contains(t, se.Error(), "token rejected")
}
