// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit holds the per-client rate envelopes described in the
// design: a wrapped token-bucket limiter for quota-bounded clients
// (satellite NDVI), and a jitter sleeper plus exponential backoff for the
// carrier-vacancy client's strict per-hour, per-credential quota.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with a monthly soft-quota
// counter, used by the satellite NDVI client (10,000 req/month,
// 300 req/min).
type Limiter struct {
	perMinute *rate.Limiter

	mu           sync.Mutex
	monthlyUsed  int
	monthlyQuota int
}

// NewLimiter builds a Limiter for the given per-minute rate and monthly quota.
func NewLimiter(perMinute int, monthlyQuota int) *Limiter {
	return &Limiter{
		perMinute:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		monthlyQuota: monthlyQuota,
	}
}

// ErrMonthlyQuotaExceeded is returned by Wait once the monthly soft quota is spent.
var ErrMonthlyQuotaExceeded = fmt.Errorf("monthly request quota exceeded")

// Wait blocks until a request may proceed, honoring both the per-minute
// token bucket and the monthly quota. The monthly counter is a soft,
// in-process counter; it resets only on process restart, which is
// acceptable because each pass run is short relative to a month.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.monthlyQuota > 0 && l.monthlyUsed >= l.monthlyQuota {
		l.mu.Unlock()

		return ErrMonthlyQuotaExceeded
	}
	l.monthlyUsed++
	l.mu.Unlock()

	return l.perMinute.Wait(ctx)
}

// JitterSleeper enforces the carrier-vacancy client's mandatory inter-call
// delay: a uniformly random interval in [min, max], required both to evade
// bot-detection heuristics and to smooth a shorter-window spike limiter.
type JitterSleeper struct {
	Min, Max time.Duration
}

// Sleep blocks for a random duration in [Min, Max], or returns early if ctx
// is cancelled.
func (j JitterSleeper) Sleep(ctx context.Context) error {
	d := j.Min
	if j.Max > j.Min {
		d += time.Duration(rand.Int63n(int64(j.Max - j.Min)))
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff tracks the per-credential exponential backoff state after a 429:
// starting at 120s, doubling per consecutive 429, capped at 900s, honoring
// any Retry-After header when it is larger than the computed backoff.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	consecutive int
}

// NewBackoff builds a Backoff with the carrier-vacancy client's defaults.
func NewBackoff() *Backoff {
	return &Backoff{Initial: 120 * time.Second, Max: 900 * time.Second}
}

// Next returns the delay to apply for the next 429 and advances the
// consecutive-failure counter. retryAfter, if non-zero, overrides the
// computed delay when larger.
func (b *Backoff) Next(retryAfter time.Duration) time.Duration {
	delay := b.Initial << b.consecutive
	if delay > b.Max || delay <= 0 {
		delay = b.Max
	}

	b.consecutive++

	if retryAfter > delay {
		delay = retryAfter
	}

	return delay
}

// Reset clears the consecutive-failure counter after a successful call.
func (b *Backoff) Reset() {
	b.consecutive = 0
}
