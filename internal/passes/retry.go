// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package passes

import (
	"context"
	"math/rand"
	"time"

	"github.com/parceldistress/sentinel/internal/errs"
)

// WithRetry retries fn with exponential backoff and jitter, bounded to
// maxAttempts, but only for errors classified transient. Rate-limit, auth,
// structural and other kinds are returned immediately: per the error
// handling design, only transient upstream failures (5xx, timeouts, DNS)
// are worth a bounded retry here — rate limits are handled inside the
// client that owns the quota, and auth failures are operator-actionable.
func WithRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	backoff := 500 * time.Millisecond

	var err error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !errs.IsTransient(err) {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff *= 2
	}

	return err
}
