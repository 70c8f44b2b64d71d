// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"context"
	"math/rand"
	"time"
)

// backoffDelay computes the exponential delay for the given retry
// ordinal (0-based) with full jitter, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	// Full jitter in [d/2, d] spreads concurrent retries apart.
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// sleepContext waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the wait was cut short.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
