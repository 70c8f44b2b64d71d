// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"sync"
	"time"

	"github.com/sigil-dev/relay/pkg/health"
)

// Breaker is a per-vendor circuit breaker. It trips open after a run of
// consecutive failures, blocks calls until a cooldown elapses, then lets
// a single probe through at a time; enough consecutive probe successes
// close it again. Breaker state is independent of credential and model
// state: a dead credential does not imply a dead vendor.
type Breaker struct {
	mu sync.Mutex

	state         health.BreakerState
	failures      int
	successes     int
	lastFailure   time.Time
	probeInFlight bool

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	nowFunc func() time.Time // for testing
}

// NewBreaker creates a closed Breaker with the given thresholds.
func NewBreaker(failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:            health.BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		nowFunc:          time.Now,
	}
}

// SetNowFunc overrides the time source (for testing).
func (b *Breaker) SetNowFunc(fn func() time.Time) {
	b.mu.Lock()
	b.nowFunc = fn
	b.mu.Unlock()
}

// Allow reports whether a call may proceed. While open it returns false
// until the cooldown has elapsed, at which point the breaker moves to
// half-open and admits exactly one in-flight probe at a time.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case health.BreakerClosed:
		return true

	case health.BreakerOpen:
		if b.nowFunc().Sub(b.lastFailure) < b.cooldown {
			return false
		}
		b.state = health.BreakerHalfOpen
		b.successes = 0
		b.probeInFlight = true
		return true

	case health.BreakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}

	return false
}

// ProbeAborted releases the half-open probe slot when an admitted call
// never reached the vendor. Without the release a skipped probe would
// leave the breaker rejecting every later call.
func (b *Breaker) ProbeAborted() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == health.BreakerHalfOpen {
		b.probeInFlight = false
	}
}

// OnSuccess records a successful call. In half-open state it counts
// toward the close threshold.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case health.BreakerClosed:
		b.failures = 0

	case health.BreakerHalfOpen:
		b.probeInFlight = false
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = health.BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

// OnFailure records a failed call. Reaching the failure threshold while
// closed opens the circuit; any failure while half-open reopens it and
// restarts the cooldown clock.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()
	switch b.state {
	case health.BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = health.BreakerOpen
			b.lastFailure = now
		}

	case health.BreakerHalfOpen:
		b.state = health.BreakerOpen
		b.lastFailure = now
		b.probeInFlight = false
		b.successes = 0

	case health.BreakerOpen:
		b.lastFailure = now
	}
}

// State returns the current breaker state and, while open, the time the
// cooldown ends.
func (b *Breaker) State() (health.BreakerState, *time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == health.BreakerOpen {
		until := b.lastFailure.Add(b.cooldown)
		return b.state, &until
	}
	return b.state, nil
}
