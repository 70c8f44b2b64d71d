// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/relay/pkg/health"
)

func newTestBreaker(t *testing.T, now *time.Time) *Breaker {
	t.Helper()
	b := NewBreaker(3, 2, 30*time.Second)
	b.SetNowFunc(func() time.Time { return *now })
	return b
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	b.OnFailure()
	b.OnFailure()
	state, _ := b.State()
	assert.Equal(t, health.BreakerClosed, state, "below threshold stays closed")
	assert.True(t, b.Allow())

	b.OnFailure()
	state, until := b.State()
	assert.Equal(t, health.BreakerOpen, state)
	require.NotNil(t, until)
	assert.Equal(t, now.Add(30*time.Second), *until)
	assert.False(t, b.Allow(), "open breaker blocks calls")
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()

	state, _ := b.State()
	assert.Equal(t, health.BreakerClosed, state, "streak restarted after a success")
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	assert.False(t, b.Allow())

	now = now.Add(31 * time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed admits a probe")

	state, _ := b.State()
	assert.Equal(t, health.BreakerHalfOpen, state)
	assert.False(t, b.Allow(), "only one probe may be in flight")

	b.OnSuccess()
	assert.True(t, b.Allow(), "probe finished, next one admitted")
}

func TestBreakerProbeAbortedReleasesSlot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	now = now.Add(31 * time.Second)
	require.True(t, b.Allow())
	require.False(t, b.Allow(), "probe slot is taken")

	// The admitted call never launched; the slot goes back.
	b.ProbeAborted()
	assert.True(t, b.Allow(), "released slot admits the next probe")

	state, _ := b.State()
	assert.Equal(t, health.BreakerHalfOpen, state)
}

func TestBreakerProbeAbortedIgnoredWhileClosed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	b.ProbeAborted()
	assert.True(t, b.Allow())
	state, _ := b.State()
	assert.Equal(t, health.BreakerClosed, state)
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	now = now.Add(time.Minute)

	require.True(t, b.Allow())
	b.OnSuccess()
	state, _ := b.State()
	assert.Equal(t, health.BreakerHalfOpen, state, "one success is not enough")

	require.True(t, b.Allow())
	b.OnSuccess()
	state, _ = b.State()
	assert.Equal(t, health.BreakerClosed, state)
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, &now)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	now = now.Add(time.Minute)

	require.True(t, b.Allow())
	b.OnFailure()

	state, until := b.State()
	assert.Equal(t, health.BreakerOpen, state)
	require.NotNil(t, until)
	assert.Equal(t, now.Add(30*time.Second), *until, "cooldown clock restarted")
	assert.False(t, b.Allow())
}
