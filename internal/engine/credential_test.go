// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/relay/internal/config"
)

func testCreds() []config.CredentialConfig {
	return []config.CredentialConfig{
		{ID: "primary", Priority: 1, DailyLimit: 100, Enabled: true},
		{ID: "secondary", Priority: 2, DailyLimit: 100, Enabled: true},
		{ID: "spare", Priority: 2, DailyLimit: 10, Enabled: true},
		{ID: "disabled", Priority: 0, Enabled: false},
	}
}

func newTestPool(t *testing.T, now *time.Time) *CredentialPool {
	t.Helper()
	p := NewCredentialPool(3)
	p.SetNowFunc(func() time.Time { return *now })
	return p
}

func TestCredentialPoolBestPrefersLowestPriority(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPool(t, &now)

	cc, ok := p.Best(testCreds())
	require.True(t, ok)
	assert.Equal(t, "primary", cc.ID, "disabled priority 0 entry is skipped")
}

func TestCredentialPoolBestBreaksTiesByRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPool(t, &now)
	p.Deactivate("primary")

	// secondary and spare share priority 2; secondary has more headroom.
	cc, ok := p.Best(testCreds())
	require.True(t, ok)
	assert.Equal(t, "secondary", cc.ID)
}

func TestCredentialPoolDailyLimitExcludes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPool(t, &now)

	creds := []config.CredentialConfig{
		{ID: "only", Priority: 1, DailyLimit: 2, Enabled: true},
	}
	p.RecordUsage("only", true)
	p.RecordUsage("only", true)

	_, ok := p.Best(creds)
	assert.False(t, ok, "limit reached leaves nothing selectable")
	assert.Equal(t, 2, p.CallsToday("only"))
}

func TestCredentialPoolSoftDeactivationAfterConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPool(t, &now)

	creds := []config.CredentialConfig{{ID: "only", Priority: 1, Enabled: true}}

	p.RecordUsage("only", false)
	p.RecordUsage("only", false)
	_, ok := p.Best(creds)
	require.True(t, ok, "two failures is below the threshold")

	p.RecordUsage("only", false)
	_, ok = p.Best(creds)
	assert.False(t, ok, "third consecutive failure deactivates")
}

func TestCredentialPoolSuccessResetsFailureStreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPool(t, &now)

	creds := []config.CredentialConfig{{ID: "only", Priority: 1, Enabled: true}}

	p.RecordUsage("only", false)
	p.RecordUsage("only", false)
	p.RecordUsage("only", true)
	p.RecordUsage("only", false)
	p.RecordUsage("only", false)

	_, ok := p.Best(creds)
	assert.True(t, ok, "streak restarted after the success")
}

func TestCredentialPoolMidnightRollover(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	p := newTestPool(t, &now)

	creds := []config.CredentialConfig{
		{ID: "only", Priority: 1, DailyLimit: 1, Enabled: true},
	}
	p.RecordUsage("only", true)
	p.Deactivate("only")

	_, ok := p.Best(creds)
	require.False(t, ok)

	now = time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	cc, ok := p.Best(creds)
	require.True(t, ok, "new UTC day restores usage and deactivation")
	assert.Equal(t, "only", cc.ID)
	assert.Equal(t, 0, p.CallsToday("only"))

	// Repeated reads within the same day must not reset again.
	p.RecordUsage("only", true)
	assert.Equal(t, 1, p.CallsToday("only"))
	assert.Equal(t, 1, p.CallsToday("only"))
}

func TestCredentialPoolActiveCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPool(t, &now)

	creds := testCreds()
	assert.Equal(t, 3, p.ActiveCount(creds))

	p.Deactivate("spare")
	assert.Equal(t, 2, p.ActiveCount(creds))
}
