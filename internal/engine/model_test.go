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

func testModels() []config.ModelConfig {
	return []config.ModelConfig{
		{Name: "big-coder", Priority: 1, Enabled: true},
		{Name: "fast-chat", Priority: 2, Enabled: true},
		{Name: "legacy", Priority: 3, Enabled: false},
	}
}

func newTestSelector(t *testing.T, now *time.Time) *ModelSelector {
	t.Helper()
	s := NewModelSelector()
	s.SetNowFunc(func() time.Time { return *now })
	return s
}

func TestModelSelectorBestByPriority(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, &now)

	mc, ok := s.Best(testModels(), "")
	require.True(t, ok)
	assert.Equal(t, "big-coder", mc.Name)
}

func TestModelSelectorTaskHintNarrows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, &now)

	mc, ok := s.Best(testModels(), "chat")
	require.True(t, ok)
	assert.Equal(t, "fast-chat", mc.Name, "hint match beats priority")

	mc, ok = s.Best(testModels(), "nonexistent")
	require.True(t, ok)
	assert.Equal(t, "big-coder", mc.Name, "unmatched hint falls back to all models")
}

func TestModelSelectorNotFoundSticksAcrossRollover(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, &now)

	s.MarkNotFound("big-coder")
	mc, ok := s.Best(testModels(), "")
	require.True(t, ok)
	assert.Equal(t, "fast-chat", mc.Name)

	now = now.Add(48 * time.Hour)
	mc, ok = s.Best(testModels(), "")
	require.True(t, ok)
	assert.Equal(t, "fast-chat", mc.Name, "not-found exclusion survives midnight")
}

func TestModelSelectorDailyLimitRollsOver(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	s := newTestSelector(t, &now)

	models := []config.ModelConfig{
		{Name: "only", Priority: 1, DailyLimit: 1, Enabled: true},
	}
	s.RecordUsage("only")
	_, ok := s.Best(models, "")
	require.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = s.Best(models, "")
	assert.True(t, ok, "usage counter reset at UTC midnight")
}

func TestModelSelectorActiveCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, &now)

	assert.Equal(t, 2, s.ActiveCount(testModels()))
	s.MarkNotFound("fast-chat")
	assert.Equal(t, 1, s.ActiveCount(testModels()))
}
