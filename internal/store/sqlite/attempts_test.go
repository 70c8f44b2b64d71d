// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/relay/internal/store"
)

func newTestStore(t *testing.T) *AttemptStore {
	t.Helper()
	s, err := NewAttemptStore(filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAttemptStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)

	require.NoError(t, s.Append(ctx, store.Attempt{
		ID:           "att-1",
		RequestID:    "req-1",
		Vendor:       "anthropic",
		CredentialID: "primary",
		Model:        "fast-chat",
		At:           at,
		Success:      false,
		LatencyMS:    240,
		PromptTokens: 12,
		OutputTokens: 0,
		Kind:         "rate_limited",
		Reason:       "429 too many requests",
	}))

	got, err := s.ListAttempts(ctx, store.QueryOpts{Vendor: "anthropic"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, "att-1", a.ID)
	assert.Equal(t, "req-1", a.RequestID)
	assert.Equal(t, "primary", a.CredentialID)
	assert.False(t, a.Success)
	assert.Equal(t, int64(240), a.LatencyMS)
	assert.Equal(t, "rate_limited", a.Kind)
	assert.True(t, a.At.Equal(at))
}

func TestAttemptStoreFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		vendor := "alpha"
		if i%2 == 1 {
			vendor = "beta"
		}
		require.NoError(t, s.Append(ctx, store.Attempt{
			ID:      string(rune('a' + i)),
			Vendor:  vendor,
			At:      base.Add(time.Duration(i) * time.Minute),
			Success: true,
		}))
	}

	alpha, err := s.ListAttempts(ctx, store.QueryOpts{Vendor: "alpha"})
	require.NoError(t, err)
	assert.Len(t, alpha, 3)

	since, err := s.ListAttempts(ctx, store.QueryOpts{Since: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := s.ListAttempts(ctx, store.QueryOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a", limited[0].ID, "ordered by time ascending")
}

func TestAttemptStoreDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := store.Attempt{ID: "dup", Vendor: "alpha", At: time.Now()}
	require.NoError(t, s.Append(ctx, rec))
	require.Error(t, s.Append(ctx, rec), "primary key enforces append-only uniqueness")
}
