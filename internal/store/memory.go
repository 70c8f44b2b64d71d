// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package store

import (
	"context"
	"sync"
)

func init() {
	RegisterBackend("memory", func(string) (AttemptStore, error) {
		return NewMemoryAttemptStore(), nil
	})
}

// Compile-time interface check.
var _ AttemptStore = (*MemoryAttemptStore)(nil)

// MemoryAttemptStore keeps the attempt trail in process memory. It is
// the default backend and the one tests use.
type MemoryAttemptStore struct {
	mu       sync.RWMutex
	attempts []Attempt
}

// NewMemoryAttemptStore creates an empty in-memory store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{}
}

// Append stores one attempt.
func (s *MemoryAttemptStore) Append(_ context.Context, a Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

// ListAttempts returns attempts matching opts in insertion order.
func (s *MemoryAttemptStore) ListAttempts(_ context.Context, opts QueryOpts) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Attempt
	for _, a := range s.attempts {
		if opts.Vendor != "" && a.Vendor != opts.Vendor {
			continue
		}
		if !opts.Since.IsZero() && a.At.Before(opts.Since) {
			continue
		}
		out = append(out, a)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryAttemptStore) Close() error { return nil }
