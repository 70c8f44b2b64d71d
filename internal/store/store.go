// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package store

import (
	"context"
	"sync"
	"time"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// Attempt is one persisted routing attempt. Records are append-only;
// nothing in the system updates or deletes them.
type Attempt struct {
	ID           string
	RequestID    string
	Vendor       string
	CredentialID string
	Model        string
	At           time.Time
	Success      bool
	LatencyMS    int64
	PromptTokens int
	OutputTokens int
	Kind         string
	Reason       string
}

// QueryOpts narrows ListAttempts. Zero values mean "no filter".
type QueryOpts struct {
	Vendor string
	Since  time.Time
	Limit  int
}

// AttemptStore persists the attempt trail.
type AttemptStore interface {
	Append(ctx context.Context, a Attempt) error
	ListAttempts(ctx context.Context, opts QueryOpts) ([]Attempt, error)
	Close() error
}

// AttemptStoreFactory creates an AttemptStore given a data path.
type AttemptStoreFactory func(dataPath string) (AttemptStore, error)

var (
	factories   = map[string]AttemptStoreFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, fn AttemptStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = fn
}

// NewAttemptStore creates the store for the named backend, defaulting
// to "memory" when backend is empty.
func NewAttemptStore(backend, dataPath string) (AttemptStore, error) {
	if backend == "" {
		backend = "memory"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, relayerr.Errorf(relayerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
