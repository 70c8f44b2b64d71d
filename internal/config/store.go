// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package config

import (
	"log/slog"
	"sync/atomic"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// Store holds the current configuration snapshot and supports atomic
// reloads. Readers get an immutable *Config and keep using it for the
// duration of whatever they started; a reload swaps the pointer without
// disturbing in-flight work.
type Store struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewStore loads the configuration at path and returns a Store holding
// it as the current snapshot.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path}
	s.cur.Store(cfg)
	return s, nil
}

// NewStoreWith wraps an already-loaded Config. Used by tests and by
// callers that assemble configuration without a file.
func NewStoreWith(cfg *Config) *Store {
	s := &Store{}
	s.cur.Store(cfg)
	return s
}

// Current returns the active configuration snapshot.
func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Reload re-reads and re-validates the configuration file and atomically
// swaps the snapshot. On any error the previous snapshot stays active.
func (s *Store) Reload() (*Config, error) {
	if s.path == "" {
		return nil, relayerr.New(relayerr.CodeConfigReloadFailure,
			"reload requires a file-backed configuration")
	}

	cfg, err := Load(s.path)
	if err != nil {
		return nil, relayerr.Wrap(err, relayerr.CodeConfigReloadFailure, "reloading configuration")
	}

	s.cur.Store(cfg)
	slog.Info("configuration reloaded", "path", s.path, "vendors", len(cfg.Vendors))
	return cfg, nil
}
