// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	_ "github.com/sigil-dev/relay/internal/adapter/anthropic"  // register anthropic adapter
	_ "github.com/sigil-dev/relay/internal/adapter/google"     // register google adapter
	_ "github.com/sigil-dev/relay/internal/adapter/openai"     // register openai adapter
	_ "github.com/sigil-dev/relay/internal/adapter/openrouter" // register openrouter adapter

	"github.com/sigil-dev/relay/internal/config"
	"github.com/sigil-dev/relay/internal/engine"
	"github.com/sigil-dev/relay/internal/secrets"
	"github.com/sigil-dev/relay/internal/server"
	"github.com/sigil-dev/relay/internal/store"
	_ "github.com/sigil-dev/relay/internal/store/sqlite" // register sqlite backend
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server   *server.Server
	Engine   *engine.Engine
	Attempts store.AttemptStore
	Config   *config.Store
}

// WireGateway creates all subsystems and wires them together.
// The dataDir is the root directory for persistent state.
func WireGateway(cfgStore *config.Store, dataDir string) (*Gateway, error) {
	cfg := cfgStore.Current()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Attempt trail store.
	storePath := cfg.Storage.Path
	if storePath == "" {
		storePath = dataDir
	}
	attempts, err := store.NewAttemptStore(cfg.Storage.Backend, storePath)
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "creating attempt store: %w", err)
	}

	// 2. Secret resolution (env refs plus OS keyring).
	resolver := secrets.NewResolver(secrets.NewKeyringStore())

	// 3. Routing engine.
	eng := engine.New(cfgStore, resolver, engine.NewLedger(attempts))

	// 4. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		_ = attempts.Close()
		return nil, relayerr.Errorf(relayerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	srv.RegisterServices(&server.Services{
		Engine: eng,
		Config: cfgStore,
	})

	return &Gateway{
		Server:   srv,
		Engine:   eng,
		Attempts: attempts,
		Config:   cfgStore,
	}, nil
}

// Close releases resources in reverse wiring order.
func (g *Gateway) Close() error {
	var errs []error
	if err := g.Engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := g.Attempts.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return relayerr.Join(errs...)
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	dataDir := viper.GetString("data_dir")
	if dataDir != "" {
		return dataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".relay")
}
