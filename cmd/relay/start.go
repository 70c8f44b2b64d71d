// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/relay/internal/config"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the relay gateway",
		Long:  "Load configuration, wire all subsystems, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgStore, err := loadConfigStore()
	if err != nil {
		return err
	}
	cfg := cfgStore.Current()

	gw, err := WireGateway(cfgStore, resolveDataDir())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gw.Close(); cerr != nil {
			slog.Warn("shutdown cleanup", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("relay gateway starting",
		"listen", cfg.Server.Listen,
		"vendors", len(cfg.SortedVendors()),
		"storage", cfg.Storage.Backend)

	if err := gw.Server.Start(ctx); err != nil {
		return err
	}

	slog.Info("relay gateway stopped")
	return nil
}

// loadConfigStore builds the reloadable config store. When viper found a
// config file the store reloads from it; otherwise the merged viper view
// (defaults, env, flags) is wrapped as a fixed snapshot.
func loadConfigStore() (*config.Store, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return config.NewStore(path)
	}
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeConfigLoadReadFailure, "loading config: %w", err)
	}
	return config.NewStoreWith(cfg), nil
}
