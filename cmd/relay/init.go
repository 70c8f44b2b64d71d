// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/relay/internal/config"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long:  "Write the annotated default configuration to ~/.config/relay/relay.yaml (or the path given with --path) for editing.",
		RunE:  runInit,
	}

	cmd.Flags().String("path", "", "destination path (default ~/.config/relay/relay.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return relayerr.Errorf(relayerr.CodeCLISetupFailure, "cannot determine config path: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return relayerr.Errorf(relayerr.CodeCLIInputInvalid,
			"config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return relayerr.Errorf(relayerr.CodeCLISetupFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, config.DefaultConfigYAML, 0o600); err != nil {
		return relayerr.Errorf(relayerr.CodeCLISetupFailure, "writing config file: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Wrote default config to %s\n", path)
	_, _ = fmt.Fprintln(out, "Edit it to add vendors and credentials, then run 'relay start'.")
	return nil
}
