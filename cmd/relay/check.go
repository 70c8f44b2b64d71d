// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/relay/internal/adapter"
	"github.com/sigil-dev/relay/internal/secrets"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// checkHTTPClient is the HTTP client used for credential validation.
// Exposed as a variable so tests can replace it.
var checkHTTPClient = &http.Client{Timeout: 10 * time.Second}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configured vendor credentials",
		Long:  "Resolve every configured credential and make a lightweight call to each vendor to confirm the keys work.",
		RunE:  runCheck,
	}

	cmd.Flags().String("vendor", "", "check only this vendor")

	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	only, _ := cmd.Flags().GetString("vendor")
	out := cmd.OutOrStdout()

	cfgStore, err := loadConfigStore()
	if err != nil {
		return err
	}
	cfg := cfgStore.Current()

	resolver := secrets.NewResolver(secrets.NewKeyringStore())

	checked := 0
	failed := 0
	for _, vc := range cfg.SortedVendors() {
		if only != "" && vc.Name != only {
			continue
		}
		for _, cc := range vc.Credentials {
			if !cc.Enabled {
				continue
			}
			checked++

			key, err := resolver.Resolve(cc.SecretRef)
			if err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "FAIL  %s/%s: %s\n", vc.Name, cc.ID, err)
				continue
			}

			if err := adapter.ValidateKey(cmd.Context(), checkHTTPClient, vc.Type, key); err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "FAIL  %s/%s: %s\n", vc.Name, cc.ID, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "OK    %s/%s\n", vc.Name, cc.ID)
		}
	}

	if checked == 0 {
		_, _ = fmt.Fprintln(out, "No enabled credentials to check.")
		return nil
	}
	_, _ = fmt.Fprintf(out, "%d checked, %d failed\n", checked, failed)
	if failed > 0 {
		return relayerr.Errorf(relayerr.CodeVendorKeyCheckFailed, "%d credential(s) failed validation", failed)
	}
	return nil
}
