// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/relay/pkg/health"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-vendor engine status",
		Long:  "Query the running gateway's status endpoint and display vendor health, breaker states, and daily usage.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:18790", "gateway address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	gw := newGatewayClient(addr)
	var snap health.Snapshot
	if err := gw.getJSON("/api/v1/status", &snap); err != nil {
		if relayerr.HasCode(err, relayerr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "Gateway at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Gateway at %s: %s\n", addr, err)
		return nil
	}

	names := make([]string, 0, len(snap.Vendors))
	for name := range snap.Vendors {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintf(out, "Gateway at %s (%d vendors)\n", addr, len(names))
	for _, name := range names {
		vs := snap.Vendors[name]
		_, _ = fmt.Fprintf(out, "  %-14s %s\n", name+":", formatVendorStatus(vs))
	}
	return nil
}

func formatVendorStatus(vs health.VendorStatus) string {
	if !vs.Enabled {
		return "disabled"
	}
	s := fmt.Sprintf("%s, %d calls today, %.0f%% success",
		vs.Breaker, vs.CallsToday, vs.SuccessRate*100)
	if vs.AvgLatency > 0 {
		s += fmt.Sprintf(", avg %s", vs.AvgLatency.Round(time.Millisecond))
	}
	if vs.CooldownUntil != nil {
		s += fmt.Sprintf(", cooldown until %s", vs.CooldownUntil.Format(time.RFC3339))
	}
	return s
}
