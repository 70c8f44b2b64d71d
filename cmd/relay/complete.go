// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/relay/internal/engine"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send a completion request through the gateway",
		Long:  "Route a prompt through the running gateway and print the completion along with routing details.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runComplete,
	}

	cmd.Flags().String("address", "127.0.0.1:18790", "gateway address")
	cmd.Flags().String("vendor", "", "vendor to try first")
	cmd.Flags().String("task", "", "task hint for model selection")
	cmd.Flags().String("system", "", "system instruction")
	cmd.Flags().Int("max-tokens", 0, "output token cap")
	cmd.Flags().Int("timeout", 0, "deadline in seconds for the whole fallback chain")

	return cmd
}

func runComplete(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	vendor, _ := cmd.Flags().GetString("vendor")
	task, _ := cmd.Flags().GetString("task")
	system, _ := cmd.Flags().GetString("system")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	timeout, _ := cmd.Flags().GetInt("timeout")
	out := cmd.OutOrStdout()

	body := map[string]any{"prompt": strings.Join(args, " ")}
	if vendor != "" {
		body["vendor"] = vendor
	}
	if task != "" {
		body["task_hint"] = task
	}
	if system != "" {
		body["system"] = system
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	if timeout > 0 {
		body["timeout_seconds"] = timeout
	}

	gw := newGatewayClient(addr)
	var res engine.Result
	if err := gw.postJSON("/api/v1/complete", body, &res); err != nil {
		if relayerr.HasCode(err, relayerr.CodeCLIGatewayNotRunning) {
			return relayerr.New(relayerr.CodeCLIGatewayNotRunning,
				"gateway is not running at "+addr+" (run 'relay start')")
		}
		return err
	}

	if !res.Success {
		_, _ = fmt.Fprintf(out, "Request %s failed: %s\n", res.RequestID, res.Error)
		for _, f := range res.Failures {
			_, _ = fmt.Fprintf(out, "  %s: %s (%s)\n", f.Vendor, f.Kind, f.Reason)
		}
		return relayerr.New(relayerr.CodeEngineAllExhausted, "completion failed")
	}

	_, _ = fmt.Fprintln(out, res.Text)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "[%s/%s, %d attempt(s), %s, %d tokens]\n",
		res.Vendor, res.Model, res.TotalAttempts, res.Elapsed.Round(time.Millisecond), res.Usage.TotalTokens)
	return nil
}
