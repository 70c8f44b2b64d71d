// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"time"

	"github.com/sigil-dev/relay/internal/adapter"
)

// Request is one logical completion request. Either Prompt or Messages
// must be set; Prompt is shorthand for a single user message.
type Request struct {
	Prompt          string
	Messages        []adapter.Message
	System          string
	TaskHint        string
	PreferredVendor string
	MaxTokens       int
	Temperature     *float64
}

// FailureKind is the typed category assigned to a failed attempt. It is
// the single signal driving every downstream decision: credential
// deactivation, model disabling, retry versus advance.
type FailureKind string

const (
	FailureNetwork       FailureKind = "network"
	FailureTimeout       FailureKind = "timeout"
	FailureAuthInvalid   FailureKind = "auth_invalid"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureQuotaExceeded FailureKind = "quota_exceeded"
	FailureModelNotFound FailureKind = "model_not_found"
	FailureServerError   FailureKind = "server_error"
	FailureUnknown       FailureKind = "unknown"
)

// AttemptRecord documents one call made to a vendor adapter. Records are
// append-only and never mutated after creation.
type AttemptRecord struct {
	ID           string        `json:"id"`
	RequestID    string        `json:"request_id"`
	Vendor       string        `json:"vendor"`
	CredentialID string        `json:"credential_id"`
	Model        string        `json:"model"`
	At           time.Time     `json:"at"`
	Success      bool          `json:"success"`
	Latency      time.Duration `json:"latency"`
	Usage        adapter.Usage `json:"usage"`
	Kind         FailureKind   `json:"kind,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// VendorFailure is the terminal classification for one vendor within a
// single request, surfaced so operators can tell "everything is
// rate-limited" apart from "everything is misconfigured".
type VendorFailure struct {
	Vendor string      `json:"vendor"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// Result is the value returned to the caller. The engine never raises
// past this boundary: total exhaustion is a typed Result, not an error.
type Result struct {
	Success       bool            `json:"success"`
	RequestID     string          `json:"request_id"`
	Vendor        string          `json:"vendor,omitempty"`
	Model         string          `json:"model,omitempty"`
	CredentialID  string          `json:"credential_id,omitempty"`
	Text          string          `json:"text,omitempty"`
	Usage         adapter.Usage   `json:"usage"`
	Elapsed       time.Duration   `json:"elapsed"`
	TotalAttempts int             `json:"total_attempts"`
	FallbackChain []string        `json:"fallback_chain"`
	Failures      []VendorFailure `json:"failures,omitempty"`
	Error         string          `json:"error,omitempty"`
}
