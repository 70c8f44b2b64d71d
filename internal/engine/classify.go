// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"context"
	"errors"
	"net"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// Classify maps a failed adapter error to its FailureKind. Adapters
// return coded errors where they can; raw transport errors from lower
// layers are recognized here as a fallback. Classification happens once
// per failed attempt.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}

	switch {
	case relayerr.IsTimeout(err):
		return FailureTimeout
	case relayerr.IsUnauthorized(err):
		return FailureAuthInvalid
	case relayerr.IsRateLimited(err):
		return FailureRateLimited
	case relayerr.IsQuotaExceeded(err):
		return FailureQuotaExceeded
	case relayerr.HasCode(err, relayerr.CodeVendorModelNotFound):
		return FailureModelNotFound
	case relayerr.IsUpstreamFailure(err):
		return FailureServerError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureNetwork
	}

	return FailureUnknown
}

// retryable reports whether a FailureKind merits one bounded retry with
// backoff on the same vendor before advancing.
func (k FailureKind) retryable() bool {
	switch k {
	case FailureRateLimited, FailureServerError, FailureTimeout, FailureNetwork:
		return true
	default:
		return false
	}
}
