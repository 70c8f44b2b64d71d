// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package engine

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "net failure" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, ""},
		{"coded timeout", relayerr.New(relayerr.CodeVendorTimeout, "t"), FailureTimeout},
		{"coded auth", relayerr.New(relayerr.CodeVendorAuthInvalid, "a"), FailureAuthInvalid},
		{"coded rate limit", relayerr.New(relayerr.CodeVendorRateLimited, "r"), FailureRateLimited},
		{"coded quota", relayerr.New(relayerr.CodeVendorQuotaExceeded, "q"), FailureQuotaExceeded},
		{"coded model missing", relayerr.New(relayerr.CodeVendorModelNotFound, "m"), FailureModelNotFound},
		{"coded upstream", relayerr.New(relayerr.CodeVendorUpstreamFailure, "u"), FailureServerError},
		{"context deadline", context.DeadlineExceeded, FailureTimeout},
		{"net timeout", &fakeNetError{timeout: true}, FailureTimeout},
		{"net failure", &fakeNetError{}, FailureNetwork},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, FailureNetwork},
		{"plain error", errors.New("mystery"), FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFailureKindRetryable(t *testing.T) {
	assert.True(t, FailureRateLimited.retryable())
	assert.True(t, FailureServerError.retryable())
	assert.True(t, FailureTimeout.retryable())
	assert.True(t, FailureNetwork.retryable())

	assert.False(t, FailureAuthInvalid.retryable())
	assert.False(t, FailureQuotaExceeded.retryable())
	assert.False(t, FailureModelNotFound.retryable())
	assert.False(t, FailureUnknown.retryable())
}
