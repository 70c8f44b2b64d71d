// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func TestValidateKeyWithURL(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode relayerr.Code
	}{
		{"valid key", http.StatusOK, ""},
		{"unauthorized", http.StatusUnauthorized, relayerr.CodeVendorKeyInvalid},
		{"forbidden", http.StatusForbidden, relayerr.CodeVendorKeyInvalid},
		{"server error", http.StatusInternalServerError, relayerr.CodeVendorKeyCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotHeader string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotHeader = r.Header.Get("x-api-key")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := ValidateKeyWithURL(context.Background(), srv.Client(), "anthropic",
				srv.URL, map[string]string{"x-api-key": "sk-test"})

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "sk-test", gotHeader)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, relayerr.CodeOf(err))
		})
	}
}

func TestValidateKeyUnknownVendorType(t *testing.T) {
	err := ValidateKey(context.Background(), http.DefaultClient, "mystery", "key")
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeVendorKeyInvalid, relayerr.CodeOf(err))
}
