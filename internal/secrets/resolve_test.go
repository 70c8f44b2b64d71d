// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package secrets_test

import (
	"testing"

	"github.com/sigil-dev/relay/internal/secrets"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is an in-memory secrets.Store for tests.
type mapStore map[string]string

func (m mapStore) Store(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}

func (m mapStore) Retrieve(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", relayerr.Errorf(relayerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m mapStore) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

func TestIsRef(t *testing.T) {
	assert.True(t, secrets.IsRef("env://API_KEY"))
	assert.True(t, secrets.IsRef("keyring://relay/openai"))
	assert.False(t, secrets.IsRef("sk-plaintext"))
	assert.False(t, secrets.IsRef(""))
}

func TestParseKeyringRef(t *testing.T) {
	tests := []struct {
		name        string
		ref         string
		wantService string
		wantKey     string
		wantErr     bool
	}{
		{"valid", "keyring://relay/openai-key", "relay", "openai-key", false},
		{"key with slash", "keyring://relay/team/openai", "relay", "team/openai", false},
		{"missing key", "keyring://relay", "", "", true},
		{"missing service", "keyring:///key", "", "", true},
		{"wrong scheme", "env://VAR", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, key, err := secrets.ParseKeyringRef(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, relayerr.CodeSecretInvalidInput, relayerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantService, service)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolveEnvRef(t *testing.T) {
	r := secrets.NewResolver(nil)
	r.SetLookupEnv(func(name string) (string, bool) {
		if name == "OPENAI_API_KEY" {
			return "sk-test", true
		}
		return "", false
	})

	val, err := r.Resolve("env://OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", val)

	_, err = r.Resolve("env://MISSING")
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeSecretNotFound, relayerr.CodeOf(err))
}

func TestResolveKeyringRef(t *testing.T) {
	store := mapStore{"relay/anthropic": "sk-ant"}
	r := secrets.NewResolver(store)

	val, err := r.Resolve("keyring://relay/anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", val)

	// The store's not-found code survives the resolve wrap.
	_, err = r.Resolve("keyring://relay/missing")
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeSecretNotFound, relayerr.CodeOf(err))
	assert.True(t, relayerr.IsNotFound(err))
}

func TestResolveRejectsLiteralValues(t *testing.T) {
	r := secrets.NewResolver(nil)

	_, err := r.Resolve("sk-plaintext-key")
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeSecretInvalidInput, relayerr.CodeOf(err))
}

func TestResolveKeyringWithoutStore(t *testing.T) {
	r := secrets.NewResolver(nil)

	_, err := r.Resolve("keyring://relay/key")
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeSecretResolveFailure, relayerr.CodeOf(err))
}
