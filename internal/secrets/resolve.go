// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package secrets

import (
	"os"
	"strings"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

const (
	envScheme     = "env://"
	keyringScheme = "keyring://"
)

// Resolver turns indirect secret references from configuration into
// secret values. Two schemes are supported: env://VAR reads an
// environment variable, keyring://service/key reads the OS keyring.
type Resolver struct {
	store     Store
	lookupEnv func(string) (string, bool) // for testing
}

// NewResolver creates a Resolver backed by the given keyring store.
// A nil store disables keyring:// resolution.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:     store,
		lookupEnv: os.LookupEnv,
	}
}

// SetLookupEnv overrides the environment source (for testing).
func (r *Resolver) SetLookupEnv(fn func(string) (string, bool)) {
	r.lookupEnv = fn
}

// IsRef reports whether value uses one of the supported indirect schemes.
func IsRef(value string) bool {
	return strings.HasPrefix(value, envScheme) || strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringRef extracts service and key from a keyring://service/key ref.
func ParseKeyringRef(ref string) (service, key string, err error) {
	if !strings.HasPrefix(ref, keyringScheme) {
		return "", "", relayerr.Errorf(relayerr.CodeSecretInvalidInput, "not a keyring ref: %q", ref)
	}

	path := strings.TrimPrefix(ref, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", relayerr.Errorf(relayerr.CodeSecretInvalidInput,
			"invalid keyring ref %q: expected keyring://service/key", ref)
	}

	return parts[0], parts[1], nil
}

// Resolve dereferences a secret ref to its value. A value that uses no
// known scheme is rejected: configs must never carry literal secrets.
func (r *Resolver) Resolve(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, envScheme):
		name := strings.TrimPrefix(ref, envScheme)
		if name == "" {
			return "", relayerr.Errorf(relayerr.CodeSecretInvalidInput,
				"invalid env ref %q: expected env://VAR", ref)
		}
		val, ok := r.lookupEnv(name)
		if !ok || val == "" {
			return "", relayerr.Errorf(relayerr.CodeSecretNotFound,
				"environment variable %s not set", name)
		}
		return val, nil

	case strings.HasPrefix(ref, keyringScheme):
		if r.store == nil {
			return "", relayerr.Errorf(relayerr.CodeSecretResolveFailure,
				"keyring ref %q: no keyring store configured", ref)
		}
		service, key, err := ParseKeyringRef(ref)
		if err != nil {
			return "", err
		}
		secret, err := r.store.Retrieve(service, key)
		if err != nil {
			return "", relayerr.Wrapf(err, relayerr.CodeSecretResolveFailure,
				"resolving keyring ref %q", ref)
		}
		return secret, nil

	default:
		return "", relayerr.Errorf(relayerr.CodeSecretInvalidInput,
			"secret ref %q must use env:// or keyring:// scheme", ref)
	}
}
