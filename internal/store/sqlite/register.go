// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/relay/internal/store"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newAttemptStore)
}

func newAttemptStore(dataPath string) (store.AttemptStore, error) {
	if dataPath == "" {
		return nil, relayerr.New(relayerr.CodeStoreInvalidInput,
			"sqlite backend requires a data path")
	}
	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, relayerr.Wrapf(err, relayerr.CodeStoreOpenFailure,
			"creating data directory %q", dataPath)
	}
	return NewAttemptStore(filepath.Join(dataPath, "attempts.db"))
}
