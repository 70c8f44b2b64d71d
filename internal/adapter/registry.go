// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package adapter

import (
	"sort"
	"sync"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// Config is what a factory needs to build an adapter. Credentials are
// not part of it: they are supplied per call by the engine.
type Config struct {
	Vendor  string // vendor name from configuration, used in logs and errors
	BaseURL string // optional endpoint override, useful for testing against a mock server
}

// Factory builds an Adapter for one configured vendor.
type Factory func(cfg Config) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an adapter factory available under a vendor-type tag.
// Adapter packages call this from init(); duplicate registration panics
// because it is always a programming error.
func Register(typeTag string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[typeTag]; dup {
		panic("adapter: Register called twice for type " + typeTag)
	}
	registry[typeTag] = factory
}

// New resolves a vendor-type tag to a concrete adapter. Resolution
// happens at configuration-load time; an unknown tag is a configuration
// error, not a runtime surprise.
func New(typeTag string, cfg Config) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[typeTag]
	registryMu.RUnlock()

	if !ok {
		return nil, relayerr.New(relayerr.CodeVendorTypeUnsupported,
			"unknown vendor type: "+typeTag+" (registered: "+registeredList()+")",
			relayerr.FieldVendor(cfg.Vendor),
		)
	}
	return factory(cfg)
}

// Registered returns the sorted list of registered type tags.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func registeredList() string {
	tags := Registered()
	if len(tags) == 0 {
		return "none"
	}
	out := tags[0]
	for _, t := range tags[1:] {
		out += ", " + t
	}
	return out
}
