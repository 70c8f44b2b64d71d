// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level Relay configuration. A loaded Config is an
// immutable snapshot; reloads produce a fresh Config rather than
// mutating an existing one.
type Config struct {
	Server  ServerConfig   `mapstructure:"server" yaml:"server"`
	Engine  EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Storage StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Vendors []VendorConfig `mapstructure:"vendors" yaml:"vendors"`
}

// ServerConfig controls how the relay gateway listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen" yaml:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
}

// EngineConfig holds global routing policy: circuit breaker thresholds,
// retry backoff, and credential failure limits.
type EngineConfig struct {
	BreakerFailureThreshold int `mapstructure:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int `mapstructure:"breaker_cooldown_seconds" yaml:"breaker_cooldown_seconds"`
	BreakerSuccessThreshold int `mapstructure:"breaker_success_threshold" yaml:"breaker_success_threshold"`
	CredentialMaxFailures   int `mapstructure:"credential_max_failures" yaml:"credential_max_failures"`
	RetryBaseMillis         int `mapstructure:"retry_base_millis" yaml:"retry_base_millis"`
	RetryMaxMillis          int `mapstructure:"retry_max_millis" yaml:"retry_max_millis"`
	DefaultTimeoutSeconds   int `mapstructure:"default_timeout_seconds" yaml:"default_timeout_seconds"`
}

// BreakerCooldown returns the configured cooldown as a duration.
func (e EngineConfig) BreakerCooldown() time.Duration {
	return time.Duration(e.BreakerCooldownSeconds) * time.Second
}

// StorageConfig selects the attempt-log backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

// VendorConfig is the immutable per-vendor definition. Lower priority
// values are tried first.
type VendorConfig struct {
	Name           string             `mapstructure:"name" yaml:"name"`
	Type           string             `mapstructure:"type" yaml:"type"`
	Priority       int                `mapstructure:"priority" yaml:"priority"`
	Enabled        bool               `mapstructure:"enabled" yaml:"enabled"`
	TimeoutSeconds int                `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxAttempts    int                `mapstructure:"max_attempts" yaml:"max_attempts"`
	DailyLimit     int64              `mapstructure:"daily_limit" yaml:"daily_limit"`
	BaseURL        string             `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Credentials    []CredentialConfig `mapstructure:"credentials" yaml:"credentials"`
	Models         []ModelConfig      `mapstructure:"models" yaml:"models"`
}

// Timeout returns the per-vendor request timeout, falling back to def
// when unset.
func (v VendorConfig) Timeout(def time.Duration) time.Duration {
	if v.TimeoutSeconds <= 0 {
		return def
	}
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// CredentialConfig references one secret usable against a vendor.
// SecretRef is an indirect reference (env://VAR or keyring://service/key);
// plaintext secrets never appear in config files.
type CredentialConfig struct {
	ID         string `mapstructure:"id" yaml:"id"`
	SecretRef  string `mapstructure:"secret_ref" yaml:"secret_ref"`
	Priority   int    `mapstructure:"priority" yaml:"priority"`
	DailyLimit int64  `mapstructure:"daily_limit" yaml:"daily_limit"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ModelConfig is one candidate model offered by a vendor.
type ModelConfig struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Priority    int      `mapstructure:"priority" yaml:"priority"`
	DailyLimit  int64    `mapstructure:"daily_limit" yaml:"daily_limit"`
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
}

// SetDefaults installs all configuration defaults on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("engine.breaker_failure_threshold", 5)
	v.SetDefault("engine.breaker_cooldown_seconds", 30)
	v.SetDefault("engine.breaker_success_threshold", 3)
	v.SetDefault("engine.credential_max_failures", 3)
	v.SetDefault("engine.retry_base_millis", 250)
	v.SetDefault("engine.retry_max_millis", 8000)
	v.SetDefault("engine.default_timeout_seconds", 60)
}

// SetupEnv binds environment variable overrides (prefix RELAY_).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, relayerr.Errorf(relayerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config from an already-populated
// Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	cfg.normalize()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// normalize fills derived fields and fixes ordering so that two loads of
// the same document always produce identical vendor, credential, and
// model orderings.
func (c *Config) normalize() {
	for i := range c.Vendors {
		vn := &c.Vendors[i]
		for j := range vn.Credentials {
			if vn.Credentials[j].ID == "" {
				vn.Credentials[j].ID = vn.Credentials[j].SecretRef
			}
		}
		slices.SortStableFunc(vn.Credentials, func(a, b CredentialConfig) int {
			if a.Priority != b.Priority {
				return a.Priority - b.Priority
			}
			return strings.Compare(a.ID, b.ID)
		})
		slices.SortStableFunc(vn.Models, func(a, b ModelConfig) int {
			if a.Priority != b.Priority {
				return a.Priority - b.Priority
			}
			return strings.Compare(a.Name, b.Name)
		})
	}
	slices.SortStableFunc(c.Vendors, func(a, b VendorConfig) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// SortedVendors returns the vendor list in routing order: priority
// ascending, name as tie-break. The returned slice is a copy.
func (c *Config) SortedVendors() []VendorConfig {
	out := slices.Clone(c.Vendors)
	slices.SortStableFunc(out, func(a, b VendorConfig) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Vendor looks up a vendor definition by name.
func (c *Config) Vendor(name string) (VendorConfig, bool) {
	for _, vn := range c.Vendors {
		if vn.Name == name {
			return vn, true
		}
	}
	return VendorConfig{}, false
}

// Validate checks the configuration for logical errors. It returns a
// slice of all validation errors found, collecting all issues rather
// than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateVendors()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"memory": true, "sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [memory, sqlite], got %q",
			c.Storage.Backend,
		))
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: storage.path is required when storage.backend is sqlite"))
	}

	return errs
}

func (c *Config) validateEngine() []error {
	var errs []error

	positive := []struct {
		name  string
		value int
	}{
		{"engine.breaker_failure_threshold", c.Engine.BreakerFailureThreshold},
		{"engine.breaker_cooldown_seconds", c.Engine.BreakerCooldownSeconds},
		{"engine.breaker_success_threshold", c.Engine.BreakerSuccessThreshold},
		{"engine.credential_max_failures", c.Engine.CredentialMaxFailures},
		{"engine.retry_base_millis", c.Engine.RetryBaseMillis},
		{"engine.retry_max_millis", c.Engine.RetryMaxMillis},
		{"engine.default_timeout_seconds", c.Engine.DefaultTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"config: %s must be greater than 0, got %d", p.name, p.value))
		}
	}

	if c.Engine.RetryMaxMillis > 0 && c.Engine.RetryBaseMillis > c.Engine.RetryMaxMillis {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: engine.retry_base_millis (%d) must not exceed engine.retry_max_millis (%d)",
			c.Engine.RetryBaseMillis, c.Engine.RetryMaxMillis))
	}

	return errs
}

func (c *Config) validateVendors() []error {
	var errs []error

	if len(c.Vendors) == 0 {
		errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
			"config: at least one vendor must be configured"))
		return errs
	}

	seen := make(map[string]bool, len(c.Vendors))
	for i, vn := range c.Vendors {
		prefix := fmt.Sprintf("config: vendors[%d]", i)

		if vn.Name == "" {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s: name must not be empty", prefix))
		} else if seen[vn.Name] {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s: duplicate vendor name %q", prefix, vn.Name))
		}
		seen[vn.Name] = true

		if vn.Type == "" {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s: type must not be empty", prefix))
		}
		if vn.TimeoutSeconds < 0 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s: timeout_seconds must not be negative, got %d", prefix, vn.TimeoutSeconds))
		}
		if vn.MaxAttempts < 1 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s: max_attempts must be at least 1, got %d", prefix, vn.MaxAttempts))
		}
		if vn.DailyLimit < 0 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s: daily_limit must not be negative, got %d", prefix, vn.DailyLimit))
		}

		if !vn.Enabled {
			continue
		}

		if len(vn.Credentials) == 0 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s (%s): an enabled vendor needs at least one credential", prefix, vn.Name))
		}
		if len(vn.Models) == 0 {
			errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
				"%s (%s): an enabled vendor needs at least one model", prefix, vn.Name))
		}

		credIDs := make(map[string]bool, len(vn.Credentials))
		for j, cred := range vn.Credentials {
			if cred.SecretRef == "" {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.credentials[%d]: secret_ref must not be empty", prefix, j))
			}
			if credIDs[cred.ID] {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.credentials[%d]: duplicate credential id %q", prefix, j, cred.ID))
			}
			credIDs[cred.ID] = true
			if cred.DailyLimit < 0 {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.credentials[%d]: daily_limit must not be negative, got %d", prefix, j, cred.DailyLimit))
			}
		}

		modelNames := make(map[string]bool, len(vn.Models))
		for j, m := range vn.Models {
			if m.Name == "" {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.models[%d]: name must not be empty", prefix, j))
			}
			if modelNames[m.Name] {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.models[%d]: duplicate model name %q", prefix, j, m.Name))
			}
			modelNames[m.Name] = true
			if m.DailyLimit < 0 {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.models[%d]: daily_limit must not be negative, got %d", prefix, j, m.DailyLimit))
			}
			if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
				errs = append(errs, relayerr.Errorf(relayerr.CodeConfigValidateInvalidValue,
					"%s.models[%d]: temperature must be between 0 and 2, got %g", prefix, j, *m.Temperature))
			}
		}
	}

	return errs
}
