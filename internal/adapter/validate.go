// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package adapter

import (
	"context"
	"io"
	"net/http"

	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// ValidateKey makes a lightweight HTTP call to the vendor's models
// endpoint to confirm the credential is valid.
func ValidateKey(ctx context.Context, client *http.Client, vendorType, key string) error {
	var (
		url     string
		headers map[string]string
	)

	switch vendorType {
	case "anthropic":
		url = "https://api.anthropic.com/v1/models"
		headers = map[string]string{
			"x-api-key":         key,
			"anthropic-version": "2023-06-01",
		}
	case "openai":
		url = "https://api.openai.com/v1/models"
		headers = map[string]string{
			"Authorization": "Bearer " + key,
		}
	case "google":
		// Google's Generative Language API authenticates via query parameter.
		// Note: the key will appear in HTTP proxy/CDN access logs.
		url = "https://generativelanguage.googleapis.com/v1/models?key=" + key
	case "openrouter":
		url = "https://openrouter.ai/api/v1/models"
		headers = map[string]string{
			"Authorization": "Bearer " + key,
		}
	default:
		return relayerr.Errorf(relayerr.CodeVendorKeyInvalid, "unknown vendor type: %s", vendorType)
	}

	return ValidateKeyWithURL(ctx, client, vendorType, url, headers)
}

// ValidateKeyWithURL is the testable core of ValidateKey: it performs
// the validation request against an explicit URL.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, vendorType, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return relayerr.Errorf(relayerr.CodeVendorKeyCheckFailed, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return relayerr.Errorf(relayerr.CodeVendorKeyCheckFailed, "validating %s key: %w", vendorType, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return relayerr.Errorf(relayerr.CodeVendorKeyInvalid, "invalid %s API key (HTTP %d)", vendorType, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return relayerr.Errorf(relayerr.CodeVendorKeyCheckFailed, "%s validation failed (HTTP %d)", vendorType, resp.StatusCode)
	}

	return nil
}
