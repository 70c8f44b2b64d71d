// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sigil-dev/relay/internal/adapter"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func TestConvertMessages(t *testing.T) {
	got, err := convertMessages([]adapter.Message{
		{Role: adapter.MessageRoleUser, Content: "hello"},
		{Role: adapter.MessageRoleAssistant, Content: "hi there"},
		{Role: adapter.MessageRoleSystem, Content: "ignored here"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2, "system turns go through SystemInstruction")
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "hello", got[0].Parts[0].Text)
	assert.Equal(t, "model", got[1].Role)
}

func TestConvertMessagesRejectsUnknownRole(t *testing.T) {
	_, err := convertMessages([]adapter.Message{{Role: "tool", Content: "x"}})
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeVendorRequestInvalid, relayerr.CodeOf(err))
}

func TestBuildConfig(t *testing.T) {
	temp := 0.4
	cfg := buildConfig(adapter.InvokeRequest{
		System:      "be brief",
		MaxTokens:   512,
		Temperature: &temp,
	})

	assert.Equal(t, int32(512), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.4, float64(*cfg.Temperature), 1e-6)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
}

func TestCodedError(t *testing.T) {
	a, err := New(adapter.Config{Vendor: "google"})
	require.NoError(t, err)

	coded := a.codedError("gemini-test", genai.APIError{Code: 429, Message: "slow down"})
	assert.True(t, relayerr.IsRateLimited(coded))

	coded = a.codedError("gemini-test", genai.APIError{Code: 401, Message: "bad key"})
	assert.True(t, relayerr.IsUnauthorized(coded))
}
