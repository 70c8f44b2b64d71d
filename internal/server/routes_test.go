// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/relay/internal/config"
	"github.com/sigil-dev/relay/internal/engine"
	"github.com/sigil-dev/relay/pkg/health"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

type fakeEngine struct {
	lastReq engine.Request
	result  *engine.Result
	status  *health.Snapshot
}

func (f *fakeEngine) Complete(_ context.Context, req engine.Request) *engine.Result {
	f.lastReq = req
	return f.result
}

func (f *fakeEngine) Status() *health.Snapshot { return f.status }

type fakeReloader struct {
	cfg *config.Config
	err error
}

func (f *fakeReloader) Reload() (*config.Config, error) { return f.cfg, f.err }

func newTestServer(t *testing.T, eng *fakeEngine, rel *fakeReloader) *Server {
	t.Helper()
	s, err := New(Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	if rel == nil {
		rel = &fakeReloader{cfg: &config.Config{}}
	}
	s.RegisterServices(&Services{Engine: eng, Config: rel})
	return s
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCompleteEndpoint(t *testing.T) {
	eng := &fakeEngine{result: &engine.Result{
		Success:       true,
		RequestID:     "req-1",
		Vendor:        "anthropic",
		Model:         "fast-chat",
		Text:          "hello back",
		TotalAttempts: 1,
		FallbackChain: []string{"anthropic"},
	}}
	s := newTestServer(t, eng, nil)

	body := `{"prompt": "hello", "vendor": "anthropic", "max_tokens": 64}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "hello back", got.Text)
	assert.Equal(t, []string{"anthropic"}, got.FallbackChain)

	assert.Equal(t, "hello", eng.lastReq.Prompt)
	assert.Equal(t, "anthropic", eng.lastReq.PreferredVendor)
	assert.Equal(t, 64, eng.lastReq.MaxTokens)
}

func TestCompleteEndpointRequiresInput(t *testing.T) {
	s := newTestServer(t, &fakeEngine{result: &engine.Result{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/complete", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteEndpointExhaustedIsStillOK(t *testing.T) {
	// Total exhaustion is a typed result, not a transport error.
	eng := &fakeEngine{result: &engine.Result{
		Success:       false,
		Error:         "all vendors exhausted",
		FallbackChain: []string{"anthropic", "openai"},
		Failures: []engine.VendorFailure{
			{Vendor: "anthropic", Kind: engine.FailureRateLimited, Reason: "429"},
			{Vendor: "openai", Kind: engine.FailureServerError, Reason: "500"},
		},
	}}
	s := newTestServer(t, eng, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/complete", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Len(t, got.Failures, 2)
}

func TestStatusEndpoint(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	eng := &fakeEngine{status: &health.Snapshot{
		Vendors: map[string]health.VendorStatus{
			"anthropic": {
				Vendor:        "anthropic",
				Enabled:       true,
				Breaker:       health.BreakerOpen,
				CooldownUntil: &until,
				CallsToday:    42,
				SuccessRate:   0.5,
			},
		},
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	s := newTestServer(t, eng, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"breaker_state":"open"`)
	assert.Contains(t, rec.Body.String(), `"calls_today":42`)
}

func TestReloadEndpoint(t *testing.T) {
	rel := &fakeReloader{cfg: &config.Config{
		Vendors: []config.VendorConfig{{Name: "anthropic"}, {Name: "openai"}},
	}}
	s := newTestServer(t, &fakeEngine{}, rel)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"vendors":2`)
}

func TestReloadEndpointFailure(t *testing.T) {
	rel := &fakeReloader{
		err: relayerr.New(relayerr.CodeConfigReloadFailure, "parse failed"),
	}
	s := newTestServer(t, &fakeEngine{}, rel)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewRequiresListenAddr(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
