// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/relay/internal/adapter"
	"github.com/sigil-dev/relay/internal/config"
	"github.com/sigil-dev/relay/internal/engine"
	"github.com/sigil-dev/relay/pkg/health"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

// CompletionEngine is the routing engine surface the server depends on.
type CompletionEngine interface {
	Complete(ctx context.Context, req engine.Request) *engine.Result
	Status() *health.Snapshot
}

// ConfigReloader re-reads configuration from disk.
type ConfigReloader interface {
	Reload() (*config.Config, error)
}

// Services bundles the dependencies the REST routes need.
type Services struct {
	Engine CompletionEngine
	Config ConfigReloader
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.svc = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "complete",
		Method:      http.MethodPost,
		Path:        "/api/v1/complete",
		Summary:     "Route a completion request across vendors",
		Tags:        []string{"completion"},
	}, s.handleComplete)

	huma.Register(s.api, huma.Operation{
		OperationID: "engine-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Per-vendor engine health",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-config",
		Method:      http.MethodPost,
		Path:        "/api/v1/reload",
		Summary:     "Reload configuration from disk",
		Tags:        []string{"system"},
	}, s.handleReload)
}

// --- Request/Response types for huma ---

// ChatMessage is one conversation turn in a completion request.
type ChatMessage struct {
	Role    string `json:"role" enum:"user,assistant,system" doc:"Message author role"`
	Content string `json:"content" doc:"Message text"`
}

type completeInput struct {
	Body struct {
		Prompt      string        `json:"prompt,omitempty" doc:"Single-turn prompt; shorthand for one user message"`
		Messages    []ChatMessage `json:"messages,omitempty" doc:"Multi-turn conversation"`
		System      string        `json:"system,omitempty" doc:"System instruction"`
		TaskHint    string        `json:"task_hint,omitempty" doc:"Free-form hint used to prefer matching models"`
		Vendor      string        `json:"vendor,omitempty" doc:"Vendor to try first"`
		MaxTokens   int           `json:"max_tokens,omitempty" doc:"Output token cap"`
		Temperature *float64      `json:"temperature,omitempty" doc:"Sampling temperature"`
		TimeoutSecs int           `json:"timeout_seconds,omitempty" doc:"Deadline for the whole fallback chain"`
	}
}

type completeOutput struct {
	Body engine.Result
}

func (s *Server) handleComplete(ctx context.Context, in *completeInput) (*completeOutput, error) {
	if in.Body.Prompt == "" && len(in.Body.Messages) == 0 {
		return nil, huma.Error400BadRequest("prompt or messages is required")
	}

	msgs := make([]adapter.Message, 0, len(in.Body.Messages))
	for _, m := range in.Body.Messages {
		msgs = append(msgs, adapter.Message{
			Role:    adapter.MessageRole(m.Role),
			Content: m.Content,
		})
	}

	req := engine.Request{
		Prompt:          in.Body.Prompt,
		Messages:        msgs,
		System:          in.Body.System,
		TaskHint:        in.Body.TaskHint,
		PreferredVendor: in.Body.Vendor,
		MaxTokens:       in.Body.MaxTokens,
		Temperature:     in.Body.Temperature,
	}

	if in.Body.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(in.Body.TimeoutSecs)*time.Second)
		defer cancel()
	}

	return &completeOutput{Body: *s.svc.Engine.Complete(ctx, req)}, nil
}

type statusOutput struct {
	Body health.Snapshot
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	return &statusOutput{Body: *s.svc.Engine.Status()}, nil
}

type reloadOutput struct {
	Body struct {
		Status  string `json:"status" example:"ok"`
		Vendors int    `json:"vendors" doc:"Number of configured vendors after reload"`
	}
}

func (s *Server) handleReload(_ context.Context, _ *struct{}) (*reloadOutput, error) {
	cfg, err := s.svc.Config.Reload()
	if err != nil {
		return nil, huma.NewError(relayerr.HTTPStatus(err), err.Error())
	}
	out := &reloadOutput{}
	out.Body.Status = "ok"
	out.Body.Vendors = len(cfg.Vendors)
	return out, nil
}
