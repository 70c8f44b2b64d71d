// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

// Package openrouter adapts OpenRouter's OpenAI-compatible API. It reuses
// the OpenAI SDK pointed at the OpenRouter endpoint.
package openrouter

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/sigil-dev/relay/internal/adapter"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

const baseURL = "https://openrouter.ai/api/v1"

func init() {
	adapter.Register("openrouter", func(cfg adapter.Config) (adapter.Adapter, error) {
		return New(cfg)
	})
}

// Adapter calls OpenRouter through the OpenAI-compatible chat completions surface.
type Adapter struct {
	client openaisdk.Client
	cfg    adapter.Config
}

// New creates an OpenRouter adapter.
func New(cfg adapter.Config) (*Adapter, error) {
	base := baseURL
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}

	return &Adapter{
		// The engine owns retry policy; SDK-level retries would stack on top.
		client: openaisdk.NewClient(option.WithBaseURL(base), option.WithMaxRetries(0)),
		cfg:    cfg,
	}, nil
}

func (a *Adapter) Name() string { return "openrouter" }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) Invoke(ctx context.Context, req adapter.InvokeRequest) (*adapter.InvokeResult, error) {
	var msgs []openaisdk.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case adapter.MessageRoleUser:
			msgs = append(msgs, openaisdk.UserMessage(msg.Content))
		case adapter.MessageRoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(msg.Content))
		case adapter.MessageRoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, relayerr.Errorf(relayerr.CodeVendorRequestInvalid,
				"openrouter: unsupported message role %q", msg.Role)
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params, option.WithAPIKey(req.Credential))
	if err != nil {
		var apierr *openaisdk.Error
		if errors.As(err, &apierr) {
			return nil, adapter.CodedHTTPError(a.cfg.Vendor, req.Model, apierr.StatusCode, apierr.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, relayerr.Wrapf(err, relayerr.CodeVendorTimeout, "openrouter: call timed out")
		}
		return nil, relayerr.Wrapf(err, relayerr.CodeVendorUpstreamFailure, "openrouter: calling chat completions API")
	}

	if len(resp.Choices) == 0 {
		return nil, relayerr.New(relayerr.CodeVendorResponseInvalid,
			"openrouter: response contained no choices",
			relayerr.FieldVendor(a.cfg.Vendor), relayerr.FieldModel(req.Model))
	}

	return &adapter.InvokeResult{
		Text: resp.Choices[0].Message.Content,
		Usage: adapter.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
