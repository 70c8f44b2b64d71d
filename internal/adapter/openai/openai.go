// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package openai

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

func init() {
	adapter.Register("openai", func(cfg adapter.Config) (adapter.Adapter, error) {
		return New(cfg)
	})
}

// Adapter calls the OpenAI Chat Completions API. The API key is supplied
// per invocation by the engine's credential pool.
type Adapter struct {
	client openaisdk.Client
	cfg    adapter.Config
}

// New creates an OpenAI adapter.
func New(cfg adapter.Config) (*Adapter, error) {
	// The engine owns retry policy; SDK-level retries would stack on top.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client: openaisdk.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) Invoke(ctx context.Context, req adapter.InvokeRequest) (*adapter.InvokeResult, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Chat.Completions.New(ctx, params, option.WithAPIKey(req.Credential))
	if err != nil {
		return nil, a.codedError(req.Model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, relayerr.New(relayerr.CodeVendorResponseInvalid,
			"openai: response contained no choices",
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

// buildParams converts an adapter.InvokeRequest into OpenAI SDK ChatCompletionNewParams.
func buildParams(req adapter.InvokeRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.System)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
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

	return params, nil
}

// convertMessages transforms adapter.Message slices into OpenAI SDK message
// param slices. The system prompt is prepended as a system message if present.
func convertMessages(msgs []adapter.Message, system string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if system != "" {
		result = append(result, openaisdk.SystemMessage(system))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case adapter.MessageRoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case adapter.MessageRoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case adapter.MessageRoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, relayerr.Errorf(relayerr.CodeVendorRequestInvalid,
				"openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// codedError maps SDK errors to coded errors the engine can classify.
func (a *Adapter) codedError(model string, err error) error {
	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		return adapter.CodedHTTPError(a.cfg.Vendor, model, apierr.StatusCode, apierr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return relayerr.Wrapf(err, relayerr.CodeVendorTimeout, "openai: call timed out")
	}
	return relayerr.Wrapf(err, relayerr.CodeVendorUpstreamFailure, "openai: calling chat completions API")
}
