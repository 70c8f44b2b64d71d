// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package anthropic

import (
	"context"
	"errors"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sigil-dev/relay/internal/adapter"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func init() {
	adapter.Register("anthropic", func(cfg adapter.Config) (adapter.Adapter, error) {
		return New(cfg)
	})
}

// Adapter calls the Anthropic Messages API. The API key is supplied per
// invocation by the engine's credential pool, so a single Adapter serves
// every credential configured for the vendor.
type Adapter struct {
	client anthropicsdk.Client
	cfg    adapter.Config
}

// New creates an Anthropic adapter.
func New(cfg adapter.Config) (*Adapter, error) {
	// The engine owns retry policy; SDK-level retries would stack on top.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client: anthropicsdk.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) Invoke(ctx context.Context, req adapter.InvokeRequest) (*adapter.InvokeResult, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := a.client.Messages.New(ctx, params, option.WithAPIKey(req.Credential))
	if err != nil {
		return nil, a.codedError(req.Model, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &adapter.InvokeResult{
		Text: text,
		Usage: adapter.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// buildParams converts an adapter.InvokeRequest into Anthropic SDK MessageNewParams.
func buildParams(req adapter.InvokeRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: req.System},
		}
	}

	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Temperature)
	}

	return params, nil
}

// convertMessages transforms adapter.Message slices into Anthropic SDK MessageParam slices.
func convertMessages(msgs []adapter.Message) ([]anthropicsdk.MessageParam, error) {
	var result []anthropicsdk.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case adapter.MessageRoleUser:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case adapter.MessageRoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case adapter.MessageRoleSystem:
			// System content is handled via the top-level system param,
			// not as individual messages. Skip it here.
			continue
		default:
			return nil, relayerr.Errorf(relayerr.CodeVendorRequestInvalid,
				"anthropic: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// codedError maps SDK errors to coded errors the engine can classify.
func (a *Adapter) codedError(model string, err error) error {
	var apierr *anthropicsdk.Error
	if errors.As(err, &apierr) {
		return adapter.CodedHTTPError(a.cfg.Vendor, model, apierr.StatusCode, apierr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return relayerr.Wrapf(err, relayerr.CodeVendorTimeout, "anthropic: call timed out")
	}
	return relayerr.Wrapf(err, relayerr.CodeVendorUpstreamFailure, "anthropic: calling messages API")
}
