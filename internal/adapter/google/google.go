// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package google

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/sigil-dev/relay/internal/adapter"
	relayerr "github.com/sigil-dev/relay/pkg/errors"
)

func init() {
	adapter.Register("google", func(cfg adapter.Config) (adapter.Adapter, error) {
		return New(cfg)
	})
}

// Adapter calls the Google Gemini API. The genai client binds its API key
// at construction, so a short-lived client is created per invocation with
// the credential the engine selected.
type Adapter struct {
	cfg adapter.Config
}

// New creates a Google adapter.
func New(cfg adapter.Config) (*Adapter, error) {
	return &Adapter{cfg: cfg}, nil
}

func (a *Adapter) Name() string { return "google" }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) Invoke(ctx context.Context, req adapter.InvokeRequest) (*adapter.InvokeResult, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  req.Credential,
		Backend: genai.BackendGeminiAPI,
	}
	if a.cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = a.cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, relayerr.Wrapf(err, relayerr.CodeVendorUpstreamFailure, "google: creating client")
	}

	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	config := buildConfig(req)

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, a.codedError(req.Model, err)
	}

	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
	}

	result := &adapter.InvokeResult{Text: text}
	if resp.UsageMetadata != nil {
		result.Usage = adapter.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// buildConfig converts request options into a genai.GenerateContentConfig.
func buildConfig(req adapter.InvokeRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		cfg.Temperature = &temp
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.System},
			},
		}
	}

	return cfg
}

// convertMessages transforms adapter.Message slices into genai.Content slices.
// System messages are excluded (handled via SystemInstruction in buildConfig).
func convertMessages(msgs []adapter.Message) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range msgs {
		switch msg.Role {
		case adapter.MessageRoleUser:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{Text: msg.Content},
				},
			})
		case adapter.MessageRoleAssistant:
			result = append(result, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: msg.Content},
				},
			})
		case adapter.MessageRoleSystem:
			continue
		default:
			return nil, relayerr.Errorf(relayerr.CodeVendorRequestInvalid,
				"google: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// codedError maps SDK errors to coded errors the engine can classify.
func (a *Adapter) codedError(model string, err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return adapter.CodedHTTPError(a.cfg.Vendor, model, apierr.Code, apierr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return relayerr.Wrapf(err, relayerr.CodeVendorTimeout, "google: call timed out")
	}
	return relayerr.Wrapf(err, relayerr.CodeVendorUpstreamFailure, "google: calling generate content API")
}
