// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Relay Contributors

package adapter

import (
	"context"
)

// Adapter is the capability interface every vendor integration
// implements. An Adapter performs exactly one upstream call per Invoke;
// selection, retries, and fallback all live above it in the engine.
type Adapter interface {
	Name() string
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
	Close() error
}

// InvokeRequest is the payload for one attempt against a vendor. The
// credential is the resolved secret value for the attempt, chosen by the
// engine's credential pool.
type InvokeRequest struct {
	Model       string
	Credential  string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Message is a single conversation turn.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Usage tracks token consumption for one completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InvokeResult is the normalized successful response from a vendor.
type InvokeResult struct {
	Text  string
	Usage Usage
}
