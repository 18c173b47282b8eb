// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
)

// Fallback generation parameters. The direct path is deliberately
// conservative: accuracy of the fallback matters less than getting any
// response out while the routed path is down.
const (
	directTemperature = 0.5
	directMaxTokens   = 1000
)

// DirectClient is the fixed, non-routed fallback backend. It ignores the
// model and parameters of the incoming request and always calls one
// configured model with fixed conservative parameters.
type DirectClient struct {
	client *Client
	model  string
}

// NewDirect creates the direct fallback client around an API client and a
// fixed model identifier.
func NewDirect(client *Client, model string) *DirectClient {
	return &DirectClient{client: client, model: model}
}

// Model returns the fixed model the direct client calls.
func (d *DirectClient) Model() string {
	return d.model
}

// Generate implements Generator. The request's model, temperature, and
// token limit are replaced with the fixed direct settings.
func (d *DirectClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return d.client.Generate(ctx, GenerateRequest{
		Model:       d.model,
		Prompt:      req.Prompt,
		Temperature: directTemperature,
		MaxTokens:   directMaxTokens,
	})
}
