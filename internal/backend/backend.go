// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
)

// ============================================================================
// GENERATION CONTRACT
// ============================================================================

// GenerateRequest is one generation request to a backend model.
type GenerateRequest struct {
	// Model is the backend model identifier.
	Model string
	// Prompt is the user message for this turn.
	Prompt string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the generated token count. Zero means backend default.
	MaxTokens int
}

// GenerateResult is the outcome of a successful generation request.
type GenerateResult struct {
	// Content is the generated text.
	Content string
	// TokensUsed is the total token count (prompt + completion) reported by
	// the backend.
	TokensUsed int
	// Model is the model that actually served the request.
	Model string
}

// Generator issues generation requests to a backend. Implementations must
// honor context cancellation and return a *BackendError (or a wrapped
// sentinel from this package) on any failure.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// ============================================================================
// ERRORS
// ============================================================================

// Error variables for common backend failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("backend API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist upstream.
	ErrModelNotFound = errors.New("model not found")
)

// BackendError represents a failure reported by the generation backend.
type BackendError struct {
	// Code is the backend's machine-readable error code, when present.
	Code string
	// Message is the backend's error message.
	Message string
	// Status is the HTTP status, when the failure reached the backend.
	Status int
	// Err is the underlying error, when the failure was local (network,
	// timeout, encoding).
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("backend error: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("backend error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	default:
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
}

// Unwrap returns the underlying error, if any.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err is any backend failure (typed error or
// one of the package sentinels).
func IsBackendError(err error) bool {
	if err == nil {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return true
	}
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrModelNotFound)
}
