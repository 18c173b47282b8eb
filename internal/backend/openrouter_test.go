// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chatOK(content string, tokens int) map[string]any {
	return map[string]any{
		"id":    "gen-1",
		"model": "test/model",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": tokens / 2, "completion_tokens": tokens - tokens/2, "total_tokens": tokens},
	}
}

func newTestClient(serverURL string) *Client {
	// High rate limit so tests never sleep in the limiter.
	return NewClient("test-key").WithBaseURL(serverURL).WithRateLimit(1000, 1000)
}

func TestGenerateSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(chatOK("hello there", 42)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Generate(context.Background(), GenerateRequest{
		Model:       "test/model",
		Prompt:      "hi",
		Temperature: 0.7,
		MaxTokens:   800,
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", result.Content)
	require.Equal(t, 42, result.TokensUsed)
	require.Equal(t, "test/model", result.Model)

	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "/chat/completions", gotPath)
	require.Equal(t, "test/model", gotBody.Model)
	require.InDelta(t, 0.7, gotBody.Temperature, 1e-9)
	require.Equal(t, 800, gotBody.MaxTokens)
	require.False(t, gotBody.Stream)
	require.Len(t, gotBody.Messages, 1)
	require.Equal(t, "user", gotBody.Messages[0].Role)
}

func TestGenerateNotConfigured(t *testing.T) {
	c := NewClient("")
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	require.ErrorIs(t, err, ErrNotConfigured)
	require.False(t, c.IsConfigured())
}

// TestGenerateRetriesOn429 verifies rate-limit responses are retried and a
// later success wins.
func TestGenerateRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": "rate_limited", "message": "slow down"}})
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(chatOK("second try", 10)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "second try", result.Content)
	require.Equal(t, int32(2), calls.Load())
}

// TestGenerateRetriesExhausted verifies persistent 5xx responses surface the
// wrapped failure after maxRetries attempts.
func TestGenerateRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL).WithMaxRetries(2)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	require.True(t, IsBackendError(err))
	require.Equal(t, int32(2), calls.Load())
}

// TestGenerateAuthFailureNoRetry verifies a 401 fails immediately.
func TestGenerateAuthFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	require.ErrorIs(t, err, ErrAuthFailed)
	require.Equal(t, int32(1), calls.Load())
}

func TestGenerateModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "ghost", Prompt: "p"})
	require.ErrorIs(t, err, ErrModelNotFound)
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	require.True(t, IsBackendError(err))
}

// TestGenerateCancellation verifies a canceled context aborts without retry.
func TestGenerateCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background connection
		// read; otherwise client disconnect never cancels r.Context() and
		// srv.Close deadlocks waiting on this handler.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	c := newTestClient(srv.URL)
	_, err := c.Generate(ctx, GenerateRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	require.False(t, isRetryable(err))
}

func TestKeyFingerprint(t *testing.T) {
	c := NewClient("sk-secret-key")
	fp := c.KeyFingerprint()
	require.Len(t, fp, 8)
	require.NotContains(t, fp, "secret")

	require.Equal(t, "none", NewClient("").KeyFingerprint())
}

func TestBackoffDelay(t *testing.T) {
	require.Equal(t, time.Second, backoffDelay(1))
	require.Equal(t, 2*time.Second, backoffDelay(2))
	require.Equal(t, retryMaxDelay, backoffDelay(10))
}

func TestBackendErrorUnwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	be := &BackendError{Err: inner}
	require.ErrorIs(t, be, context.DeadlineExceeded)
	require.False(t, isRetryable(be))
}

func TestIsBackendError(t *testing.T) {
	require.True(t, IsBackendError(ErrRateLimited))
	require.True(t, IsBackendError(&BackendError{Status: 500}))
	require.False(t, IsBackendError(nil))
	require.False(t, IsBackendError(context.Canceled))
}
