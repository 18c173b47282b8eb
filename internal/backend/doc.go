// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides generation clients for OpenRouter-compatible
// chat completion APIs.
//
// Client is the routed backend: it accepts a model per request, retries
// transient failures with exponential backoff, rate-limits itself, and
// bounds response reads. DirectClient is the fixed fallback backend used
// when the routed path fails.
//
// # Security
//
// API keys never appear in logs; use KeyFingerprint for identification.
// Request and response bodies are never logged.
package backend
