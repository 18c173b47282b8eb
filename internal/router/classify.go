// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// ROUTER: deterministic complexity classification from mode and keywords
package router

import (
	"fmt"
	"strings"
)

// ============================================================================
// CLASSIFICATION
// ============================================================================

// shortMessageLen is the length below which a message defaults to TierLow
// when no complex keyword matched.
const shortMessageLen = 50

// complexKeywords mark a message as needing substantial reasoning.
// Matched case-insensitively as substrings, after the mode check.
var complexKeywords = []string{
	"analyze",
	"analysis",
	"comprehensive",
	"detailed",
	"in depth",
	"in-depth",
	"compare",
	"evaluate",
	"architecture",
	"trade-off",
	"step by step",
}

// simpleKeywords mark a message as a greeting or acknowledgement.
// Matched case-insensitively against the whole trimmed message.
var simpleKeywords = []string{
	"hi",
	"hello",
	"hey",
	"thanks",
	"thank you",
	"ok",
	"okay",
	"yes",
	"no",
	"bye",
	"goodbye",
}

// Classify maps a free-text message plus declared conversation mode to a
// complexity tier.
//
// Rules, in priority order (mode dominates keyword signal):
//  1. analysis and strategy modes are always TierHigh
//  2. any complex keyword in the message -> TierHigh
//  3. a simple keyword, or a message shorter than shortMessageLen -> TierLow
//  4. otherwise TierMedium
//
// The message may be empty. An unknown mode fails with ErrInvalidMode.
// Pure function; safe for concurrent use.
func Classify(message string, mode Mode) (Tier, error) {
	if !mode.Valid() {
		return TierLow, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	// Mode check takes precedence over keyword scanning.
	if mode == ModeAnalysis || mode == ModeStrategy {
		return TierHigh, nil
	}

	lower := strings.ToLower(message)

	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return TierHigh, nil
		}
	}

	trimmed := strings.TrimSpace(lower)
	trimmed = strings.TrimRight(trimmed, ".!?")
	for _, kw := range simpleKeywords {
		if trimmed == kw {
			return TierLow, nil
		}
	}
	if len(message) < shortMessageLen {
		return TierLow, nil
	}

	return TierMedium, nil
}

// ============================================================================
// TOKEN ESTIMATION
// ============================================================================

// EstimateTokens estimates the token count of a message for pre-call budget
// logging. GPT-style: ~4 chars per token on average; blended with a word
// count for better accuracy. Accounting always uses the backend-reported
// usage, never this estimate.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}
