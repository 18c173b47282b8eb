// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

package accounting

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orchestra-ai/maestro/internal/router"
)

// tokensPerUnit converts raw token counts to the per-million pricing unit.
const tokensPerUnit = 1_000_000

// FallbackModelID is the sentinel model id used for direct (non-routed)
// fallback calls. Never present in the routable catalog.
const FallbackModelID = "direct"

// ============================================================================
// USAGE RECORD
// ============================================================================

// UsageRecord is one completed request's accounting result. Created once per
// request and never mutated after creation.
type UsageRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`
	// ModelID is the model that served the request, or FallbackModelID.
	ModelID string `json:"model_id"`
	// TokensUsed is the total token count reported by the backend.
	TokensUsed int `json:"tokens_used"`
	// Cost is the routed cost in dollars.
	Cost float64 `json:"cost"`
	// SavingsAmount is the saving versus the baseline reference price in
	// dollars. Negative when the routed model is more expensive than the
	// baseline; negative values are preserved, never clamped.
	SavingsAmount float64 `json:"savings_amount"`
	// SavingsPercentage is SavingsAmount as a percentage of the baseline
	// cost. Zero when TokensUsed is zero.
	SavingsPercentage float64 `json:"savings_percentage"`
	// ResponseTimeMs is the measured request latency in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`
	// UsedFallback marks records produced by the direct fallback path.
	UsedFallback bool `json:"used_fallback"`
	// Timestamp is when the record was created.
	Timestamp time.Time `json:"timestamp"`
}

// String returns a human-readable summary of the record.
func (r UsageRecord) String() string {
	if r.UsedFallback {
		return fmt.Sprintf("%s [FALLBACK]: %dms", r.ModelID, r.ResponseTimeMs)
	}
	return fmt.Sprintf("%s: %d tokens, $%.6f (saved $%.6f, %.2f%%), %dms",
		r.ModelID, r.TokensUsed, r.Cost, r.SavingsAmount, r.SavingsPercentage, r.ResponseTimeMs)
}

// ============================================================================
// SESSION METRICS
// ============================================================================

// SessionMetrics is the session-scoped running aggregate. Initialized to
// zero at session start, mutated only by Record, and reset only by explicit
// session teardown. For non-fallback records both fields are monotonically
// non-decreasing in token terms; CumulativeCostSavings may still decrease
// when a routed model is priced above the baseline.
type SessionMetrics struct {
	// TotalTokensUsed is the cumulative token count across routed requests.
	TotalTokensUsed int `json:"total_tokens_used"`
	// CumulativeCostSavings is the cumulative savings versus baseline in
	// dollars.
	CumulativeCostSavings float64 `json:"cumulative_cost_savings"`
	// RequestCount is the number of routed requests recorded.
	RequestCount int `json:"request_count"`
}

// String returns a human-readable summary of the metrics.
func (m SessionMetrics) String() string {
	return fmt.Sprintf("Session: %d requests, %d tokens, $%.6f saved",
		m.RequestCount, m.TotalTokensUsed, m.CumulativeCostSavings)
}

// ============================================================================
// ACCOUNTANT
// ============================================================================

// Accountant computes per-request cost from the catalog price table and
// accumulates session totals. Explicitly constructed and explicitly passed
// to its owner; the metrics mutex makes concurrent Record calls lose no
// updates under arbitrary interleaving.
type Accountant struct {
	catalog *router.Catalog

	mu      sync.RWMutex
	metrics SessionMetrics
}

// New creates an accountant over the given catalog with zeroed metrics.
func New(catalog *router.Catalog) *Accountant {
	return &Accountant{catalog: catalog}
}

// Record computes cost and savings for a routed request and folds them into
// the session metrics. Idempotent in its return value for identical inputs
// but not in its side effect: each call accumulates.
//
// Fails when the decision references a model absent from the catalog; the
// price table is the accounting source of truth, not the routing layer.
func (a *Accountant) Record(decision router.Decision, tokensUsed int, responseTime time.Duration) (UsageRecord, error) {
	if tokensUsed < 0 {
		return UsageRecord{}, fmt.Errorf("tokens used must be >= 0, got %d", tokensUsed)
	}

	price, err := a.catalog.Price(decision.ModelID)
	if err != nil {
		return UsageRecord{}, err
	}

	units := float64(tokensUsed) / tokensPerUnit
	cost := units * price
	baselineCost := units * a.catalog.BaselinePrice()
	savings := baselineCost - cost

	// Guard the percentage against a zero baseline cost (tokensUsed == 0):
	// report 0 rather than propagating NaN.
	savingsPct := 0.0
	if baselineCost > 0 {
		savingsPct = savings / baselineCost * 100
	}

	record := UsageRecord{
		ID:                uuid.NewString(),
		ModelID:           decision.ModelID,
		TokensUsed:        tokensUsed,
		Cost:              cost,
		SavingsAmount:     savings,
		SavingsPercentage: savingsPct,
		ResponseTimeMs:    responseTime.Milliseconds(),
		UsedFallback:      false,
		Timestamp:         time.Now(),
	}

	a.mu.Lock()
	a.metrics.TotalTokensUsed += tokensUsed
	a.metrics.CumulativeCostSavings += savings
	a.metrics.RequestCount++
	a.mu.Unlock()

	return record, nil
}

// RecordFallback produces the accounting record for a direct fallback call.
// Fallback calls are accounting-invisible by contract: zero tokens, zero
// cost, zero savings, and no session metrics mutation. Whether real fallback
// token usage should be counted is an open product question; do not change
// this without product confirmation.
func (a *Accountant) RecordFallback(responseTime time.Duration) UsageRecord {
	return UsageRecord{
		ID:             uuid.NewString(),
		ModelID:        FallbackModelID,
		ResponseTimeMs: responseTime.Milliseconds(),
		UsedFallback:   true,
		Timestamp:      time.Now(),
	}
}

// Metrics returns a snapshot of the current session metrics.
func (a *Accountant) Metrics() SessionMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}

// Reset clears the session metrics. Only explicit session-end/teardown
// calls this; nothing resets metrics implicitly.
func (a *Accountant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = SessionMetrics{}
}
