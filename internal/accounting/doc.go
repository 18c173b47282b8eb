// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package accounting computes per-request token cost and accumulates
// session-scoped usage metrics.
//
// Cost is tokens / 1M * model price; savings are measured against a fixed
// baseline reference price representing the most expensive comparison
// model. Savings may be negative and are preserved as such.
//
// # Usage
//
//	acct := accounting.New(catalog)
//	rec, err := acct.Record(decision, resp.TokensUsed, elapsed)
//	...
//	fmt.Println(acct.Metrics())
//
// Fallback calls are recorded with RecordFallback and contribute nothing to
// session metrics.
//
// # Concurrency
//
// Record may be called from any number of goroutines; metrics accumulation
// is mutex-protected and never loses updates.
package accounting
