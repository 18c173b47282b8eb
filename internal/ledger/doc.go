// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger persists usage records to a local SQLite database.
//
// The ledger is an append-only audit trail. It never influences routing or
// session accounting; it exists so the stats command can report totals
// across process restarts.
//
// # Privacy
//
// Prompt and response content is never stored - only model ids, token
// counts, cost figures, and latencies.
package ledger
