// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch orchestrates one assistant turn end to end.
//
// A turn is classified, routed, and sent to the routed backend; on any
// backend failure the turn retries exactly once through the fixed direct
// fallback. The sequence is two explicit attempts, not a generic retry
// loop.
//
// Only two errors cross this component's boundary: router.ErrInvalidMode
// (caller bug, surfaced immediately) and ErrServiceUnavailable (both paths
// failed). Everything else is absorbed by the fallback mechanism.
package dispatch
