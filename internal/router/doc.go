// Copyright (c) 2025-2026 Orchestra AI
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router provides persona-aware model routing for assistant turns.
//
// A turn is classified into a complexity tier from its message text and
// declared conversation mode, then routed to one backend model through an
// ordered rule table with persona-specific overrides.
//
// # Key Types
//
//   - Persona: named behavioral profile (cherry, sophia, karen)
//   - Mode: task category of the current turn (casual, analysis, ...)
//   - Tier: coarse complexity classification (low, medium, high)
//   - Catalog: static model price table with role bindings
//   - Router: ordered-rule model selection with generation parameters
//   - Decision: selected model id, temperature, and token limit
//
// # Usage
//
// Classify and route one turn:
//
//	tier, err := router.Classify(message, mode)
//	if err != nil {
//	    return err // invalid mode, caller bug
//	}
//	r := router.New(router.DefaultCatalog())
//	decision, err := r.Route(persona, mode, tier)
//
// # Safety
//
// The karen persona in medical mode always routes to the highest-accuracy
// model; this override is evaluated before every other rule.
//
// Classify and Route are pure apart from reading immutable tables and are
// safe for concurrent invocation with no synchronization.
package router
